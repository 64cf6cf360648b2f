package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"quizbot/internal/domain"
)

type roundRow struct {
	bun.BaseModel `bun:"table:rounds"`

	Number    int             `bun:"number,pk"`
	Data      json.RawMessage `bun:"data,type:jsonb,notnull"`
	UpdatedAt time.Time       `bun:"updated_at,notnull"`
}

// OpenDB opens a bun handle over the pgdriver connector.
func OpenDB(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

// RoundWriter stores rounds into the rounds table.
type RoundWriter struct {
	db *bun.DB
}

func NewRoundWriter(db *bun.DB) *RoundWriter {
	return &RoundWriter{db: db}
}

// Upsert validates the round and inserts it, replacing any round with the same number.
func (w *RoundWriter) Upsert(ctx context.Context, round domain.Round) error {
	if round.Number < 1 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidRound, round.Number)
	}
	if err := round.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(round)
	if err != nil {
		return fmt.Errorf("marshal round: %w", err)
	}
	row := &roundRow{Number: round.Number, Data: raw, UpdatedAt: time.Now().UTC()}
	_, err = w.db.NewInsert().
		Model(row).
		On("CONFLICT (number) DO UPDATE").
		Set("data = EXCLUDED.data").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("upsert round %d: %w", round.Number, err)
	}
	return nil
}
