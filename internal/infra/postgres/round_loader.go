package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quizbot/internal/domain"
)

// RoundLoader loads round JSONB from Postgres.
type RoundLoader struct {
	pool *pgxpool.Pool
}

func NewRoundLoader(pool *pgxpool.Pool) *RoundLoader {
	return &RoundLoader{pool: pool}
}

func (l *RoundLoader) LoadRound(ctx context.Context, number int) (domain.Round, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM rounds WHERE number=$1`, number).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Round{}, fmt.Errorf("%w: round %d", domain.ErrRoundNotFound, number)
	}
	if err != nil {
		return domain.Round{}, fmt.Errorf("load round: %w", err)
	}
	var round domain.Round
	if err := json.Unmarshal(raw, &round); err != nil {
		return domain.Round{}, fmt.Errorf("unmarshal round: %w", err)
	}
	round.Number = number
	return round, nil
}

// CountRounds returns the highest stored round number; rounds are expected to be numbered 1..N.
func (l *RoundLoader) CountRounds(ctx context.Context) (int, error) {
	var total int
	if err := l.pool.QueryRow(ctx, `SELECT COALESCE(MAX(number), 0) FROM rounds`).Scan(&total); err != nil {
		return 0, fmt.Errorf("count rounds: %w", err)
	}
	return total, nil
}
