package firebase

import (
	"context"
	"fmt"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"google.golang.org/api/option"

	"quizbot/internal/domain"
)

// Source reads JSON values from a Realtime Database path.
type Source interface {
	Get(ctx context.Context, path string, v interface{}) error
	GetShallow(ctx context.Context, path string, v interface{}) error
}

// Connector holds the Firebase app and its Realtime Database client.
type Connector struct {
	app    *firebase.App
	client *db.Client
}

// NewConnector initializes the Firebase app from a service account key file.
func NewConnector(ctx context.Context, credentialsFile, databaseURL string) (*Connector, error) {
	opt := option.WithCredentialsFile(credentialsFile)
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: databaseURL}, opt)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("get database client: %w", err)
	}
	return &Connector{app: app, client: client}, nil
}

func (c *Connector) Get(ctx context.Context, path string, v interface{}) error {
	return c.client.NewRef(path).Get(ctx, v)
}

func (c *Connector) GetShallow(ctx context.Context, path string, v interface{}) error {
	return c.client.NewRef(path).GetShallow(ctx, v)
}

// RoundLoader reads rounds stored under <root>/<n>.
type RoundLoader struct {
	source Source
	root   string
}

func NewRoundLoader(source Source, root string) *RoundLoader {
	if root == "" {
		root = "rounds"
	}
	return &RoundLoader{source: source, root: root}
}

func (l *RoundLoader) LoadRound(ctx context.Context, number int) (domain.Round, error) {
	var round *domain.Round
	if err := l.source.Get(ctx, l.root+"/"+strconv.Itoa(number), &round); err != nil {
		return domain.Round{}, fmt.Errorf("read round %d: %w", number, err)
	}
	if round == nil {
		return domain.Round{}, fmt.Errorf("%w: round %d", domain.ErrRoundNotFound, number)
	}
	round.Number = number
	return *round, nil
}

// CountRounds counts keys 1, 2, ... under the root until the first gap.
func (l *RoundLoader) CountRounds(ctx context.Context) (int, error) {
	var keys map[string]interface{}
	if err := l.source.GetShallow(ctx, l.root, &keys); err != nil {
		return 0, fmt.Errorf("list rounds: %w", err)
	}
	n := 0
	for {
		if _, ok := keys[strconv.Itoa(n+1)]; !ok {
			return n, nil
		}
		n++
	}
}
