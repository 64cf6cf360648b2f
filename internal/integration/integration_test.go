package integration

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/uptrace/bun/migrate"

	"quizbot/internal/app"
	"quizbot/internal/domain"
	pginfra "quizbot/internal/infra/postgres"
	pgmigrations "quizbot/internal/infra/postgres/migrations"
	infraredis "quizbot/internal/infra/redis"
)

func TestRoundEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisAddr, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedRound(t, ctx, pgURL, sampleRound())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pginfra.NewRoundLoader(pool)

	redisClient := goredis.NewClient(&goredis.Options{Addr: redisAddr})
	defer redisClient.Close()
	rounds := infraredis.NewRoundRepository(redisClient, loader, 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute, zerolog.Nop())

	clock := app.NewManualClock(time.Date(2025, 10, 18, 12, 0, 0, 0, time.UTC))
	platform := &chatLog{}
	settings := app.DefaultSettings()
	service := app.NewQuizService(app.Deps{
		Sessions:  sessions,
		Rounds:    app.NewRoundSelector(rounds),
		Platform:  platform,
		Scheduler: clock,
		Logger:    zerolog.Nop(),
	}, settings)

	const chatID = 77
	if err := service.SelectRound(ctx, chatID, 1); err != nil {
		t.Fatalf("select round: %v", err)
	}
	if err := service.Start(ctx, chatID, domain.User{ID: 1, Username: "alice"}); err != nil {
		t.Fatalf("start: %v", err)
	}
	running, err := sessions.Running(ctx, chatID)
	if err != nil || !running {
		t.Fatalf("expected running marker in redis, got %v, %v", running, err)
	}

	snap, ok := service.Snapshot(chatID)
	if !ok {
		t.Fatalf("expected active session")
	}
	answers := []struct {
		user  domain.User
		value string
	}{
		{domain.User{ID: 1, Username: "alice"}, "1"},
		{domain.User{ID: 2, Username: "bob"}, "2"},
	}
	for i, a := range answers {
		ev := domain.AnswerEvent{ChatID: chatID, User: a.user, Value: a.value, CallbackID: fmt.Sprint(i), MessageRef: snap.PromptRef}
		if err := service.SubmitAnswer(ctx, ev); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	clock.Advance(settings.QuestionDuration)
	clock.Advance(settings.RevealPause)

	want := "Quiz ended! Final scores:\nalice: 1 points\nbob: 0 points\n"
	if got := platform.last(); got != want {
		t.Fatalf("final scores:\n got %q\nwant %q", got, want)
	}
	if _, ok := service.Snapshot(chatID); ok {
		t.Fatalf("expected session to be gone")
	}
	running, err = sessions.Running(ctx, chatID)
	if err != nil || running {
		t.Fatalf("expected running marker cleared, got %v, %v", running, err)
	}
}

// chatLog is a Platform that keeps the plain messages sent to chats.
type chatLog struct {
	mu   sync.Mutex
	ref  domain.MessageRef
	sent []string
}

func (c *chatLog) SendMessage(_ context.Context, _ int64, text string, _ domain.Keyboard) (domain.MessageRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ref++
	c.sent = append(c.sent, text)
	return c.ref, nil
}

func (c *chatLog) EditMessageText(context.Context, int64, domain.MessageRef, string, domain.Keyboard) error {
	return nil
}

func (c *chatLog) EditMessageReplyMarkup(context.Context, int64, domain.MessageRef, domain.Keyboard) error {
	return nil
}

func (c *chatLog) AnswerCallback(context.Context, string, string) error {
	return nil
}

func (c *chatLog) last() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}

func seedRound(t *testing.T, ctx context.Context, dsn string, round domain.Round) {
	t.Helper()
	db := pginfra.OpenDB(dsn)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := pginfra.NewRoundWriter(db).Upsert(ctx, round); err != nil {
		t.Fatalf("seed round: %v", err)
	}
}

func sampleRound() domain.Round {
	return domain.Round{
		Number: 1,
		Questions: []domain.Question{
			{Prompt: "What is 2 + 2?", Answers: []string{"3", "4", "5", "22"}, Correct: 1},
		},
	}
}
