package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quizbot/internal/app"
	"quizbot/internal/config"
	fileinfra "quizbot/internal/infra/file"
	fbinfra "quizbot/internal/infra/firebase"
	"quizbot/internal/infra/memory"
	pginfra "quizbot/internal/infra/postgres"
	"quizbot/internal/infra/rabbit"
	redisinfra "quizbot/internal/infra/redis"
	transport "quizbot/internal/transport/http"
	"quizbot/internal/transport/telegram"
)

// NewStartCmd builds the CLI subcommand that runs the bot.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), *configPath, *port)
		},
	}
}

func runBot(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if portFlag != "" {
		cfg.Server.Port = portFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	loader, release, err := newRoundLoader(ctx, cfg)
	if err != nil {
		return err
	}
	defer release()

	cacheTTL := config.TTLDuration(cfg.Rounds.CacheTTL, 10*time.Minute)
	var rounds app.RoundRepository
	var store app.SessionRepository
	if redisClient != nil {
		rounds = redisinfra.NewRoundRepository(redisClient, loader, cacheTTL)
		store = redisinfra.NewSessionStore(redisClient, config.TTLDuration(cfg.Redis.TTL, time.Hour), logger)
	} else {
		rounds = memory.NewRoundRepository(loader, cacheTTL)
		store = memory.NewSessionStore()
	}

	deps := app.Deps{
		Sessions:  store,
		Rounds:    app.NewRoundSelector(rounds),
		Scheduler: app.NewTimerScheduler(),
		Logger:    logger,
	}
	if cfg.RabbitMQ.URL != "" {
		publisher, err := rabbit.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		deps.Events = publisher
	}

	logger.Info().Str("platform", cfg.Platform).Str("rounds", cfg.Rounds.Source).Bool("redis", redisClient != nil).Msg("starting quiz bot")
	if cfg.Platform == "web" {
		return serveWeb(ctx, cfg, deps, logger)
	}
	return serveTelegram(ctx, cfg, deps, logger)
}

// newRoundLoader opens the configured question bank. release frees its connections.
func newRoundLoader(ctx context.Context, cfg config.Config) (memory.RoundLoader, func(), error) {
	switch cfg.Rounds.Source {
	case "postgres":
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		return pginfra.NewRoundLoader(pool), pool.Close, nil
	case "firebase":
		conn, err := fbinfra.NewConnector(ctx, cfg.Firebase.CredentialsFile, cfg.Firebase.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return fbinfra.NewRoundLoader(conn, cfg.Firebase.Root), func() {}, nil
	default:
		return fileinfra.NewRoundLoader(cfg.Rounds.Dir), func() {}, nil
	}
}

func serveTelegram(ctx context.Context, cfg config.Config, deps app.Deps, logger zerolog.Logger) error {
	var handler *telegram.Handler
	b, err := bot.New(cfg.Telegram.Token, bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
		handler.Handle(ctx, b, update)
	}))
	if err != nil {
		return err
	}
	deps.Platform = telegram.NewPlatform(b)
	service := app.NewQuizService(deps, quizSettings(cfg))
	handler = telegram.NewHandler(service, logger)

	logger.Info().Msg("polling telegram updates")
	b.Start(ctx)
	logger.Info().Msg("bot stopped")
	return nil
}

func serveWeb(ctx context.Context, cfg config.Config, deps app.Deps, logger zerolog.Logger) error {
	hub := transport.NewHub(logger)
	deps.Platform = hub
	service := app.NewQuizService(deps, quizSettings(cfg))

	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     transport.NewRouter(transport.NewWSHandler(service, hub, logger)),
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("starting web chat server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
