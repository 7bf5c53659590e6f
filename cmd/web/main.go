package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/myrjola/doppel/internal/ai"
	"github.com/myrjola/doppel/internal/conversation"
	"github.com/myrjola/doppel/internal/coordinator"
	"github.com/myrjola/doppel/internal/envstruct"
	"github.com/myrjola/doppel/internal/errors"
	"github.com/myrjola/doppel/internal/events"
	"github.com/myrjola/doppel/internal/logging"
	"github.com/myrjola/doppel/internal/persona"
	"github.com/myrjola/doppel/internal/pprofserver"
	"github.com/myrjola/doppel/internal/resolver"
	"github.com/myrjola/doppel/internal/scraper"
	"github.com/myrjola/doppel/internal/store"
	"github.com/myrjola/doppel/internal/voice"
)

type application struct {
	logger        *slog.Logger
	coordinator   *coordinator.Coordinator
	conversations *conversation.Manager
	events        *events.Log
}

type config struct {
	Addr          string        `env:"DOPPEL_ADDR" envDefault:"localhost:4000"`
	PprofPort     string        `env:"DOPPEL_PPROF_PORT" envDefault:""`
	OpenAIAPIKey  string        `env:"OPENAI_API_KEY"`
	OpenAIBaseURL string        `env:"OPENAI_BASE_URL" envDefault:""`
	SQLiteURL     string        `env:"DOPPEL_SQLITE_URL" envDefault:""`
	StageTimeout  time.Duration `env:"DOPPEL_STAGE_TIMEOUT" envDefault:"2m"`
	FetchTimeout  time.Duration `env:"DOPPEL_FETCH_TIMEOUT" envDefault:"15s"`
	ScrapeDelay   time.Duration `env:"DOPPEL_SCRAPE_DELAY" envDefault:"500ms"`
	TTL           time.Duration `env:"DOPPEL_TTL" envDefault:"24h"`
}

func main() {
	loggerHandler := logging.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       slog.LevelDebug,
		AddSource:   true,
		ReplaceAttr: nil,
	}))
	logger := slog.New(loggerHandler)

	// A missing .env file is fine, the environment may be set by other means.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Error(err.Error())
		os.Exit(1)
	}

	if err := run(context.Background(), logger, os.LookupEnv); err != nil {
		logger.Error("server error", errors.SlogError(err))
		os.Exit(1)
	}
}

// run wires the application and starts the server. It is the testable
// entrypoint: tests inject their own logger and environment.
func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	var cfg config
	// Fail fast on missing configuration so that a misconfigured process
	// never limps until the first provider call.
	if err := envstruct.Populate(&cfg, lookupEnv); err != nil {
		return errors.Wrap(err, "parse environment")
	}

	if cfg.PprofPort != "" {
		pprofserver.Launch(cfg.PprofPort, logger)
	}

	var (
		investigations store.InvestigationStore
		sessions       store.SessionStore
	)
	if cfg.SQLiteURL != "" {
		db, err := store.NewDB(ctx, cfg.SQLiteURL)
		if err != nil {
			return errors.Wrap(err, "open sqlite store")
		}
		defer func() {
			if err = db.Close(); err != nil {
				logger.LogAttrs(ctx, slog.LevelError, "close sqlite store", errors.SlogError(err))
			}
		}()
		investigations = store.NewSQLiteInvestigations(db)
		sessions = store.NewSQLiteSessions(db)
		logger.LogAttrs(ctx, slog.LevelInfo, "using sqlite store", slog.String("url", cfg.SQLiteURL))
	} else {
		memoryInvestigations := store.NewMemoryInvestigations(cfg.TTL)
		defer memoryInvestigations.Close()
		memorySessions := store.NewMemorySessions(cfg.TTL)
		defer memorySessions.Close()
		investigations = memoryInvestigations
		sessions = memorySessions
	}

	aiClient := ai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.StageTimeout)
	eventLog := events.NewLog()
	conversations := conversation.NewManager(
		sessions,
		&aiClient,
		voice.NewDefaultChain(aiClient.Voices()),
		logger,
	)
	coord := coordinator.New(coordinator.Config{
		Investigations: investigations,
		Resolver:       resolver.NewLLMResolver(&aiClient, logger),
		Scraper:        scraper.NewScraper(&aiClient, cfg.FetchTimeout, cfg.ScrapeDelay, logger),
		Personas:       persona.NewLLMBuilder(&aiClient, logger),
		Sessions:       conversations,
		Events:         eventLog,
		Logger:         logger,
		StageTimeout:   cfg.StageTimeout,
	})
	defer coord.Close()

	app := application{
		logger:        logger,
		coordinator:   coord,
		conversations: conversations,
		events:        eventLog,
	}

	return app.configureAndStartServer(ctx, cfg.Addr)
}
