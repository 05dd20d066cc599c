// Package app wires configuration into the stores and services shared by
// the server and the CLI.
package app

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/freedom_case_2/fire/internal/ai"
	"github.com/freedom_case_2/fire/internal/analytics"
	"github.com/freedom_case_2/fire/internal/config"
	"github.com/freedom_case_2/fire/internal/db"
	"github.com/freedom_case_2/fire/internal/service"
)

type App struct {
	Config     config.Config
	Logger     zerolog.Logger
	Store      db.Repository
	Pipeline   *service.PipelineService
	Query      *service.QueryService
	Translator ai.Translator
	Presets    []analytics.Preset

	pg *db.Store
}

func NewLogger(cfg config.Config, service string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var l zerolog.Logger
	if cfg.Env == "dev" {
		l = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		l = zerolog.New(os.Stderr)
	}
	return l.Level(level).With().Timestamp().Str("service", service).Logger()
}

// New opens storage and builds the services. An empty DATABASE_URL selects
// the in-memory store.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger, migrate bool) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	if cfg.DatabaseURL == "" {
		logger.Warn().Msg("DATABASE_URL is empty, using in-memory store")
		a.Store = db.NewMemoryStore()
	} else {
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if migrate {
			if err := store.Migrate(logger); err != nil {
				store.Close()
				return nil, err
			}
		}
		a.pg = store
		a.Store = store
	}

	var source ai.Source
	if cfg.AIURL == "" {
		source = ai.MockSource{Roster: a.Store}
		logger.Info().Msg("using mock classifier source")
	} else {
		source = ai.HTTPSource{BaseURL: cfg.AIURL}
	}

	if cfg.AssistantBaseURL == "" {
		a.Translator = ai.KeywordTranslator{}
		logger.Info().Msg("using keyword translator")
	} else {
		a.Translator = &ai.OpenAITranslator{
			BaseURL:   cfg.AssistantBaseURL,
			Model:     cfg.AssistantModel,
			APIKey:    cfg.AssistantAPIKey,
			MaxTokens: cfg.AssistantMaxTokens,
		}
	}

	presets, err := analytics.LoadPresets(cfg.DashboardPresetsPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Presets = presets

	a.Pipeline = &service.PipelineService{
		Store:             a.Store,
		Source:            source,
		Logger:            logger.With().Str("component", "pipeline").Logger(),
		EscalationMarkers: cfg.Markers(),
	}
	a.Query = &service.QueryService{
		Store:  a.Store,
		Logger: logger.With().Str("component", "query").Logger(),
	}
	return a, nil
}

// Postgres returns the PostgreSQL store, or nil for the in-memory one.
func (a *App) Postgres() *db.Store {
	return a.pg
}

func (a *App) Close() {
	a.Store.Close()
}
