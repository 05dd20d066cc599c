package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/freedom_case_2/fire/internal/app"
	"github.com/freedom_case_2/fire/internal/config"
	httpapi "github.com/freedom_case_2/fire/internal/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := app.NewLogger(cfg, "fire-results")

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger, cfg.MigrateOnStart)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	var scheduler *cron.Cron
	if cfg.PullSchedule != "" {
		scheduler = cron.New()
		_, err := scheduler.AddFunc(cfg.PullSchedule, func() {
			jobCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if _, err := a.Pipeline.Pull(jobCtx); err != nil {
				logger.Error().Err(err).Msg("scheduled pull failed")
			}
		})
		if err != nil {
			logger.Fatal().Err(err).Str("schedule", cfg.PullSchedule).Msg("invalid PULL_SCHEDULE")
		}
		scheduler.Start()
		logger.Info().Str("schedule", cfg.PullSchedule).Msg("classifier pull scheduled")
	}

	router := httpapi.Router(cfg, httpapi.Deps{
		Store:      a.Store,
		Pipeline:   a.Pipeline,
		Query:      a.Query,
		Translator: a.Translator,
		Presets:    a.Presets,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
