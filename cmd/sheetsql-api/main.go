package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sheetsql/sheetsql/internal/api"
	"github.com/sheetsql/sheetsql/internal/app"
	"github.com/sheetsql/sheetsql/internal/config"
	"github.com/sheetsql/sheetsql/internal/observability"
)

func main() {
	cfg, err := config.LoadFromEnv("sheetsql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	engine, err := app.NewEngine(cfg)
	if err != nil {
		logger.Error("failed to initialize query engine", slog.Any("error", err))
		os.Exit(1)
	}

	translator, err := app.NewTranslator(cfg)
	switch {
	case errors.Is(err, app.ErrAPIKeyMissing):
		logger.Warn("generation service api key missing; questions will fail until it is configured")
		translator = app.UnavailableTranslator(err)
	case err != nil:
		logger.Error("failed to initialize query translator", slog.Any("error", err))
		os.Exit(1)
	}

	uploadSource, err := app.NewUploadSource(cfg)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	sessions := app.NewSessionStore(cfg, logger)
	deps := api.Dependencies{
		Logger:      logger,
		Pipeline:    app.NewService(cfg, engine, translator, logger),
		Sessions:    sessions,
		Uploads:     app.UploadSource(uploadSource),
		Readiness: api.CombineReadinessChecks(
			api.CheckTranslatorConfig(cfg),
			api.CheckUploadSource(app.UploadSource(uploadSource)),
		),
		DependencyTimeout: time.Second,
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return sessions.Run(groupCtx)
	})
	group.Go(func() error {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("engine", engine.Dialect()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("api server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
