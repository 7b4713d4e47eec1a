package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/yarning/internal/api"
	"github.com/MikeSquared-Agency/yarning/internal/batch"
	"github.com/MikeSquared-Agency/yarning/internal/cache"
	"github.com/MikeSquared-Agency/yarning/internal/config"
	"github.com/MikeSquared-Agency/yarning/internal/events"
	"github.com/MikeSquared-Agency/yarning/internal/llm"
	"github.com/MikeSquared-Agency/yarning/internal/service"
	"github.com/MikeSquared-Agency/yarning/internal/slack"
	"github.com/MikeSquared-Agency/yarning/internal/sqlitestore"
	"github.com/MikeSquared-Agency/yarning/internal/store"
)

const shutdownTimeout = 30 * time.Second

// backend is satisfied by both the Postgres and the SQLite store.
type backend interface {
	service.Repository
	cache.Store
	batch.JobStore
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the NATS request listener",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		slog.Info("yarning starting", "port", cfg.Port, "version", version)

		db, closeDB, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		var notifier *events.Notifier
		var bus *events.Client
		if cfg.NatsURL != "" {
			bus, err = events.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
			if err != nil {
				return fmt.Errorf("connect to NATS: %w", err)
			}
			defer bus.Close()
			slog.Info("NATS connected", "url", cfg.NatsURL)
			notifier = events.NewNotifier(bus, slog.Default())
		} else {
			slog.Warn("NATS_URL not set, running without events")
			notifier = events.NewNotifier(nil, slog.Default())
		}

		svc, err := newService(ctx, cfg, db, notifier)
		if err != nil {
			return err
		}

		if bus != nil {
			err := events.Listen(bus, slog.Default(), func(req events.AnalysisRequested) {
				job, err := svc.StartJob(ctx, service.Request{
					ProjectID:   req.ProjectID,
					Intelligent: req.Intelligent,
					Model:       req.Model,
					Regenerate:  req.Regenerate,
				})
				if err != nil {
					slog.Warn("analysis request rejected", "project_id", req.ProjectID, "error", err)
					return
				}
				slog.Info("analysis request accepted", "project_id", req.ProjectID, "job_id", job.ID)
			})
			if err != nil {
				return fmt.Errorf("subscribe to analysis requests: %w", err)
			}
		}

		srv := api.NewServer(cfg.Port, cfg.APIToken, svc, slog.Default())
		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.Start()
		}()

		slog.Info("yarning ready", "port", cfg.Port)

		select {
		case <-ctx.Done():
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("HTTP server: %w", err)
			}
		}

		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP shutdown incomplete", "error", err)
		}
		svc.Wait()
		slog.Info("yarning stopped")
		return nil
	},
}

// openBackend prefers Postgres and falls back to a local SQLite file.
func openBackend(ctx context.Context, cfg config.Config) (backend, func(), error) {
	if cfg.DatabaseURL != "" {
		db, err := store.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Info("database connected")
		return db, db.Close, nil
	}

	db, err := sqlitestore.Open(cfg.SQLitePath, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}
	slog.Info("using local sqlite database", "path", db.Path())
	return db, func() {
		if err := db.Close(); err != nil {
			slog.Warn("failed to close sqlite", "error", err)
		}
	}, nil
}

func newService(ctx context.Context, cfg config.Config, db backend, notifier *events.Notifier) (*service.Service, error) {
	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	budget, err := llm.NewBudget(cfg.MaxTranscriptTokens)
	if err != nil {
		return nil, err
	}
	c, err := cache.New(db, cfg.CacheLRUSize, slog.Default())
	if err != nil {
		return nil, err
	}
	opts := []service.Option{service.WithNotifier(notifier)}
	if cfg.SlackBotToken != "" && cfg.SlackReviewChannel != "" {
		opts = append(opts, service.WithReviewer(slack.NewPoster(cfg.SlackBotToken, cfg.SlackReviewChannel, slog.Default())))
		slog.Info("slack elder review alerts enabled", "channel", cfg.SlackReviewChannel)
	}
	return service.New(db, registry, c, db, budget,
		service.Config{
			Timeout:    cfg.LLMTimeout,
			BatchSize:  cfg.BatchSize,
			BatchDelay: cfg.BatchDelay,
		},
		slog.Default(),
		opts...,
	), nil
}
