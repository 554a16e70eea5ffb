package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"receiptdash/internal/amqp"
	"receiptdash/internal/config"
	"receiptdash/internal/core"
	"receiptdash/internal/dashboard"
	apphttp "receiptdash/internal/http"
	"receiptdash/internal/identity"
	"receiptdash/internal/log"
	"receiptdash/internal/source"
	sourceapi "receiptdash/internal/source/api"
	"receiptdash/internal/source/memory"
	"receiptdash/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	// Choose data backend (default: api).
	var fetcher source.ReceiptFetcher
	switch cfg.DataBackend {
	case "memory":
		fetcher = memory.NewFromFile("data/receipts.json")
		logger.Info("Initialized memory backend")
	default:
		fetcher = sourceapi.NewClient(cfg.APIEndpoint)
		logger.Info("Initialized api backend", log.FieldEndpoint, cfg.APIEndpoint)
	}

	var idp *identity.Client
	if cfg.IdPEndpoint != "" {
		idp = identity.NewClient(cfg.IdPEndpoint, cfg.IdPClientID)
	}

	var repo *storage.SQLiteRepository
	if cfg.SQLiteDBPath != "" {
		var err error
		repo, err = storage.NewSQLiteRepository(cfg.SQLiteDBPath)
		if err != nil {
			logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
			os.Exit(1)
		}
		defer repo.Close()
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		var err error
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	}

	// Avoid typed-nil interfaces when the optional collaborators are off.
	var store dashboard.Store
	if repo != nil {
		store = repo
	}
	var publisher dashboard.Publisher
	if amqpClient != nil {
		publisher = amqpClient
	}

	controller := dashboard.NewController(fetcher, store, publisher, logger)
	controller.SetRange(core.ParseRangeSelector(cfg.DefaultRange))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Warm the dashboard from the last persisted dataset so a restart does
	// not come up empty.
	if repo != nil {
		if ds, err := repo.LoadLatestDataset(ctx); err == nil {
			controller.AdoptDataset(ctx, ds.Version, ds.FetchedAt, ds.Records)
		} else if !errors.Is(err, storage.ErrNoDataset) {
			logger.Warn("Failed to load persisted dataset", log.FieldError, err)
		}
	}

	// Restore a headless session when a refresh token is configured.
	if idp != nil && cfg.IdPRefreshToken != "" {
		if token, email, err := idp.RestoreSession(ctx, cfg.IdPRefreshToken); err == nil {
			controller.SetCredential(token, email)
			logger.Info("Session restored", log.FieldEmail, email)
		} else {
			logger.Warn("Failed to restore session", log.FieldError, err)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, controller, idp, logger)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting receiptdash server", "port", cfg.Port, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Adopt dataset versions published by the refresh worker.
	if amqpClient != nil && repo != nil {
		g.Go(func() error {
			err := amqpClient.ConsumeDatasetRefreshed(gctx, func(msg *amqp.DatasetRefreshedMessage) error {
				ds, err := repo.LoadLatestDataset(gctx)
				if err != nil {
					return err
				}
				controller.AdoptDataset(gctx, ds.Version, ds.FetchedAt, ds.Records)
				return nil
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
