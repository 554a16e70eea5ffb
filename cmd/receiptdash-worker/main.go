package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"receiptdash/internal/amqp"
	"receiptdash/internal/config"
	"receiptdash/internal/dashboard"
	"receiptdash/internal/identity"
	"receiptdash/internal/log"
	"receiptdash/internal/source"
	sourceapi "receiptdash/internal/source/api"
	"receiptdash/internal/source/memory"
	"receiptdash/internal/storage"
	"receiptdash/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.Config{Component: log.ComponentWorker})
	log.SetDefault(logger)

	logger.Info("Starting receiptdash-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	var fetcher source.ReceiptFetcher
	switch cfg.DataBackend {
	case "memory":
		fetcher = memory.NewFromFile("data/receipts.json")
	default:
		fetcher = sourceapi.NewClient(cfg.APIEndpoint)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		defer amqpClient.Close()
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	var publisher dashboard.Publisher
	if amqpClient != nil {
		publisher = amqpClient
	}

	controller := dashboard.NewController(fetcher, repo, publisher, logger)

	var sessions worker.SessionRestorer
	if cfg.IdPEndpoint != "" {
		sessions = identity.NewClient(cfg.IdPEndpoint, cfg.IdPClientID)
	} else if cfg.DataBackend == "memory" {
		// The memory backend accepts any non-empty token.
		controller.SetCredential("local", "local@receiptdash")
	}

	refreshWorker := worker.NewRefreshWorker(controller, sessions, cfg.IdPRefreshToken, cfg.RefreshInterval, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := refreshWorker.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// Keep the database from growing without bound.
	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := repo.PruneDatasets(gctx, cfg.DatasetsToKeep); err != nil {
					logger.Error("Dataset prune failed", log.FieldError, err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("Worker error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
