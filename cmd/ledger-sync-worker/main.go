package main

import (
	"context"
	"errors"
	"os"

	"fintrack/internal/amqp"
	"fintrack/internal/cli"
	flog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/worker"
)

func main() {
	ctx, stop := cli.SignalContext()
	code := run(ctx)
	stop()
	os.Exit(code)
}

func run(ctx context.Context) int {
	cfg, logger, comps := cli.Bootstrap(ctx, flog.ComponentWorker)
	defer comps.Close()

	processor := services.NewSyncProcessor(comps.Store, comps.Mirror, services.SyncProcessorConfig{
		PollInterval: cfg.SyncInterval,
		BatchSize:    cfg.SyncBatchSize,
	})
	syncWorker := worker.NewSyncWorker(processor)

	// Without a broker the outbox poll alone keeps the mirror current.
	var source worker.EventSource
	if cfg.AMQPURL != "" {
		consumer, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP consumer", "error", err)
			return 1
		}
		defer consumer.Close()
		source = consumer
		logger.Info("Consuming ledger events", "queue", cfg.AMQPQueue)
	} else {
		logger.Info("AMQP disabled, relying on periodic outbox sync", "interval", cfg.SyncInterval)
	}

	logger.Info("Starting ledger-sync-worker",
		"backend", cfg.DataBackend,
		"spreadsheet", cfg.GoogleSpreadsheetID != "",
		"batch_size", cfg.SyncBatchSize)

	if err := syncWorker.Run(ctx, source); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Sync worker stopped", "error", err)
		return 1
	}
	logger.Info("Worker shutdown complete")
	return 0
}
