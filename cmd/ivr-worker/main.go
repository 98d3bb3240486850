package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"ivr/internal/amqp"
	"ivr/internal/cli"
	"ivr/internal/config"
	"ivr/internal/log"
	"ivr/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentWorker)
	logger.Info("Starting ivr-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	repo, err := cli.OpenAuditStore(logger, cfg.SQLiteDBPath)
	if err != nil {
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	auditWorker := worker.NewAuditWorker(repo, cfg.AuditRetention)

	// Records past retention may have piled up while the worker was down.
	if err := auditWorker.Prune(ctx); err != nil {
		logger.Error("Startup prune failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return amqpClient.ConsumeCallAudit(gctx, auditWorker.HandleCallAudit)
	})
	g.Go(func() error {
		auditWorker.RunPruner(gctx, cfg.PruneInterval)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldOperation, log.OpConsume, log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
