package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ivr/internal/amqp"
	"ivr/internal/cli"
	"ivr/internal/core"
	"ivr/internal/envconfig"
	apphttp "ivr/internal/http"
	"ivr/internal/log"
	"ivr/internal/script"
	"ivr/internal/services"
	"ivr/internal/upstream"
)

var version = "dev"

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, nil)
	logger = cli.SetupLogger(cfg.LogLevel)

	flush := cli.InitSentry(logger, cfg, version)
	defer flush()

	client := upstream.NewClient(upstream.Options{
		Timeout:  cfg.UpstreamTimeout,
		RetryMax: cfg.UpstreamRetryMax,
		Logger:   logger.WithComponent(log.ComponentUpstream).Logger,
	})

	runner := script.NewRunner(cfg.ScriptDir, cfg.ScriptTimeout)
	runner.SetListingTimeout(cfg.ScriptListingTimeout)

	tokens := core.CardMovementTokens()
	if err := tokens.Validate(); err != nil {
		logger.Error("Invalid audio vocabulary", log.FieldError, err)
		os.Exit(1)
	}

	// Call audit is optional: without a broker the service runs unaudited.
	var publisher services.AuditPublisher
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP unavailable, call audit disabled", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
			logger.Info("Call audit enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	auditor := services.NewAuditor(publisher)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Upstream:           client,
		Scripts:            runner,
		EnvConfig:          envconfig.NewStore(cfg.EnvConfigFile, cfg.EnvConfigTTL),
		Composer:           core.NewComposer(tokens),
		Auditor:            auditor,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		ScriptDir:          cfg.ScriptDir,
	})

	// Upstream calls and scripts may take up to their own timeouts.
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.UpstreamTimeout*2 + cfg.ScriptTimeout + 5*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ivr server", "port", cfg.Port, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldOperation, log.OpShutdown, log.FieldError, err)
		}
		auditor.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		flush()
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}
