package main

import (
	"context"
	"os"
	"time"

	"lendbook/internal/backend"
	"lendbook/internal/cli"
	"lendbook/internal/core"
	"lendbook/internal/log"
	"lendbook/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(log.Default())
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	loc := cfg.Location()

	logger.Info("Starting lendbook-worker")

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	result, err := backend.NewFactory(sqliteRepo, logger).CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize debtor backend", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	sink := cli.InitReportSink(context.Background(), logger, cfg)
	format := "memory"
	if cfg.SheetsEnabled() {
		format = "sheets"
	}

	amqpClient := cli.InitAMQP(logger, cfg, true)

	reportWorker := worker.NewReportWorker(result.Directory, sink, sqliteRepo, worker.Config{
		DebtorList: sink,
		Format:     format,
		Location:   loc,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(context.Context) {
		_ = amqpClient.Close()
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	// Publish the last closed month if its request was lost while the
	// worker was down.
	closed := core.MonthOf(core.DateIn(time.Now(), loc)).Prev()
	if err := reportWorker.StartupCheck(ctx, closed); err != nil {
		logger.Warn("Startup report check failed", log.FieldError, err, log.FieldMonth, closed.Label())
	}

	logger.Info("Worker consuming report requests",
		"exchange", cfg.AMQPExchange,
		"queue", cfg.AMQPQueue,
		"format", format)

	if err := reportWorker.Run(ctx, amqpClient); err != nil {
		logger.Error("Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
