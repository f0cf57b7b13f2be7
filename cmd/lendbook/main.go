package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"lendbook/internal/backend"
	"lendbook/internal/cli"
	"lendbook/internal/export"
	apphttp "lendbook/internal/http"
	"lendbook/internal/log"
	"lendbook/internal/services"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(log.Default())
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)
	loc := cfg.Location()

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

	// Messaging is optional for the server; without it report publishing
	// answers 503 and debtor changes are not announced.
	amqpClient := cli.InitAMQP(logger, cfg, false)

	var (
		events  services.EventPublisher
		reports apphttp.ReportQueue
	)
	if amqpClient != nil {
		events = amqpClient
		reports = services.NewMonthCloser(amqpClient, sqliteRepo, loc, logger)
	}

	payments := services.NewPaymentService(result.Directory, events, loc, logger)
	debtorSvc := services.NewDebtorService(result.Directory, events, loc, logger)

	var sessions apphttp.SessionLog
	if result.Sessions != nil {
		sessions = result.Sessions
	}

	checks := map[string]apphttp.Pinger{"sqlite": sqliteRepo}
	for name, check := range result.Checks {
		checks[name] = check
	}

	var pdf apphttp.PDFRenderer
	if cfg.GotenbergURL != "" {
		exporter, err := export.NewPDFExporter(cfg.GotenbergURL, &http.Client{Timeout: 30 * time.Second}, cfg.BusinessName)
		if err != nil {
			logger.Error("Failed to initialize PDF exporter", log.FieldError, err)
			os.Exit(1)
		}
		pdf = exporter
		checks["gotenberg"] = exporter
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:             ":" + cfg.Port,
		Business:         cfg.BusinessName,
		AdminUsername:    cfg.AdminUsername,
		Production:       cfg.IsProduction(),
		RequestTimeout:   cfg.RequestTimeout,
		RateLimitPerMin:  cfg.RateLimitPerMin,
		ExportRatePerMin: cfg.ExportRatePerMin,
		Location:         loc,
		Logger:           logger,
	}, apphttp.Deps{
		Directory: result.Directory,
		Payments:  payments,
		Debtors:   debtorSvc,
		Reports:   reports,
		Exports:   sqliteRepo,
		PDF:       pdf,
		Sessions:  sessions,
		Checks:    checks,
	})
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.RequestTimeout + 10*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	refresher := services.NewRefreshProcessor(result.Directory, services.RefreshProcessorConfig{
		Interval: cfg.RefreshInterval,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := refresher.Stop(shutdownCtx); err != nil {
			logger.Warn("Refresh processor stop error", log.FieldError, err)
		}
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if result.Cleanup != nil {
			if err := result.Cleanup(); err != nil {
				logger.Warn("Backend cleanup error", log.FieldError, err)
			}
		}
	})

	if err := refresher.Start(ctx); err != nil {
		logger.Warn("Refresh processor not started", log.FieldError, err)
	}

	logger.Info("Starting lendbook server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"cache", cfg.CacheBackend,
		"reports_enabled", amqpClient != nil,
		"pdf_enabled", pdf != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
