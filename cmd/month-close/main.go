// Command month-close requests the report of the month that just ended.
// Run it from cron shortly after midnight on the first of each month.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"lendbook/internal/cli"
	"lendbook/internal/core"
	"lendbook/internal/log"
	"lendbook/internal/services"
)

func main() {
	force := flag.Bool("force", false, "publish even when the month was already exported")
	month := flag.String("month", "", "month to publish instead of the one just closed, e.g. 2024-03")
	requestedBy := flag.String("requested-by", "month-close", "recorded with the request")
	flag.Parse()

	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(log.Default())
	logger := cli.SetupLogger(cfg.LogLevel, cfg.LogFormat)

	sqliteRepo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer sqliteRepo.Close()

	amqpClient := cli.InitAMQP(logger, cfg, true)
	defer amqpClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	closer := services.NewMonthCloser(amqpClient, sqliteRepo, cfg.Location(), logger)
	target := closer.ClosedMonth(time.Now())
	if *month != "" {
		parsed, err := core.ParseMonthKey(*month)
		if err != nil {
			logger.Error("Invalid -month flag", log.FieldError, err)
			os.Exit(2)
		}
		target = parsed
	}

	msg, err := closer.Request(ctx, target, *requestedBy, *force)
	if err != nil {
		logger.Error("Month close failed", log.FieldError, err, log.FieldMonth, target.Label())
		os.Exit(1)
	}
	if msg == nil {
		logger.Info("Month already published, nothing to do", log.FieldMonth, target.Label())
		return
	}
	logger.Info("Month report requested", log.FieldJobID, msg.JobID, log.FieldMonth, target.Label())
}
