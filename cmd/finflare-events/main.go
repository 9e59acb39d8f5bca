// Command finflare-events consumes the activity events published by the
// web server and writes one log line per event.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finflare/internal/cli"
	"finflare/internal/events"
	"finflare/internal/log"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL")).WithComponent(log.ComponentEvents)
	cfg := cli.LoadAndValidateConfig(logger)

	if !cfg.EventsEnabled() {
		logger.Error("AMQP_URL is not set; nothing to consume")
		os.Exit(1)
	}

	client, err := events.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 10*time.Second, func(context.Context) {
		if err := client.Close(); err != nil {
			logger.Warn("Closing AMQP client failed", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting finflare-events", log.FieldQueue, cfg.AMQPQueue)
	err = client.Consume(ctx, func(ctx context.Context, ev events.Event) error {
		logEvent(ctx, logger, ev)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Event consumption failed", log.FieldError, err.Error())
		_ = client.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
}

func logEvent(ctx context.Context, logger *log.Logger, ev events.Event) {
	args := []any{
		log.FieldEvent, string(ev.Type),
		"sid", ev.SID,
		"username", ev.Username,
		"at", ev.Timestamp.Format(time.RFC3339),
	}
	if ev.ExpenseID != 0 {
		args = append(args, "expense_id", ev.ExpenseID)
	}
	for k, v := range ev.Attrs {
		args = append(args, k, v)
	}
	logger.InfoContext(ctx, "Activity event", args...)
}
