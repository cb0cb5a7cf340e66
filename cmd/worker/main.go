package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/avoronin/rentdesk/config"
	"github.com/avoronin/rentdesk/internal/archive"
	"github.com/avoronin/rentdesk/internal/email"
	"github.com/avoronin/rentdesk/internal/kafka"
	"github.com/avoronin/rentdesk/internal/logging"
)

// The worker consumes the booking event stream and archives terminal
// outcomes to Postgres, with an ops email mirror. It never mutates
// booking records.
func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.Init(os.Getenv("DEBUG") != "")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	archiver := archive.NewArchiver(pool)
	sender := email.NewSender()

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.BookingsTopic, logger)
	defer consumer.Close()

	logger.Info("archive worker started", zap.Strings("brokers", cfg.Kafka.Brokers))

	err = consumer.Consume(ctx, func(ctx context.Context, event kafka.BookingEvent) error {
		switch event.Type {
		case "booking_confirmed", "booking_rejected":
			if err := archiver.Save(ctx, event); err != nil {
				logger.Error("archive failed", zap.String("booking_id", event.BookingID), zap.Error(err))
				return nil
			}
			if err := sender.Send(ctx, event); err != nil {
				logger.Warn("ops email failed", zap.String("booking_id", event.BookingID), zap.Error(err))
			}
			logger.Info("booking archived",
				zap.String("booking_id", event.BookingID),
				zap.String("status", event.Status),
			)
		}
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", zap.Error(err))
	}
}
