package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/romariotrain/recording-pipeline/internal/app"
	"github.com/romariotrain/recording-pipeline/internal/config"
	"github.com/romariotrain/recording-pipeline/internal/recording/kafka"
	"github.com/romariotrain/recording-pipeline/internal/recording/outbox"
	"github.com/romariotrain/recording-pipeline/internal/storage/postgres"
)

func run(logger zerolog.Logger) app.Runner {
	return func(ctx context.Context) error {
		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		db, err := postgres.Connect(ctx, cfg.Database.GetDSN())
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer db.Close()

		producer, err := kafka.NewProducer(kafka.ProducerConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			Logger:  logger,
		})
		if err != nil {
			return fmt.Errorf("kafka producer: %w", err)
		}
		defer producer.Close()

		publisher, err := outbox.NewPublisher(outbox.PublisherConfig{
			OutboxRepo: postgres.NewOutboxRepo(db),
			Producer:   producer,
			Interval:   cfg.Outbox.Interval,
			BatchSize:  cfg.Outbox.BatchSize,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("outbox publisher: %w", err)
		}

		return publisher.Start(ctx)
	}
}
