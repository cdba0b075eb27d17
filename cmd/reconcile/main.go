package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pps/internal/catalog"
	"pps/internal/keyedstore"
	"pps/internal/platform/config"
	"pps/internal/platform/events"
	"pps/internal/platform/logger"
	"pps/internal/platform/postgres"
	"pps/internal/storage"
	"pps/internal/tasks"
	dErrors "pps/pkg/domain-errors"
)

// main consumes archive.failed events and writes the archive rows the API
// could not write when the task was credited.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("reconciler stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if cfg.Store.Backend != config.StorePostgres {
		return errors.New("PPS_STORE=postgres is required: the memory store is not shared with the api")
	}

	db, err := postgres.Open(ctx, cfg.Store.DatabaseURL, postgres.DefaultOptions)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	tables, err := storage.OpenPostgres(ctx, keyedstore.NewPostgresBackend(db))
	if err != nil {
		return err
	}

	objectives, err := catalog.Default()
	if cfg.Catalog.File != "" {
		objectives, err = catalog.LoadFile(cfg.Catalog.File)
	}
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	taskSvc := tasks.New(tables, objectives, tasks.WithLogger(log))

	consumer, err := events.NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup,
		events.WithConsumerLogger(log),
		events.WithRetry(5, time.Second),
		events.WithPermanent(func(err error) bool {
			return dErrors.HasCode(err, dErrors.CodeValidation)
		}),
	)
	if err != nil {
		return err
	}
	defer consumer.Close()

	log.Info("starting pps reconciler",
		"topic", cfg.Kafka.Topic,
		"group", cfg.Kafka.ConsumerGroup,
	)
	return consumer.Run(ctx, taskSvc.Reconcile)
}
