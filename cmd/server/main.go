package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"pps/internal/beneficiary"
	"pps/internal/catalog"
	"pps/internal/economy"
	jwttoken "pps/internal/jwt_token"
	"pps/internal/keyedstore"
	"pps/internal/platform/config"
	"pps/internal/platform/events"
	"pps/internal/platform/httpserver"
	"pps/internal/platform/logger"
	"pps/internal/platform/metrics"
	"pps/internal/platform/postgres"
	"pps/internal/platform/redis"
	"pps/internal/shop"
	"pps/internal/storage"
	"pps/internal/tasks"
	httptransport "pps/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
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
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	tables, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	objectives, closeCatalog, err := openCatalog(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCatalog()

	publisher, closeEvents, err := openEvents(cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer closeEvents()

	items := shop.New(tables.Items, shop.WithLogger(log))
	if err := seedShop(ctx, items, cfg.Shop); err != nil {
		return err
	}
	people := beneficiary.New(tables.Beneficiaries, beneficiary.WithLogger(log))
	econ := economy.New(tables.Beneficiaries,
		economy.WithLogger(log),
		economy.WithEvents(publisher),
		economy.WithItems(items),
	)
	taskSvc := tasks.New(tables, objectives,
		tasks.WithLogger(log),
		tasks.WithEvents(publisher),
	)

	jwtService := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, cfg.Server.JWTIssuer, cfg.Server.JWTAudience)
	router := httptransport.NewRouter(httptransport.RouterDeps{
		Handler:   httptransport.New(people, econ, items, taskSvc, log),
		Validator: jwttoken.NewJWTServiceAdapter(jwtService),
		Metrics:   metrics.New(prometheus.DefaultRegisterer),
		Logger:    log,
	})
	srv := httpserver.New(cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting pps api", "addr", cfg.Server.Addr, "store", cfg.Store.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func openStore(ctx context.Context, cfg config.Store) (*storage.Tables, func(), error) {
	if cfg.Backend != config.StorePostgres {
		return storage.NewMemory(), func() {}, nil
	}
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.DefaultOptions)
	if err != nil {
		return nil, nil, err
	}
	tables, err := storage.OpenPostgres(ctx, keyedstore.NewPostgresBackend(db))
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return tables, func() { _ = db.Close() }, nil
}

func openCatalog(ctx context.Context, cfg config.Config, log *slog.Logger) (catalog.Catalog, func(), error) {
	var (
		static *catalog.Static
		err    error
	)
	if cfg.Catalog.File != "" {
		static, err = catalog.LoadFile(cfg.Catalog.File)
	} else {
		static, err = catalog.Default()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load catalog: %w", err)
	}
	log.Info("catalog loaded", "objectives", static.Len(), "file", cfg.Catalog.File)

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return static, func() {}, nil
	}
	cached := catalog.NewCache(static, client.Client, cfg.Catalog.CacheTTL, catalog.WithCacheLogger(log))
	if err := cached.Invalidate(ctx); err != nil {
		log.Warn("catalog cache invalidation failed", "error", err)
	}
	return cached, func() { _ = client.Close() }, nil
}

// seedShop loads the item catalog into the store. Items already present are
// left untouched, so restarts never reset prices.
func seedShop(ctx context.Context, items *shop.Service, cfg config.Shop) error {
	var (
		seed []shop.SeedItem
		err  error
	)
	if cfg.File != "" {
		seed, err = shop.LoadSeedFile(cfg.File)
	} else {
		seed, err = shop.DefaultSeed()
	}
	if err != nil {
		return fmt.Errorf("load shop seed: %w", err)
	}
	if _, err := items.Seed(ctx, seed); err != nil {
		return fmt.Errorf("seed shop: %w", err)
	}
	return nil
}

func openEvents(cfg config.Kafka, log *slog.Logger) (events.Publisher, func(), error) {
	if len(cfg.Brokers) == 0 {
		return events.NewLogPublisher(log), func() {}, nil
	}
	p, err := events.NewKafkaPublisher(cfg.Brokers, cfg.Topic, events.WithKafkaLogger(log))
	if err != nil {
		return nil, nil, err
	}
	return p, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := p.Close(ctx); err != nil {
			log.Warn("event publisher close failed", "error", err)
		}
	}, nil
}
