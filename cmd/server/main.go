package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tharunsai190/classy-commerce-storefront/internal/config"
	"github.com/tharunsai190/classy-commerce-storefront/internal/database"
	"github.com/tharunsai190/classy-commerce-storefront/internal/handler"
	"github.com/tharunsai190/classy-commerce-storefront/internal/infrastructure/events"
	"github.com/tharunsai190/classy-commerce-storefront/internal/logger"
	"github.com/tharunsai190/classy-commerce-storefront/internal/metrics"
	"github.com/tharunsai190/classy-commerce-storefront/internal/repo"
	"github.com/tharunsai190/classy-commerce-storefront/internal/service"
	"github.com/tharunsai190/classy-commerce-storefront/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
	zlog.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, zlog *zap.Logger) error {
	if err := database.Migrate(cfg.DB.DSN()); err != nil {
		return err
	}

	pool, err := database.NewPostgres(ctx, cfg.DB)
	if err != nil {
		return err
	}
	dbService := database.New(pool, cfg.DB.Database)
	defer dbService.Close()
	db := dbService.DB()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewDBStatsCollector(db, cfg.DB.Database))
	m := metrics.New(reg)

	catalogRepo := repo.NewCatalogRepo(db)
	inventoryRepo := repo.NewInventoryRepo(db)
	orderRepo := repo.NewOrderRepo(db)
	outboxRepo := repo.NewOutboxRepo(db)

	orderService := service.NewOrderService(db, catalogRepo, inventoryRepo, orderRepo, outboxRepo, zlog, service.Options{
		MaxAttempts: cfg.OrderMaxAttempts,
		Topic:       cfg.KafkaTopic,
		Metrics:     m,
	})

	router := handler.NewRouter(handler.RouterConfig{
		Orders:         handler.NewOrderHandler(orderService, cfg.Rates(), cfg.OrderTimeout, zlog),
		Health:         dbService,
		Metrics:        m,
		Gatherer:       reg,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Log:            zlog,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zlog.Info("starting http server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		zlog.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		publisher := events.NewKafkaPublisher(brokers, zlog)
		defer publisher.Close()

		relay := worker.NewOutboxRelay(outboxRepo, publisher, zlog, m, cfg.OutboxInterval, cfg.OutboxBatch)
		g.Go(func() error {
			relay.Run(ctx)
			return nil
		})
	} else {
		zlog.Warn("KAFKA_BROKERS not set, outbox events stay unpublished")
	}

	return g.Wait()
}
