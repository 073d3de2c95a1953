package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/storefront/internal/inventory/application"
	invgrpc "github.com/dmehra2102/storefront/internal/inventory/infrastructure/grpc"
	inventoryKafka "github.com/dmehra2102/storefront/internal/inventory/infrastructure/kafka"
	inventoryDB "github.com/dmehra2102/storefront/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/storefront/pkg/config"
	"github.com/dmehra2102/storefront/pkg/database"
	"github.com/dmehra2102/storefront/pkg/idempotency"
	"github.com/dmehra2102/storefront/pkg/logging"
	"github.com/dmehra2102/storefront/pkg/shutdown"
	"github.com/dmehra2102/storefront/pkg/tracing"
)

func main() {
	cfg, err := config.LoadInventoryService()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "inventory-service", cfg.OtelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	pool, err := database.Connect(ctx, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, log, pool); err != nil {
		log.Error("migrate failed", "err", err)
		os.Exit(1)
	}

	repo := inventoryDB.NewRepository(log, pool)
	svc := application.NewService(log, repo, repo)

	gs, err := invgrpc.Run(cfg.GRPCAddr, invgrpc.NewServer(log, svc))
	if err != nil {
		log.Error("grpc server failed", "err", err)
		os.Exit(1)
	}
	log.Info("grpc listening", "addr", cfg.GRPCAddr)

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	idem := idempotency.NewStore(rdb, cfg.IdempotencyTTL)
	reader := inventoryKafka.NewReader([]string{cfg.KafkaAddr}, cfg.EventsTopic, cfg.ConsumerGroup)
	consumer := inventoryKafka.NewConsumer(log, reader, svc, idem)

	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("consumer stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdown.Drain(log, 10*time.Second,
		shutdown.Step{Name: "grpc", Stop: func(context.Context) error { gs.GracefulStop(); return nil }},
		shutdown.Step{Name: "redis", Stop: func(context.Context) error { return rdb.Close() }},
		shutdown.Step{Name: "tracer", Stop: tp.Shutdown},
	)
	log.Info("inventory-service shutdown complete")
}
