package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	accountapp "github.com/dmehra2102/storefront/internal/account/application"
	accounthttp "github.com/dmehra2102/storefront/internal/account/infrastructure/http"
	accountmem "github.com/dmehra2102/storefront/internal/account/infrastructure/memory"
	accountpg "github.com/dmehra2102/storefront/internal/account/infrastructure/postgres"
	invpg "github.com/dmehra2102/storefront/internal/inventory/infrastructure/postgres"
	"github.com/dmehra2102/storefront/internal/order/application"
	ordergrpc "github.com/dmehra2102/storefront/internal/order/infrastructure/grpc"
	orderhttp "github.com/dmehra2102/storefront/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/storefront/internal/order/infrastructure/kafka"
	ordermem "github.com/dmehra2102/storefront/internal/order/infrastructure/memory"
	orderpg "github.com/dmehra2102/storefront/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/storefront/pkg/config"
	"github.com/dmehra2102/storefront/pkg/database"
	"github.com/dmehra2102/storefront/pkg/idempotency"
	"github.com/dmehra2102/storefront/pkg/logging"
	"github.com/dmehra2102/storefront/pkg/outbox"
	"github.com/dmehra2102/storefront/pkg/shutdown"
	"github.com/dmehra2102/storefront/pkg/tracing"
)

// storage is what one STORAGE backend contributes to the service.
type storage struct {
	orders   application.OrderRepository
	catalog  application.ProductCatalog
	accounts accountapp.AccountRepository
	outbox   outbox.Store
	ping     func(ctx context.Context) error
	closeFn  func()
}

func main() {
	cfg, err := config.LoadOrderService()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, "order-service", cfg.OtelEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	var st *storage
	switch cfg.Storage {
	case config.StorageMemory:
		st, err = memoryStorage(ctx, log)
	default:
		st, err = postgresStorage(ctx, log, cfg.PGURL)
	}
	if err != nil {
		log.Error("storage init failed", "storage", cfg.Storage, "err", err)
		os.Exit(1)
	}
	defer st.closeFn()

	// Catalog lookups go to the inventory-service when it is configured.
	catalog := st.catalog
	var invClient *ordergrpc.InventoryClient
	if cfg.InventoryGRPC != "" {
		invClient, err = ordergrpc.NewInventoryClient(log, cfg.InventoryGRPC)
		if err != nil {
			log.Error("inventory client failed", "addr", cfg.InventoryGRPC, "err", err)
			os.Exit(1)
		}
		catalog = invClient
	}

	publisher, closePublisher, err := newPublisher(log, cfg)
	if err != nil {
		log.Error("broker init failed", "broker", cfg.Broker, "err", err)
		os.Exit(1)
	}
	if !cfg.FeedsStockProjection() {
		log.Warn("order events are not published to kafka; the inventory-service stock movement projection receives nothing",
			"broker", cfg.Broker)
	}
	relay := outbox.NewRelay(log, st.outbox, publisher, "order-service-relay")

	accounts := accountapp.NewService(log, st.accounts)
	svc := application.NewService(log, st.orders, catalog, accounts)

	var commandMW []func(http.Handler) http.Handler
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		commandMW = append(commandMW, idempotency.Middleware(log, idempotency.NewStore(rdb, cfg.IdempotencyTTL)))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := st.ping(r.Context()); err != nil {
			http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Mount("/accounts", accounthttp.NewHandler(log, accounts).Routes())
	r.Mount("/", orderhttp.NewHandler(log, svc).Routes(commandMW...))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      otelhttp.NewHandler(r, "order-service"),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr, "storage", cfg.Storage, "broker", cfg.Broker)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	steps := []shutdown.Step{
		{Name: "http", Stop: srv.Shutdown},
		{Name: "publisher", Stop: closePublisher},
	}
	if invClient != nil {
		steps = append(steps, shutdown.Step{Name: "inventory-client", Stop: func(context.Context) error { return invClient.Close() }})
	}
	if rdb != nil {
		steps = append(steps, shutdown.Step{Name: "redis", Stop: func(context.Context) error { return rdb.Close() }})
	}
	steps = append(steps, shutdown.Step{Name: "tracer", Stop: tp.Shutdown})
	shutdown.Drain(log, 10*time.Second, steps...)
	log.Info("order-service shutdown complete")
}

func postgresStorage(ctx context.Context, log *slog.Logger, url string) (*storage, error) {
	pool, err := database.Connect(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, log, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &storage{
		orders:   orderpg.NewRepository(log, pool),
		catalog:  invpg.NewRepository(log, pool),
		accounts: accountpg.NewRepository(log, pool),
		outbox:   outbox.NewPostgresStore(log, pool),
		ping:     pool.Ping,
		closeFn:  pool.Close,
	}, nil
}

func memoryStorage(ctx context.Context, log *slog.Logger) (*storage, error) {
	orders, err := ordermem.NewStore()
	if err != nil {
		return nil, err
	}
	accounts, err := accountmem.NewStore()
	if err != nil {
		return nil, err
	}
	if err := seedDemo(ctx, orders, accounts); err != nil {
		return nil, err
	}
	log.Warn("running on in-memory storage; data is lost on exit")
	return &storage{
		orders:   orders,
		catalog:  orders,
		accounts: accounts,
		outbox:   orders,
		ping:     func(context.Context) error { return nil },
		closeFn:  func() {},
	}, nil
}

func newPublisher(log *slog.Logger, cfg *config.OrderService) (outbox.Publisher, func(context.Context) error, error) {
	if cfg.Broker == config.BrokerRabbitMQ {
		conn, ch, err := outbox.DialAMQP(cfg.AMQPURL, cfg.OutboxTopic)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func(context.Context) error {
			_ = ch.Close()
			return conn.Close()
		}
		return outbox.NewAMQPDispatcher(log, ch, cfg.OutboxTopic), closeFn, nil
	}
	writer := orderkafka.NewWriter(log, []string{cfg.KafkaAddr})
	return outbox.NewDispatcher(log, writer, cfg.OutboxTopic), writer.Close, nil
}
