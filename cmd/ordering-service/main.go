package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	cartapp "github.com/dmehra2102/restaurant-ordering/internal/cart/application"
	carthttp "github.com/dmehra2102/restaurant-ordering/internal/cart/infrastructure/http"
	cartpg "github.com/dmehra2102/restaurant-ordering/internal/cart/infrastructure/postgres"
	cartredis "github.com/dmehra2102/restaurant-ordering/internal/cart/infrastructure/redis"
	catalogapp "github.com/dmehra2102/restaurant-ordering/internal/catalog/application"
	catalogpg "github.com/dmehra2102/restaurant-ordering/internal/catalog/infrastructure/postgres"
	checkoutapp "github.com/dmehra2102/restaurant-ordering/internal/checkout/application"
	checkouthttp "github.com/dmehra2102/restaurant-ordering/internal/checkout/infrastructure/http"
	orderapp "github.com/dmehra2102/restaurant-ordering/internal/order/application"
	orderhttp "github.com/dmehra2102/restaurant-ordering/internal/order/infrastructure/http"
	orderkafka "github.com/dmehra2102/restaurant-ordering/internal/order/infrastructure/kafka"
	orderpg "github.com/dmehra2102/restaurant-ordering/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/restaurant-ordering/internal/platform/grpcserver"
	"github.com/dmehra2102/restaurant-ordering/internal/platform/httpx"
	"github.com/dmehra2102/restaurant-ordering/internal/platform/pgdb"
	"github.com/dmehra2102/restaurant-ordering/pkg/config"
	"github.com/dmehra2102/restaurant-ordering/pkg/idempotency"
	"github.com/dmehra2102/restaurant-ordering/pkg/logging"
	"github.com/dmehra2102/restaurant-ordering/pkg/outbox"
	"github.com/dmehra2102/restaurant-ordering/pkg/shutdown"
	"github.com/dmehra2102/restaurant-ordering/pkg/tracing"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.New("error").Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level).With("service", cfg.Service.Name)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.Service.Name, cfg.Tracing.Endpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}

	// Postgres
	pool, err := pgdb.Connect(ctx, cfg.Postgres.URL, cfg.Postgres.MaxConns)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	if err := pgdb.Migrate(ctx, pool); err != nil {
		log.Error("pg migrate failed", "err", err)
		os.Exit(1)
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		DialTimeout:  cfg.Redis.Timeout,
		ReadTimeout:  cfg.Redis.Timeout,
		WriteTimeout: cfg.Redis.Timeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// The cart falls back to Postgres while Redis is away.
		log.Warn("redis unreachable at start", "addr", cfg.Redis.Addr, "err", err)
	}
	idem := idempotency.NewStore(rdb, 24*time.Hour)

	// Catalog and cart
	catalog := catalogapp.NewService(catalogpg.NewRepository(log, pool))
	backup := cartpg.NewBackup(log, pool)
	carts := cartapp.NewTieredStore(log, cartredis.NewCache(rdb), backup)
	cartSvc := cartapp.NewService(log, catalog, carts, cartapp.WithTTL(cfg.Cart.TTL))

	// Order ledger
	ledger := orderapp.NewLedger(log, orderpg.NewRepository(log, pool), orderapp.Settings{
		DefaultTaxRate:   cfg.Order.TaxRate(),
		DeliveryFeeCents: cfg.Order.DeliveryFeeCents,
		Currency:         cfg.Order.Currency,
		Location:         cfg.Order.Location(),
	})
	checkout := checkoutapp.NewCoordinator(log, cartSvc, ledger, idem)

	// Outbox relay
	writer := orderkafka.NewWriter(cfg.Kafka.Brokers)
	dispatch := outbox.NewDispatcher(log, writer, cfg.Kafka.OutboxTopic)
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, cfg.Service.Name+"-relay")
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	// Payment events
	reader := orderkafka.NewReader(cfg.Kafka.Brokers, cfg.Kafka.PaymentTopic, cfg.Kafka.GroupID)
	consumer := orderkafka.NewPaymentConsumer(log, reader, ledger, idem)
	go func() {
		if err := consumer.Run(ctx); err != nil {
			log.Error("payment consumer stopped", "err", err)
		}
	}()

	go backup.RunJanitor(ctx, time.Hour, time.Hour)

	// gRPC health
	gs := grpcserver.New(log,
		grpcserver.Check{Name: "postgres", Fn: pool.Ping},
		grpcserver.Check{Name: "redis", Fn: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		grpcserver.Check{Name: "kafka", Fn: func(ctx context.Context) error { return orderkafka.Ping(ctx, cfg.Kafka.Brokers) }},
	)
	if err := gs.Run(cfg.GRPC.Addr); err != nil {
		log.Error("grpc server failed", "err", err)
		os.Exit(1)
	}
	go gs.Watch(ctx, 10*time.Second)

	// HTTP
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { httpx.OK(w, "ok") })
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireTenant(true))
		carthttp.NewHandler(log, cartSvc).Routes(r)
		checkouthttp.NewHandler(log, checkout).Routes(r)
	})
	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireTenant(false))
		orderhttp.NewHandler(log, ledger).Routes(r)
	})

	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	go func() {
		log.Info("http listening", "addr", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdown.Run(log, 15*time.Second,
		shutdown.Hook{Name: "http", Fn: srv.Shutdown},
		shutdown.Hook{Name: "grpc", Fn: gs.Stop},
		shutdown.Hook{Name: "cart-mirrors", Fn: carts.Wait},
		shutdown.Hook{Name: "kafka-writer", Fn: func(context.Context) error { return writer.Close() }},
		shutdown.Hook{Name: "redis", Fn: func(context.Context) error { return rdb.Close() }},
		shutdown.Hook{Name: "postgres", Fn: func(context.Context) error { pool.Close(); return nil }},
		shutdown.Hook{Name: "tracing", Fn: tp.Shutdown},
	)
	log.Info("ordering-service shutdown complete")
}
