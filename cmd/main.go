package main

import (
	"context"
	"database/sql"
	"inventory-service/app/broadcast"
	"inventory-service/app/domain"
	handler "inventory-service/app/handler/api"
	"inventory-service/app/middleware"
	"inventory-service/app/repository/broker"
	"inventory-service/app/repository/db"
	"inventory-service/app/repository/lock"
	"inventory-service/app/repository/memory"
	"inventory-service/app/usecase"
	"inventory-service/config"
	"inventory-service/pkg/logger"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	slogfiber "github.com/samber/slog-fiber"
)

type repositories struct {
	transactor   domain.Transactor
	stocks       domain.StockRepository
	movements    domain.MovementRepository
	alerts       domain.AlertRepository
	reservations domain.ReservationRepository
	orders       domain.OrderRepository
}

func newRepositories(ctx context.Context, cfg *config.Config) (repositories, func(), error) {
	if cfg.Db.Driver == config.StoreDriverMemory {
		slog.Warn("using the in-memory store, data is lost on restart")
		store := memory.NewStore()
		return repositories{
			transactor:   store,
			stocks:       store.Stocks(),
			movements:    store.Movements(),
			alerts:       store.Alerts(),
			reservations: store.Reservations(),
			orders:       store.Orders(),
		}, func() {}, nil
	}

	dbConn, err := db.NewPostgres(cfg.Db)
	if err != nil {
		return repositories{}, nil, err
	}
	if err := db.EnsureSchema(ctx, dbConn); err != nil {
		dbConn.Close()
		return repositories{}, nil, err
	}
	return postgresRepositories(dbConn), func() { dbConn.Close() }, nil
}

func postgresRepositories(dbConn *sql.DB) repositories {
	return repositories{
		transactor:   db.NewTransactor(dbConn),
		stocks:       db.NewStockRepository(dbConn),
		movements:    db.NewMovementRepository(dbConn),
		alerts:       db.NewAlertRepository(dbConn),
		reservations: db.NewReservationRepository(dbConn),
		orders:       db.NewOrderRepository(dbConn),
	}
}

// startBroker wires the cross-instance event fan-out. The returned function stops the relay
// and closes the connection; the sinks themselves are closed by the broadcaster.
func startBroker(ctx context.Context, cfg *config.Config, bus *broadcast.Broadcaster) (func(), error) {
	switch cfg.Broker.Driver {
	case config.BrokerDriverNats:
		nc, err := nats.Connect(cfg.Broker.NatsURL)
		if err != nil {
			return nil, err
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, err
		}
		if err := broker.EnsureStream(ctx, js, cfg.Broker.NatsStreamName); err != nil {
			nc.Close()
			return nil, err
		}

		bus.AddSink(broker.NewNatsSink(js, cfg.Broker.NatsStreamName))
		relay := broker.NewNatsRelay(js, cfg.Broker.NatsStreamName, bus)
		if err := relay.Start(ctx); err != nil {
			nc.Close()
			return nil, err
		}
		return func() {
			relay.Stop()
			nc.Drain()
		}, nil

	case config.BrokerDriverKafka:
		bus.AddSink(broker.NewKafkaSink(cfg.Broker.KafkaBrokers, cfg.Broker.KafkaTopic))
		relay := broker.NewKafkaRelay(cfg.Broker.KafkaBrokers, cfg.Broker.KafkaTopic, cfg.InstanceID, bus)
		relayCtx, cancel := context.WithCancel(ctx)
		go func() {
			if err := relay.Run(relayCtx); err != nil && relayCtx.Err() == nil {
				slog.Error("kafka relay stopped", "error", err)
			}
		}()
		return func() {
			cancel()
			relay.Close()
		}, nil

	default:
		slog.Info("event broker disabled, events stay in process")
		return func() {}, nil
	}
}

func newSweepLock(ctx context.Context, cfg *config.Config) (domain.SweepLock, func()) {
	if cfg.Redis.Addr == "" {
		return lock.NewLocalSweepLock(), func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unreachable, sweeps will be skipped until it recovers", "error", err)
	}
	return lock.NewRedisSweepLock(client, cfg.InstanceID, cfg.Inventory.SweepInterval), func() { client.Close() }
}

func main() {
	// init logger
	logger.InitLogger()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// init config
	cfg, err := config.InitConfig(ctx)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		return
	}

	repos, closeStore, err := newRepositories(ctx, cfg)
	if err != nil {
		slog.Error("store init failed", "driver", cfg.Db.Driver, "error", err)
		return
	}
	defer closeStore()

	bus := broadcast.New(cfg.InstanceID)
	defer bus.Close()
	bus.Subscribe(broadcast.Wildcard, broadcast.Wildcard, func(ctx context.Context, evt domain.Event) {
		slog.DebugContext(ctx, "[broadcast] event", "collection", evt.Collection, "event", evt.Event, "documentID", evt.DocumentID, "origin", evt.Origin)
	})

	stopBroker, err := startBroker(ctx, cfg, bus)
	if err != nil {
		slog.Error("broker init failed", "driver", cfg.Broker.Driver, "error", err)
		return
	}
	defer stopBroker()

	sweepLock, closeLock := newSweepLock(ctx, cfg)
	defer closeLock()

	ledger := usecase.NewStockLedger(repos.transactor, repos.stocks, repos.movements, repos.alerts, bus, cfg)
	reservations := usecase.NewReservationManager(ledger, repos.reservations, bus, cfg)
	orders := usecase.NewOrderCoordinator(ledger, reservations, repos.orders, bus, cfg)

	sweeper := usecase.NewReservationSweeper(reservations, sweepLock, cfg)
	go sweeper.Run(ctx)

	reqValidator := validator.New()
	stockHandler := handler.NewStockHandler(ledger, reqValidator)
	reservationHandler := handler.NewReservationHandler(reservations, reqValidator)
	orderHandler := handler.NewOrderHandler(orders, reqValidator)

	// Initialize HTTP web framework
	app := fiber.New()
	app.Use(healthcheck.New(healthcheck.Config{
		LivenessProbe: func(c *fiber.Ctx) bool {
			return true
		},
		LivenessEndpoint: "/live",
		ReadinessProbe: func(c *fiber.Ctx) bool {
			return true
		},
		ReadinessEndpoint: "/ready",
	}))
	webLogger := slog.New(&logger.RequestIDHandler{Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})})
	app.Use(slogfiber.New(webLogger))
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
	}))
	app.Use(middleware.RequestIDMiddleware())

	handler.SetupRouter(app, stockHandler, reservationHandler, orderHandler, cfg)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Failed to listen", "port", cfg.Port)
			return
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("Gracefully shutdown")
	stop()
	err = app.Shutdown()
	if err != nil {
		slog.Warn("Unfortunately the shutdown wasn't smooth", "err", err)
	}
}
