package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/comanda-pos/api/internal/config"
	"github.com/comanda-pos/api/internal/database"
	"github.com/comanda-pos/api/internal/enum"
	"github.com/comanda-pos/api/internal/event"
	"github.com/comanda-pos/api/internal/handler"
	"github.com/comanda-pos/api/internal/router"
	"github.com/comanda-pos/api/internal/seed"
	"github.com/comanda-pos/api/internal/service"
	"github.com/comanda-pos/api/internal/store/memory"
	"github.com/comanda-pos/api/internal/ws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// queries is what both store backends provide.
type queries interface {
	service.Store
	service.Customers
	handler.AuthStore
	handler.CatalogStore
	seed.Seeder
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		pool     service.TxBeginner
		q        queries
		newStore service.NewStore
	)
	switch cfg.Store {
	case enum.StoreMemory:
		db := memory.New()
		pool, q = db, db.Queries()
		newStore = func(dbtx database.DBTX) service.Store { return db.Bind(dbtx) }
		if _, err := seed.Run(ctx, db.Queries(), seed.Options{
			Email:    cfg.SeedEmail,
			Password: cfg.SeedPassword,
			Name:     cfg.SeedName,
			Tables:   cfg.SeedTables,
		}); err != nil {
			log.Fatalf("Failed to seed memory store: %v", err)
		}
		log.Println("Using in-memory store; data is lost on exit")
	default:
		pgPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Unable to connect to database: %v", err)
		}
		defer pgPool.Close()
		if err := pgPool.Ping(ctx); err != nil {
			log.Fatalf("Unable to ping database: %v", err)
		}
		log.Println("Connected to database")
		pool, q = pgPool, database.New(pgPool)
		newStore = func(dbtx database.DBTX) service.Store { return database.New(dbtx) }
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	sinks := event.Multi{hub}
	if cfg.AMQPURL != "" {
		conn, err := amqp091.Dial(cfg.AMQPURL)
		if err != nil {
			log.Fatalf("Unable to connect to AMQP broker: %v", err)
		}
		defer conn.Close()
		ch, err := conn.Channel()
		if err != nil {
			log.Fatalf("Unable to open AMQP channel: %v", err)
		}
		sink, err := event.NewAMQPSink(ch, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("Unable to set up AMQP sink: %v", err)
		}
		sinks = append(sinks, sink)
		log.Printf("Publishing events to AMQP exchange %s", cfg.AMQPExchange)
	}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("Unable to ping redis: %v", err)
		}
		sinks = append(sinks, event.NewRedisSink(client))
		log.Println("Publishing events to redis pub/sub")
	}

	engine := service.NewTabEngine(pool, q, newStore,
		service.WithLogger(logger),
		service.WithSink(sinks),
		service.WithLockTimeout(cfg.LockWait),
	)

	r := router.New(cfg, router.Deps{
		Staff:    q,
		Catalog:  q,
		Engine:   engine,
		Tables:   service.NewTableRegistry(engine, q),
		Orders:   service.NewOrderLedger(engine, q),
		Payments: service.NewPaymentProcessor(engine),
		Credits:  service.NewCreditLedger(engine, q),
		Hub:      hub,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: graceful shutdown: %v", err)
	}
}
