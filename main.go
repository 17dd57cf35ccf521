package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"

	"yurica-pos/internal/analytics"
	"yurica-pos/internal/api"
	"yurica-pos/internal/config"
	"yurica-pos/internal/database"
	eventsdb "yurica-pos/internal/events/db"
	"yurica-pos/internal/ingest"
	"yurica-pos/internal/kafka"
	"yurica-pos/internal/logger"
	"yurica-pos/internal/menu"
	menudb "yurica-pos/internal/menu/db"
	"yurica-pos/internal/metrics"
	"yurica-pos/internal/models"
	"yurica-pos/internal/order"
	"yurica-pos/internal/sse"
)

func connectDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) *bun.DB {
	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	if err := database.Migrate(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
	log.Info("DATABASE", "✅ Schema is up to date")
	return bunDB
}

// connectCache returns nil when REDIS_ADDR is unset or unreachable; prices
// are then read from the database on every order.
func connectCache(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, *menu.PriceCache) {
	if cfg.Addr == "" {
		log.Info("REDIS", "REDIS_ADDR not set, menu price cache disabled")
		return nil, nil
	}
	client, err := menu.ConnectRedis(ctx, cfg.Addr, cfg.Password, cfg.DB, log)
	if err != nil {
		log.Warn("REDIS", fmt.Sprintf("Menu price cache disabled: %v", err))
		return nil, nil
	}
	return client, menu.NewPriceCache(client, cfg.PriceTTL)
}

func startRelay(ctx context.Context, cfg config.KafkaConfig, log *logger.Logger) *kafka.Relay {
	if !cfg.Enabled {
		log.Info("KAFKA", "KAFKA_ENABLED is false, events are not republished")
		return nil
	}

	if err := kafka.EnsureTopicsExist(ctx, cfg.Brokers, []string{cfg.Topic}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	} else {
		log.Info("KAFKA", "Required topics ensured successfully")
	}

	relay := kafka.NewRelay(kafka.NewProducer(cfg.Brokers, cfg.Topic, log), 0, log)
	relay.OnFailure = func(models.Event, error) {
		metrics.KafkaPublishFailuresTotal.Inc()
	}
	go relay.Run(ctx)
	log.Info("KAFKA", fmt.Sprintf("Republishing events to %s via %v", cfg.Topic, cfg.Brokers))
	return relay
}

func main() {
	loadedEnv := config.LoadDotEnv()
	cfg := config.Load()

	log := logger.NewLogger(logger.Options{
		Dir:     cfg.Log.Dir,
		Level:   cfg.Log.Level,
		NoColor: cfg.Log.NoColor,
	})
	defer log.Close()

	log.Info("APP", "Starting POS event service")
	if loadedEnv {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	} else {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB := connectDatabase(ctx, cfg, log)
	defer bunDB.Close()

	store := eventsdb.New(bunDB)
	projection := order.NewProjection()
	if err := projection.Rebuild(ctx, store); err != nil {
		log.Fatal("ORDERS", fmt.Sprintf("Rebuilding order view failed: %v", err))
	}
	log.Info("ORDERS", fmt.Sprintf("Order view rebuilt with %d orders", projection.Len()))

	redisClient, priceCache := connectCache(ctx, cfg.Redis, log)
	if redisClient != nil {
		defer redisClient.Close()
	}
	menuService := menu.NewService(menudb.New(bunDB), priceCache, log)

	hub := sse.NewHub(cfg.Stream.BufferSize)
	hub.OnDrop = func(sub *sse.Subscriber) {
		log.LogStream("DROP", sub.ID, "send buffer full, subscriber pruned")
	}
	metrics.Register(hub.Count)

	var opts []ingest.Option
	relay := startRelay(ctx, cfg.Kafka, log)
	if relay != nil {
		opts = append(opts, ingest.WithRepublisher(relay))
	}
	ingestService := ingest.NewService(store, projection, hub, menuService, log, opts...)

	handler := &api.Handler{
		Events: store,
		Ingest: ingestService,
		Orders: projection,
		Sales:  analytics.NewService(store, projection, cfg.Sales.Location()),
		Menu:   menuService,
		Hub:    hub,
		Logger: log,
		Options: api.Options{
			HistoryDefault: cfg.Events.HistoryDefault,
			HistoryMax:     cfg.Events.HistoryMax,
			KeepAlive:      cfg.Stream.KeepAlive,
		},
	}

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      api.NewRouter(handler, cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 POS event service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	// Streams only end once their subscribers are closed.
	hub.Close()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ POS event service shutdown complete")
	}

	if relay != nil {
		if err := relay.Close(); err != nil {
			log.Error("KAFKA", fmt.Sprintf("Closing producer: %v", err))
		}
	}
}
