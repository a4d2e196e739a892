package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"ms-livestream/internal/access"
	"ms-livestream/internal/api"
	"ms-livestream/internal/auth"
	"ms-livestream/internal/catalog"
	catalogdb "ms-livestream/internal/catalog/db"
	catalogredis "ms-livestream/internal/catalog/redis"
	"ms-livestream/internal/checkout"
	checkoutredis "ms-livestream/internal/checkout/redis"
	"ms-livestream/internal/config"
	"ms-livestream/internal/database"
	"ms-livestream/internal/database/migrations"
	"ms-livestream/internal/inventory"
	inventorydb "ms-livestream/internal/inventory/db"
	"ms-livestream/internal/kafka"
	"ms-livestream/internal/logger"
	"ms-livestream/internal/payment"
	"ms-livestream/internal/playback"
	"ms-livestream/internal/purchase"
	purchasedb "ms-livestream/internal/purchase/db"
	"ms-livestream/internal/sse"
	"ms-livestream/internal/webhook"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
)

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if !cfg.Enabled {
		log.Warn("REDIS", "Redis disabled; running without event cache and checkout guard")
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("REDIS", fmt.Sprintf("Redis unreachable at %s, running without it: %v", cfg.Addr, err))
		client.Close()
		return nil
	}
	log.Info("REDIS", fmt.Sprintf("✅ Redis connection successful to %s (DB: %d)", cfg.Addr, cfg.DB))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting livestream service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Migrations.Auto {
		runner := migrations.NewRunner(cfg.Database.DSN, cfg.Migrations, log)
		if err := runner.Up(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		if err := runner.Close(); err != nil {
			log.Warn("MIGRATE", err.Error())
		}
	}

	bunDB, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	rdb := connectRedis(ctx, cfg.Redis, log)
	if rdb != nil {
		defer rdb.Close()
	}

	purchases := &purchasedb.DB{Bun: bunDB}
	ledger := inventory.NewLedger(&inventorydb.DB{Bun: bunDB}, log)

	tokens, err := access.NewService(cfg.Access)
	if err != nil {
		log.Fatal("ACCESS", err.Error())
	}

	var cache catalog.Cache
	var guard checkout.Guard
	if rdb != nil {
		cache = catalogredis.NewEventCache(rdb, cfg.Redis.EventCacheTTL)
		guard = checkoutredis.NewGuard(rdb, cfg.Redis.CheckoutGuardTTL, log)
	}
	catalogService := catalog.NewService(&catalogdb.DB{Bun: bunDB}, cache, log)

	emitter := sse.NewPurchaseEventEmitter()
	notifiers := purchase.MultiNotifier{catalogService, emitter}

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.AllTopics(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}

		producer := kafka.NewProducer(cfg.Kafka.Brokers, log)
		defer producer.Close()
		notifiers = append(notifiers, kafka.NewPurchasePublisher(producer, cfg.Kafka.Topics, log))

		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.EventStatus, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx, catalogService.UpdateEventStatus); err != nil {
				log.Error("KAFKA", fmt.Sprintf("Event status consumer stopped: %v", err))
			}
		}()
	} else {
		log.Warn("KAFKA", "Kafka disabled; purchase notifications go to SSE clients only")
	}

	machine := purchase.NewMachine(purchases, ledger, tokens, notifiers, log, cfg.Access.TokenTTL)

	gateway, err := payment.NewStripeGateway(cfg.Stripe, log)
	if err != nil {
		log.Fatal("STRIPE", err.Error())
	}

	checkoutService := checkout.NewService(ledger, catalogService, purchases, gateway, guard, cfg.Stripe, log)
	reconciler := webhook.NewReconciler(gateway, machine, log)

	signer, err := playback.NewSigner(cfg.Stream)
	if err != nil {
		log.Fatal("PLAYBACK", err.Error())
	}
	gate := playback.NewGate(tokens, purchases, signer, cfg.Stream.GrantTTL, log)

	var verifier auth.Verifier
	if cfg.OIDC.Enabled {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.OIDC.Issuer)
		if err != nil {
			log.Fatal("AUTH", err.Error())
		}
		verifier = oidcVerifier
		log.Info("AUTH", fmt.Sprintf("Buyer sign-in enabled for issuer %s", cfg.OIDC.Issuer))
	}

	handler := api.NewHandler(checkoutService, reconciler, gate, catalogService, machine, emitter,
		access.NewQRGenerator(cfg.PublicBaseURL), log)

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      api.NewRouter(handler, verifier),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	server.RegisterOnShutdown(emitter.Close)

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Livestream service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	<-ctx.Done()
	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Livestream service shutdown complete")
	}
}
