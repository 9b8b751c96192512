/**
 * @description
 * This is the main entry point for the wallet-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, external API clients, the message broker, the repository, the
 * core application service, and the HTTP server. It wires everything together
 * and starts the service.
 *
 * @dependencies
 * - net/http, os/signal: Standard Go libraries for the HTTP server and shutdown.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/rs/zerolog: Structured logging.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages.
 * - pkg/paystack, pkg/vtu, pkg/rabbitmq: External service clients.
 */

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dataflare/wallet-service/internal/api"
	"github.com/dataflare/wallet-service/internal/app"
	"github.com/dataflare/wallet-service/internal/config"
	"github.com/dataflare/wallet-service/internal/store"
	"github.com/dataflare/wallet-service/pkg/paystack"
	"github.com/dataflare/wallet-service/pkg/rabbitmq"
	"github.com/dataflare/wallet-service/pkg/vtu"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if strings.EqualFold(os.Getenv("LOG_PRETTY"), "true") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatal().Str("env", "JWT_SECRET").Msg("jwt secret must be configured")
	}
	if strings.TrimSpace(cfg.PaystackSecretKey) == "" {
		log.Fatal().Str("env", "PAYSTACK_SECRET_KEY").Msg("paystack secret key must be configured")
	}

	log.Info().Str("component", "bootstrap").Str("port", cfg.ServerPort).Msg("starting wallet-service")

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("database url parse failed")
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts behind poolers.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer dbpool.Close()
	log.Info().Str("component", "bootstrap").Msg("database connected")

	// Initialize the RabbitMQ producer for settlement events. The broker being
	// down must not prevent boot; events degrade to the no-op fallback.
	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Warn().Str("component", "bootstrap").Err(err).Msg("rabbitmq unavailable; using fallback producer")
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		producer = eventProducer
		defer eventProducer.Close()
		log.Info().Str("component", "bootstrap").Msg("rabbitmq producer connected")
	}

	// External provider clients.
	paystackClient := paystack.NewClient(cfg.PaystackBaseURL, cfg.PaystackSecretKey)
	vtuClient := vtu.NewClient(cfg.VTUBaseURL, cfg.VTUUserID, cfg.VTUAPIKey, time.Duration(cfg.VTUTimeoutSeconds)*time.Second)

	// Optional Redis connection for rate limiting.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.Warn().Str("component", "bootstrap").Str("env", "REDIS_URL").Msg("redis url missing; rate limiting disabled")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Warn().Str("component", "bootstrap").Err(parseErr).Msg("redis url parse failed; rate limiting disabled")
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Warn().Str("component", "bootstrap").Err(pingErr).Msg("redis ping failed; rate limiting disabled")
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Info().Str("component", "bootstrap").Msg("redis connected")
			}
			cancelPing()
		}
	}

	repository := store.NewPostgresRepository(dbpool)

	walletService := app.NewService(repository, paystackClient, vtuClient, producer, app.Options{
		PaystackSecretKey: cfg.PaystackSecretKey,
		CallbackURL:       cfg.FundingCallbackURL,
		MinFundingKobo:    cfg.MinFundingKobo,
		ReferralBonusKobo: cfg.ReferralBonusKobo,
		MaxAdjustmentKobo: cfg.MaxAdjustmentKobo,
		EventExchange:     cfg.EventExchange,
	})

	var limiter *app.RedisRateLimiter
	if redisClient != nil {
		limiter = app.NewRedisRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}

	tokens := api.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTTTLHours)*time.Hour)
	handlers := api.NewWalletHandlers(walletService, tokens, limiter, api.RateLimits{
		FundingPerMinute:  cfg.FundingRateLimitPerMinute,
		PurchasePerMinute: cfg.PurchaseRateLimitPerMinute,
	})

	router := api.WalletRoutes(handlers, tokens)

	// Background sweep for purchases stranded pending by a crash or timeout.
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go walletService.RunPendingPurchaseSweeper(
		sweepCtx,
		time.Duration(cfg.SweepIntervalSeconds)*time.Second,
		time.Duration(cfg.SweepMinAgeSeconds)*time.Second,
	)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Info().Str("component", "http").Str("addr", serverAddr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info().Str("component", "http").Msg("shutdown started")

	stopSweep()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Str("component", "http").Err(err).Msg("shutdown failed")
	}

	log.Info().Str("component", "http").Msg("shutdown complete")
}
