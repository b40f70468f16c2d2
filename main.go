package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-checkin/internal/auth"
	"ms-checkin/internal/authz"
	"ms-checkin/internal/checkin_api"
	"ms-checkin/internal/config"
	"ms-checkin/internal/kafka"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/models"
	"ms-checkin/internal/qr"
	"ms-checkin/internal/redemption"
	ticket_db "ms-checkin/internal/tickets/db"
	tickets "ms-checkin/internal/tickets/service"
	"ms-checkin/internal/token"
)

func verifyConnections(ctx context.Context, cfg *config.Config, logger *logger.Logger) (*bun.DB, *redis.Client) {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		logger.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			logger.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		logger.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	logger.Info("DATABASE", "PostgreSQL connection successful")

	bunDB := bun.NewDB(sqldb, pgdialect.New())

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	logger.Info("DATABASE", fmt.Sprintf("Redis connection successful to %s", cfg.Redis.Addr))

	return bunDB, redisClient
}

func main() {
	logger := logger.NewLogger()
	defer logger.Close()

	logger.Info("APP", "Starting Check-in Service initialization")

	if err := godotenv.Load(); err != nil {
		logger.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	if cfg.Token.Secret == "" {
		logger.Fatal("CONFIG", "TOKEN_SECRET not set")
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	bunDB, redisClient := verifyConnections(ctx, cfg, logger)
	defer bunDB.Close()
	defer redisClient.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		logger.Info("KAFKA", fmt.Sprintf("Using Kafka brokers: %v", cfg.Kafka.Brokers))
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics.CheckinRedeemed)
		defer producer.Close()

		requiredTopics := []string{
			cfg.Kafka.Topics.TicketIssued,
			cfg.Kafka.Topics.CheckinRedeemed,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, requiredTopics); err != nil {
			logger.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
	} else {
		logger.Warn("KAFKA", "Kafka disabled, redemption events will not be published")
	}

	ticketDB := &ticket_db.DB{Bun: bunDB}
	ticketService := tickets.NewTicketService(ticketDB)

	gate := authz.NewCachedGate(authz.NewRoleGate(), redisClient)
	tokenService := token.NewService(cfg.Token.Secret, cfg.Token.TTL, gate)

	var publisher redemption.Publisher
	if producer != nil {
		publisher = producer
	}
	redemptionService := redemption.NewService(ticketDB, tokenService, publisher, logger)

	if cfg.Kafka.Enabled {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.TicketIssued, cfg.Kafka.GroupID)
		defer consumer.Close()
		go consumer.Start(ctx, func(event models.TicketIssuedEvent) {
			if err := ticketService.RegisterIssued(ctx, event); err != nil {
				logger.Error("KAFKA", fmt.Sprintf("Failed to register issued ticket %s: %v", event.TicketID, err))
			} else {
				logger.LogKafka("CONSUME", cfg.Kafka.Topics.TicketIssued, fmt.Sprintf("registered ticket %s", event.TicketID))
			}
		})
		logger.Info("KAFKA", "Ticket-issued consumer started")
	}

	handler := &checkin_api.Handler{
		Redemption: redemptionService,
		Tickets:    ticketService,
		Tokens:     tokenService,
		Gate:       gate,
		QR:         qr.NewGenerator(),
		Logger:     logger,
	}

	logger.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	r.Get("/api/checkin/events/{eventID}/count", handler.GetCheckedInCount)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(cfg.Auth.OIDCIssuer))
		logger.Info("AUTH", "OIDC middleware applied to protected API routes")

		r.Route("/api/checkin", func(r chi.Router) {
			r.Post("/redeem", handler.RedeemTicket)
			r.Route("/tickets/{ticketID}", func(r chi.Router) {
				r.Get("/", handler.ViewTicket)
				r.Post("/token", handler.MintToken)
			})
		})
		logger.Info("ROUTER", "Check-in routes registered under /api/checkin")
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("HTTP", fmt.Sprintf("Check-in Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	logger.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	logger.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		logger.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
		os.Exit(1)
	}
	logger.Info("HTTP", "Check-in Service shutdown complete")
}
