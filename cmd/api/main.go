package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/go-auth-api/internal/config"
	"github.com/go-auth-api/internal/infrastructure/dynamo"
	"github.com/go-auth-api/internal/infrastructure/eth"
	"github.com/go-auth-api/internal/infrastructure/events"
	jwtinfra "github.com/go-auth-api/internal/infrastructure/jwt"
	"github.com/go-auth-api/internal/infrastructure/smtp"
	"github.com/go-auth-api/internal/infrastructure/sns"
	transporthttp "github.com/go-auth-api/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	jwtProvider := jwtinfra.NewProvider(cfg)

	// SMTP mailer.
	mailer := smtp.NewMailer(cfg)

	// SNS SMS sender (optional — graceful fallback).
	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS sender not available: %v", err)
	}

	// Event publisher over Redis streams (optional — disabled without REDIS_URL).
	var publisher events.Publisher
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("invalid REDIS_URL: %v", err)
		}
		redisPub, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{Client: redis.NewClient(opts)},
			watermill.NewStdLogger(false, false),
		)
		if err != nil {
			log.Printf("WARN: event publisher not available: %v", err)
		} else {
			publisher = events.NewWatermillPublisher(redisPub)
		}
	}

	deps := &transporthttp.Deps{
		IdentityRepo: dynamo.NewIdentityRepo(dynamoClient, cfg.DynamoTables.Identities),
		OtpRepo:      dynamo.NewOtpRepo(dynamoClient, cfg.DynamoTables.OtpCodes),
		Mailer:       mailer,
		SMSSender:    smsSender,
		JWTProvider:  jwtProvider,
		Recoverer:    eth.NewPersonalSignRecoverer(),
		Publisher:    publisher,
	}

	router := transporthttp.NewRouter(cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s)", cfg.AppPort, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
