package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/artisansalley/backend/internal/catalog"
	"github.com/artisansalley/backend/internal/config"
	"github.com/artisansalley/backend/internal/db"
	"github.com/artisansalley/backend/internal/notification"
	"github.com/artisansalley/backend/internal/order"
	"github.com/artisansalley/backend/internal/transport"
	"github.com/artisansalley/backend/internal/user"
	"github.com/artisansalley/backend/pkg/metrics"
)

func main() {
	zerolog.SetGlobalLevel(zerolog.DebugLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "commerce-core").Logger()

	log.Info().Msg("Commerce core starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	dbConn, err := db.New(context.Background(), cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbConn.Close()

	if err := db.ApplyMigrations(cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	producer, err := notification.NewSyncProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Kafka")
	}
	dispatcher := notification.NewKafkaDispatcher(producer, cfg.Kafka.Topic)
	defer func() {
		if err := dispatcher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Kafka producer")
		}
	}()

	orderRepo := order.NewRepository(dbConn.Pool)
	productRepo := catalog.NewRepository(dbConn.Pool)
	userRepo := user.NewRepository(dbConn.Pool)

	svc := order.NewService(orderRepo, productRepo, userRepo, dispatcher, order.ServiceConfig{
		TxTimeout:     cfg.App.OrderTxTimeout,
		NotifyTimeout: cfg.App.NotifyTimeout,
	})

	m := metrics.NewServerMetrics("commerce_core")
	router := transport.NewRouter(svc, userRepo, m)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Shutdown failed")
	}
	log.Info().Msg("Server stopped")
}
