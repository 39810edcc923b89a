// README: Entry point; loads config, wires inventory services and serves HTTP until signalled.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tourstay/internal/config"
	"tourstay/internal/events"
	httptransport "tourstay/internal/http"
	"tourstay/internal/infra"
	"tourstay/internal/modules/calendar"
	"tourstay/internal/modules/departure"
	"tourstay/internal/modules/pricing"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := infra.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis.Addr)
	if err != nil {
		logger.Warn("redis unavailable, quotes are served uncached until it recovers", "error", err)
	}
	defer redisClient.Close()

	var publisher events.Publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := infra.NewSyncProducer(cfg.Kafka.Brokers, nil)
		if err != nil {
			log.Fatal(err)
		}
		kafkaPub := events.NewKafkaPublisher(producer, cfg.Kafka.Topic)
		defer kafkaPub.Close()
		publisher = kafkaPub
	} else {
		logger.Warn("kafka brokers not configured, inventory events are discarded")
	}

	var verifier infra.TokenVerifier = infra.DenyAllVerifier{}
	if cfg.Firebase.ProjectID != "" {
		verifier, err = infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatalf("firebase init: %v", err)
		}
	} else {
		logger.Warn("TOURSTAY_FIREBASE_PROJECT_ID not set, authenticated routes reject every caller")
	}

	departureSvc := departure.NewService(departure.NewStore(dbPool), publisher, logger)
	calendarSvc := calendar.NewService(calendar.NewStore(dbPool), publisher, logger, calendar.Limits{
		DefaultSpanDays: cfg.Calendar.DefaultSpanDays,
		MaxSpanDays:     cfg.Calendar.MaxSpanDays,
	})
	pricingSvc := pricing.NewService(
		pricing.NewStore(dbPool),
		pricing.NewRedisCache(redisClient, cfg.Pricing.QuoteCacheTTL),
		publisher,
		logger,
	)

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Departures: departureSvc,
		Calendar:   calendarSvc,
		Pricing:    pricingSvc,
		Verifier:   verifier,
		Logger:     logger,
	})
	server := handler.HTTPServer(cfg.HTTP.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", "err", err)
		}
	}()

	logger.Info("http listening", "addr", cfg.HTTP.Addr, "env", cfg.Env)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
