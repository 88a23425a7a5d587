// README: Entry point; loads config, wires stores and services, serves HTTP until SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/config"
	"ridehail/internal/event"
	httptransport "ridehail/internal/http"
	"ridehail/internal/infra"
	"ridehail/internal/logger"
	"ridehail/internal/modules/account"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/modules/review"
	"ridehail/internal/modules/ride"
	"ridehail/internal/modules/session"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	log := logger.New("ride-api", cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("ride-api stopped", "error", err.Error())
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.DB.Migrate {
		if err := infra.Migrate(cfg.DB.DSN); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient, err := infra.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var publisher event.Publisher = event.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := event.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer kp.Close()
		publisher = kp
		log.Info("kafka events enabled", "topic", cfg.Kafka.Topic)
	} else {
		log.Info("kafka brokers not configured; events disabled")
	}

	pricingSvc := pricing.NewService(pricing.NewStore(dbPool))
	accountSvc := account.NewService(account.NewStore(dbPool), log)
	rideSvc := ride.NewService(ride.NewStore(dbPool), pricingSvc, publisher, log)
	reviewSvc := review.NewService(review.NewStore(dbPool), publisher, log)
	sessions := session.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, session.NewRedisRevocationStore(redisClient))

	gin.SetMode(gin.ReleaseMode)
	handler := httptransport.NewServer(httptransport.ServerDeps{
		Accounts:       accountSvc,
		Pricing:        pricingSvc,
		Rides:          rideSvc,
		Reviews:        reviewSvc,
		Sessions:       sessions,
		Logger:         log,
		RequestTimeout: cfg.HTTP.RequestTimeout,
	})

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
