// cmd/hub/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"notification-hub/internal/api"
	"notification-hub/internal/common/aws"
	"notification-hub/internal/common/config"
	"notification-hub/internal/common/database"
	"notification-hub/internal/common/logger"
	"notification-hub/internal/common/observability"
	"notification-hub/internal/dispatch"
	"notification-hub/internal/preference"
	"notification-hub/internal/realtime"
	"notification-hub/internal/storage"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		zapLog := logger.New("info", "console")
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting notification hub...")

	obs := observability.New("notification-hub")
	defer obs.Shutdown()

	tracing, err := observability.NewTracing("notification-hub", cfg.App.JaegerEndpoint)
	if err != nil {
		zapLog.Warn("tracing init failed, continuing without export", zap.Error(err))
	} else {
		defer tracing.Shutdown()
	}

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional, search degrades) ---
	var searchIndex *storage.NotificationIndex
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Warn("elasticsearch unavailable, full-text search disabled", zap.Error(err))
	} else {
		searchIndex = storage.NewNotificationIndex(esClient.Client)
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Init AWS delivery clients ---
	sesClient, err := aws.NewSESClient(ctx, cfg.Notifications.AWS.Region)
	if err != nil {
		zapLog.Fatal("ses client init failed", zap.Error(err))
	}
	snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
	if err != nil {
		zapLog.Fatal("sns client init failed", zap.Error(err))
	}

	// --- Wire components ---
	notifications := storage.NewNotificationRepo(pg.DB)
	templates := storage.NewTemplateRepo(pg.DB)
	prefRepo := storage.NewPreferenceRepo(pg.DB)
	prefCache := preference.NewCache(rdb.Client)
	prefService := preference.NewService(prefRepo, prefCache)

	hub := realtime.NewHub(log)
	hubCtx, cancelHub := context.WithCancel(ctx)
	defer cancelHub()
	go func() {
		if err := hub.Run(hubCtx); err != nil && err != context.Canceled {
			log.Error("hub loop exited", map[string]interface{}{"error": err.Error()})
		}
	}()

	dispatcher := dispatch.New(
		cfg.Notifications, templates, notifications, searchIndex,
		prefService, hub, sesClient, snsClient, obs, tracing, log,
	)

	server := api.NewServer(notifications, templates, searchIndex, prefService, dispatcher, hub, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      server.Routes(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Wait for shutdown signal ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zapLog.Info("Shutting down", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.ShutdownGrace)*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http shutdown failed", zap.Error(err))
	}
	cancelHub()

	zapLog.Info("Notification hub stopped")
}
