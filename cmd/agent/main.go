// cmd/agent/main.go

// The agent is the client-side runtime: it holds the local notification
// state, keeps one real-time connection to the hub, and falls back to
// polling while that connection is down.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"notification-hub/internal/client"
	"notification-hub/internal/common/config"
	"notification-hub/internal/common/logger"
	"notification-hub/internal/models"
	"notification-hub/internal/orchestrator"
	"notification-hub/internal/poller"
	"notification-hub/internal/realtime"
	"notification-hub/internal/store"
)

// prefSnapshot caches the last preference record fetched from the hub and
// serves it to the orchestrator's side effect gating.
type prefSnapshot struct {
	mu    sync.RWMutex
	prefs *models.NotificationPreference
}

func (p *prefSnapshot) Current() *models.NotificationPreference {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.prefs
}

func (p *prefSnapshot) set(prefs *models.NotificationPreference) {
	p.mu.Lock()
	p.prefs = prefs
	p.mu.Unlock()
}

// logNotifier logs delivery side effects. A desktop build swaps in a real
// toast/sound implementation.
type logNotifier struct {
	log logger.Logger
}

func (n *logNotifier) PlaySound(notif models.Notification) {
	n.log.Debug("play sound", map[string]interface{}{"id": notif.ID})
}

func (n *logNotifier) ShowDesktop(notif models.Notification) {
	n.log.Info("desktop notification", map[string]interface{}{
		"id":    notif.ID,
		"title": notif.Title,
	})
}

func (n *logNotifier) ShowToast(notif models.Notification) {
	n.log.Info("toast", map[string]interface{}{
		"id":    notif.ID,
		"title": notif.Title,
	})
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

	userID := os.Getenv("NOTIFICATION_USER_ID")
	if userID == "" {
		zapLog.Fatal("NOTIFICATION_USER_ID is required")
	}

	zapLog.Info("Starting notification agent", zap.String("userId", userID))

	apiClient := client.New(
		cfg.Notifications.API.BaseURL,
		userID,
		time.Duration(cfg.Notifications.API.Timeout)*time.Millisecond,
	)

	conn := realtime.NewConn(realtime.Options{
		URL:              cfg.Realtime.URL + "?user=" + userID,
		BackoffBase:      time.Duration(cfg.Realtime.BackoffBaseMs) * time.Millisecond,
		BackoffMax:       time.Duration(cfg.Realtime.BackoffMaxMs) * time.Millisecond,
		BackoffJitter:    cfg.Realtime.BackoffJitter,
		HandshakeTimeout: time.Duration(cfg.Realtime.HandshakeTimeout) * time.Second,
		WriteTimeout:     time.Duration(cfg.Realtime.WriteTimeoutSec) * time.Second,
		PongTimeout:      time.Duration(cfg.Realtime.PongTimeoutSec) * time.Second,
	}, log)
	defer conn.Close()

	stateStore := store.New()
	prefs := &prefSnapshot{}
	notifier := &logNotifier{log: log}

	orch := orchestrator.New(conn, stateStore, prefs, notifier, apiClient, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := orch.Run(ctx); err != nil && err != context.Canceled {
			log.Error("orchestrator exited", map[string]interface{}{"error": err.Error()})
		}
	}()

	// Initial connect failure is fine; the poller covers the gap while the
	// connection keeps redialing with backoff in the background.
	if err := conn.Connect(ctx); err != nil {
		log.Warn("initial connect failed, polling until the redial succeeds", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Seed local state from the hub.
	if fetched, err := apiClient.GetPreferences(ctx); err == nil {
		prefs.set(fetched)
	} else {
		log.Warn("preference fetch failed, using server-side gating only", map[string]interface{}{
			"error": err.Error(),
		})
	}
	seedState(ctx, apiClient, orch, stateStore, log)

	fallback := poller.New(
		apiClient, orch, conn, stateStore,
		time.Duration(cfg.Polling.IntervalSec)*time.Second, log,
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := fallback.Run(ctx); err != nil && err != context.Canceled {
			log.Error("poller exited", map[string]interface{}{"error": err.Error()})
		}
	}()

	if cfg.Server.MetricsEnabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(cfg.Server.Address, mux); err != nil {
				log.Warn("metrics server failed", map[string]interface{}{"error": err.Error()})
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zapLog.Info("Shutting down", zap.String("signal", sig.String()))

	cancel()
	wg.Wait()
	zapLog.Info("Notification agent stopped")
}

// seedState loads the unread count and the first page so the UI starts from
// the server's truth instead of empty state.
func seedState(ctx context.Context, apiClient *client.Client, orch *orchestrator.Orchestrator, stateStore *store.StateStore, log logger.Logger) {
	fetchedAt := time.Now()

	if count, err := apiClient.UnreadCount(ctx); err == nil {
		orch.Do(func() { stateStore.SetUnreadCount(count) })
	} else {
		log.Warn("initial unread count failed", map[string]interface{}{"error": err.Error()})
	}

	if result, err := apiClient.List(ctx, models.ListQuery{Page: 1}); err == nil {
		orch.Do(func() { stateStore.ReplacePage(result.Notifications, "1", fetchedAt) })
	} else {
		log.Warn("initial list fetch failed", map[string]interface{}{"error": err.Error()})
	}
}
