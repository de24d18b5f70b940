// internal/poller/poller.go

// Package poller provides the fallback refresh path for agents whose
// real-time connection is down. It refetches the unread count and the first
// notification page on a fixed interval and hands the results to the
// orchestrator's apply loop.
package poller

import (
	"context"
	"time"

	"notification-hub/internal/common/logger"
	"notification-hub/internal/models"
	"notification-hub/internal/realtime"
	"notification-hub/internal/store"
)

// Fetcher is the slice of the hub API client the poller needs.
type Fetcher interface {
	List(ctx context.Context, q models.ListQuery) (*models.ListResult, error)
	UnreadCount(ctx context.Context) (int, error)
}

// Applier schedules store mutations on the single apply loop.
type Applier interface {
	Do(fn func())
}

// ConnStater reports the current real-time connection state. Ticks are
// skipped while the connection is healthy.
type ConnStater interface {
	State() realtime.ConnState
}

// Poller refetches notification state while the push channel is unavailable.
type Poller struct {
	fetch    Fetcher
	applier  Applier
	conn     ConnStater
	store    *store.StateStore
	log      logger.Logger
	interval time.Duration
	now      func() time.Time
}

// New creates a poller. conn may be nil, in which case every tick polls.
func New(fetch Fetcher, applier Applier, conn ConnStater, st *store.StateStore, interval time.Duration, log logger.Logger) *Poller {
	return &Poller{
		fetch:    fetch,
		applier:  applier,
		conn:     conn,
		store:    st,
		log:      log.WithFields(map[string]interface{}{"component": "poller"}),
		interval: interval,
		now:      time.Now,
	}
}

// Run ticks until ctx is canceled. A tick that fails logs and waits for the
// next interval; transient hub outages must not kill the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if p.connected() {
				continue
			}
			p.tick(ctx)
		}
	}
}

// tick performs one refresh cycle: authoritative unread count first, then the
// first page of the list merged through the store's reconciliation rules.
func (p *Poller) tick(ctx context.Context) {
	fetchedAt := p.now()

	count, err := p.fetch.UnreadCount(ctx)
	if err != nil {
		p.log.Warn("unread count poll failed", map[string]interface{}{"error": err.Error()})
	} else {
		p.applier.Do(func() { p.store.SetUnreadCount(count) })
	}

	result, err := p.fetch.List(ctx, models.ListQuery{Page: 1})
	if err != nil {
		p.log.Warn("list poll failed", map[string]interface{}{"error": err.Error()})
		return
	}

	items := result.Notifications
	p.applier.Do(func() { p.store.ReplacePage(items, "1", fetchedAt) })
}

func (p *Poller) connected() bool {
	return p.conn != nil && p.conn.State() == realtime.StateConnected
}
