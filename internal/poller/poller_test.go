// internal/poller/poller_test.go
package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"notification-hub/internal/common/logger"
	"notification-hub/internal/models"
	"notification-hub/internal/realtime"
	"notification-hub/internal/store"

	"github.com/stretchr/testify/assert"
)

type mockFetcher struct {
	ListFunc        func(ctx context.Context, q models.ListQuery) (*models.ListResult, error)
	UnreadCountFunc func(ctx context.Context) (int, error)
	listCalls       int32
	countCalls      int32
}

func (m *mockFetcher) List(ctx context.Context, q models.ListQuery) (*models.ListResult, error) {
	atomic.AddInt32(&m.listCalls, 1)
	return m.ListFunc(ctx, q)
}

func (m *mockFetcher) UnreadCount(ctx context.Context) (int, error) {
	atomic.AddInt32(&m.countCalls, 1)
	return m.UnreadCountFunc(ctx)
}

// inlineApplier runs mutations immediately; the poller tests have no
// concurrent writers.
type inlineApplier struct{}

func (inlineApplier) Do(fn func()) { fn() }

type staticConn struct {
	state realtime.ConnState
}

func (c *staticConn) State() realtime.ConnState { return c.state }

func TestTick_AppliesCountAndPage(t *testing.T) {
	st := store.New()
	fetch := &mockFetcher{
		UnreadCountFunc: func(context.Context) (int, error) { return 7, nil },
		ListFunc: func(_ context.Context, q models.ListQuery) (*models.ListResult, error) {
			assert.Equal(t, 1, q.Page)
			return &models.ListResult{
				Notifications: []models.Notification{
					{ID: "n1", Status: models.StatusUnread, CreatedAt: time.Now()},
				},
				TotalCount: 1,
			}, nil
		},
	}

	p := New(fetch, inlineApplier{}, nil, st, time.Second, logger.NewNoOpLogger())
	p.tick(context.Background())

	// ReplacePage recounts from held items, so the page result wins over the
	// count fetched a moment earlier.
	assert.Equal(t, 1, st.UnreadCount())
	assert.NotNil(t, st.Get("n1"))
}

func TestTick_CountFailureStillFetchesList(t *testing.T) {
	st := store.New()
	fetch := &mockFetcher{
		UnreadCountFunc: func(context.Context) (int, error) { return 0, errors.New("boom") },
		ListFunc: func(context.Context, models.ListQuery) (*models.ListResult, error) {
			return &models.ListResult{}, nil
		},
	}

	p := New(fetch, inlineApplier{}, nil, st, time.Second, logger.NewNoOpLogger())
	p.tick(context.Background())

	assert.Equal(t, int32(1), atomic.LoadInt32(&fetch.listCalls))
}

func TestRun_SkipsTicksWhileConnected(t *testing.T) {
	st := store.New()
	fetch := &mockFetcher{
		UnreadCountFunc: func(context.Context) (int, error) { return 0, nil },
		ListFunc: func(context.Context, models.ListQuery) (*models.ListResult, error) {
			return &models.ListResult{}, nil
		},
	}
	conn := &staticConn{state: realtime.StateConnected}

	p := New(fetch, inlineApplier{}, conn, st, 10*time.Millisecond, logger.NewNoOpLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx)

	assert.Zero(t, atomic.LoadInt32(&fetch.countCalls), "no polls while the push channel is healthy")
}

func TestRun_PollsWhileDisconnected(t *testing.T) {
	st := store.New()
	fetch := &mockFetcher{
		UnreadCountFunc: func(context.Context) (int, error) { return 2, nil },
		ListFunc: func(context.Context, models.ListQuery) (*models.ListResult, error) {
			return &models.ListResult{}, nil
		},
	}
	conn := &staticConn{state: realtime.StateDisconnected}

	p := New(fetch, inlineApplier{}, conn, st, 10*time.Millisecond, logger.NewNoOpLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	_ = p.Run(ctx)

	assert.Greater(t, atomic.LoadInt32(&fetch.countCalls), int32(0))
}
