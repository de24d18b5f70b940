// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/common/logger"
	"notification-hub/internal/models"
	"notification-hub/internal/preference"
	"notification-hub/internal/realtime"
	"notification-hub/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus is an in-process EventBus that lets tests emit envelopes directly.
type fakeBus struct {
	mu       sync.Mutex
	handlers map[string][]realtime.Handler
}

func newFakeBus() *fakeBus {
	return &fakeBus{handlers: make(map[string][]realtime.Handler)}
}

func (b *fakeBus) On(event string, h realtime.Handler) realtime.Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], h)
	return realtime.Subscription{}
}

func (b *fakeBus) Off(realtime.Subscription) {}

func (b *fakeBus) State() realtime.ConnState { return realtime.StateConnected }

func (b *fakeBus) emit(t *testing.T, event string, payload interface{}) {
	t.Helper()
	env, err := models.NewEnvelope(event, payload)
	require.NoError(t, err)
	b.mu.Lock()
	handlers := append([]realtime.Handler(nil), b.handlers[event]...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(env)
	}
}

func (b *fakeBus) emitRaw(event string, raw string) {
	env := models.EventEnvelope{Event: event, Payload: json.RawMessage(raw)}
	b.mu.Lock()
	handlers := append([]realtime.Handler(nil), b.handlers[event]...)
	b.mu.Unlock()
	for _, h := range handlers {
		h(env)
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	toasts  []string
	sounds  []string
	desktop []string
}

func (n *recordingNotifier) PlaySound(notif models.Notification) {
	n.mu.Lock()
	n.sounds = append(n.sounds, notif.ID)
	n.mu.Unlock()
}

func (n *recordingNotifier) ShowDesktop(notif models.Notification) {
	n.mu.Lock()
	n.desktop = append(n.desktop, notif.ID)
	n.mu.Unlock()
}

func (n *recordingNotifier) ShowToast(notif models.Notification) {
	n.mu.Lock()
	n.toasts = append(n.toasts, notif.ID)
	n.mu.Unlock()
}

func (n *recordingNotifier) toastIDs() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.toasts...)
}

type fakeAPI struct {
	markReadErr    error
	markAllReadErr error
	deleteErr      error
	calls          []string
	mu             sync.Mutex
}

func (a *fakeAPI) MarkRead(ctx context.Context, id string) error {
	a.mu.Lock()
	a.calls = append(a.calls, "read:"+id)
	a.mu.Unlock()
	return a.markReadErr
}

func (a *fakeAPI) MarkAllRead(ctx context.Context) error {
	a.mu.Lock()
	a.calls = append(a.calls, "read-all")
	a.mu.Unlock()
	return a.markAllReadErr
}

func (a *fakeAPI) Delete(ctx context.Context, id string) error {
	a.mu.Lock()
	a.calls = append(a.calls, "delete:"+id)
	a.mu.Unlock()
	return a.deleteErr
}

type staticPrefs struct {
	prefs *models.NotificationPreference
}

func (p *staticPrefs) Current() *models.NotificationPreference { return p.prefs }

type fixture struct {
	bus      *fakeBus
	store    *store.StateStore
	notifier *recordingNotifier
	api      *fakeAPI
	orch     *Orchestrator
	cancel   context.CancelFunc
}

func newFixture(t *testing.T, prefs *models.NotificationPreference) *fixture {
	t.Helper()
	f := &fixture{
		bus:      newFakeBus(),
		store:    store.New(),
		notifier: &recordingNotifier{},
		api:      &fakeAPI{},
	}
	f.orch = New(f.bus, f.store, &staticPrefs{prefs: prefs}, f.notifier, f.api, logger.NewNoOpLogger())

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	t.Cleanup(cancel)
	go func() { _ = f.orch.Run(ctx) }()

	// Wait until subscriptions are installed.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.bus.mu.Lock()
		ready := len(f.bus.handlers) == 3
		f.bus.mu.Unlock()
		if ready {
			return f
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("orchestrator did not subscribe")
	return nil
}

// snapshot reads store state through the apply loop.
func (f *fixture) snapshot(fn func(s *store.StateStore)) {
	f.orch.Snapshot(fn)
}

func testNotification(id string) models.Notification {
	return models.Notification{
		ID:        id,
		UserID:    "user-1",
		Type:      "reminder",
		Title:     "hello",
		Message:   "world",
		Priority:  models.PriorityMedium,
		Channel:   models.ChannelInApp,
		Status:    models.StatusUnread,
		CreatedAt: time.Now().UTC(),
	}
}

func TestOnNew_InsertsAndToasts(t *testing.T) {
	f := newFixture(t, preference.Defaults("user-1"))

	f.bus.emit(t, models.EventNotificationNew, testNotification("n1"))

	var held *models.Notification
	f.snapshot(func(s *store.StateStore) { held = s.Get("n1") })
	require.NotNil(t, held)
	assert.Equal(t, models.StatusUnread, held.Status)
	assert.Equal(t, []string{"n1"}, f.notifier.toastIDs())
}

func TestOnNew_PromotionalStoredWithoutSideEffects(t *testing.T) {
	f := newFixture(t, preference.Defaults("user-1"))

	n := testNotification("n-promo")
	n.Type = "promotional"
	f.bus.emit(t, models.EventNotificationNew, n)

	// The history keeps the notification; only the announcement side
	// effects are suppressed by the type default.
	var held *models.Notification
	var unread int
	f.snapshot(func(s *store.StateStore) { held, unread = s.Get("n-promo"), s.UnreadCount() })
	require.NotNil(t, held)
	assert.Equal(t, 1, unread)
	assert.Empty(t, f.notifier.toastIDs())
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	assert.Empty(t, f.notifier.sounds)
	assert.Empty(t, f.notifier.desktop)
}

func TestOnNew_InAppDisabledSkipsStore(t *testing.T) {
	prefs := preference.Defaults("user-1")
	cp := prefs.Channels[models.ChannelInApp]
	cp.Enabled = false
	prefs.Channels[models.ChannelInApp] = cp
	f := newFixture(t, prefs)

	f.bus.emit(t, models.EventNotificationNew, testNotification("n1"))

	var held *models.Notification
	f.snapshot(func(s *store.StateStore) { held = s.Get("n1") })
	assert.Nil(t, held)
	assert.Empty(t, f.notifier.toastIDs())
}

func TestOnNew_MalformedPayloadIsDropped(t *testing.T) {
	f := newFixture(t, preference.Defaults("user-1"))

	f.bus.emitRaw(models.EventNotificationNew, `{"no_id": true}`)
	f.bus.emitRaw(models.EventNotificationNew, `not even json`)

	var count int
	f.snapshot(func(s *store.StateStore) { count = s.Len() })
	assert.Zero(t, count)
}

func TestOnNew_DuplicateEventIsIdempotent(t *testing.T) {
	f := newFixture(t, preference.Defaults("user-1"))

	n := testNotification("n1")
	f.bus.emit(t, models.EventNotificationNew, n)
	f.bus.emit(t, models.EventNotificationNew, n)

	var size, unread int
	f.snapshot(func(s *store.StateStore) { size, unread = s.Len(), s.UnreadCount() })
	assert.Equal(t, 1, size)
	assert.Equal(t, 1, unread)
}

func TestOnNew_SoundAndDesktopFollowPreferences(t *testing.T) {
	prefs := preference.Defaults("user-1")
	prefs.Sound = false
	f := newFixture(t, prefs)

	f.bus.emit(t, models.EventNotificationNew, testNotification("n1"))

	f.snapshot(func(*store.StateStore) {})
	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	assert.Empty(t, f.notifier.sounds)
	assert.Equal(t, []string{"n1"}, f.notifier.desktop)
}

func TestOnRead_MarksHeldNotification(t *testing.T) {
	f := newFixture(t, preference.Defaults("user-1"))

	f.bus.emit(t, models.EventNotificationNew, testNotification("n1"))
	f.bus.emit(t, models.EventNotificationRead, models.ReadEventPayload{ID: "n1"})

	var held *models.Notification
	var unread int
	f.snapshot(func(s *store.StateStore) { held, unread = s.Get("n1"), s.UnreadCount() })
	require.NotNil(t, held)
	assert.False(t, held.IsUnread())
	assert.Zero(t, unread)
}

func TestOnCount_AuthoritativeCountWins(t *testing.T) {
	f := newFixture(t, preference.Defaults("user-1"))

	f.bus.emit(t, models.EventNotificationNew, testNotification("n1"))
	f.bus.emit(t, models.EventNotificationCount, models.CountEventPayload{UnreadCount: 9})

	var unread int
	f.snapshot(func(s *store.StateStore) { unread = s.UnreadCount() })
	assert.Equal(t, 9, unread)
}

func TestMarkRead_OptimisticWithConfirmation(t *testing.T) {
	f := newFixture(t, preference.Defaults("user-1"))
	f.bus.emit(t, models.EventNotificationNew, testNotification("n1"))

	err := f.orch.MarkRead(context.Background(), "n1")
	assert.NoError(t, err)

	var held *models.Notification
	f.snapshot(func(s *store.StateStore) { held = s.Get("n1") })
	assert.False(t, held.IsUnread())
}

func TestMarkRead_ConflictCountsAsSuccess(t *testing.T) {
	f := newFixture(t, preference.Defaults("user-1"))
	f.api.markReadErr = stderrors.NewConflictError("already gone")
	f.bus.emit(t, models.EventNotificationNew, testNotification("n1"))

	err := f.orch.MarkRead(context.Background(), "n1")
	assert.NoError(t, err)
}

func TestMarkRead_FailureKeepsLocalState(t *testing.T) {
	f := newFixture(t, preference.Defaults("user-1"))
	f.api.markReadErr = errors.New("network down")
	f.bus.emit(t, models.EventNotificationNew, testNotification("n1"))

	err := f.orch.MarkRead(context.Background(), "n1")
	require.Error(t, err)
	assert.True(t, stderrors.IsRetryable(err))

	// The optimistic mutation is never silently reverted.
	var held *models.Notification
	f.snapshot(func(s *store.StateStore) { held = s.Get("n1") })
	assert.False(t, held.IsUnread())
}

func TestDelete_OptimisticRemoval(t *testing.T) {
	f := newFixture(t, preference.Defaults("user-1"))
	f.bus.emit(t, models.EventNotificationNew, testNotification("n1"))

	require.NoError(t, f.orch.Delete(context.Background(), "n1"))

	var held *models.Notification
	f.snapshot(func(s *store.StateStore) { held = s.Get("n1") })
	assert.Nil(t, held)
}

func TestMarkAllRead(t *testing.T) {
	f := newFixture(t, preference.Defaults("user-1"))
	f.bus.emit(t, models.EventNotificationNew, testNotification("n1"))
	f.bus.emit(t, models.EventNotificationNew, testNotification("n2"))

	require.NoError(t, f.orch.MarkAllRead(context.Background()))

	var unread int
	f.snapshot(func(s *store.StateStore) { unread = s.UnreadCount() })
	assert.Zero(t, unread)
}
