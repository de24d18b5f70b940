// internal/orchestrator/orchestrator.go

// Package orchestrator wires real-time events into state-store mutations and
// preference-gated side effects. All store mutations run on a single apply
// loop, so real-time handlers, poller ticks and UI actions never race.
package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/common/logger"
	"notification-hub/internal/common/metrics"
	"notification-hub/internal/common/validation"
	"notification-hub/internal/models"
	"notification-hub/internal/preference"
	"notification-hub/internal/realtime"
	"notification-hub/internal/store"
)

// Notifier triggers the client-side side effects of an in-app delivery.
type Notifier interface {
	PlaySound(n models.Notification)
	ShowDesktop(n models.Notification)
	ShowToast(n models.Notification)
}

// HubAPI is the slice of the hub's REST surface the orchestrator needs to
// confirm optimistic mutations.
type HubAPI interface {
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id string) error
}

// PreferenceSource yields the cached preference snapshot used for side
// effect gating. It may return nil when no snapshot is loaded yet.
type PreferenceSource interface {
	Current() *models.NotificationPreference
}

// Orchestrator owns the client-side apply loop and the event subscriptions.
type Orchestrator struct {
	bus      realtime.EventBus
	store    *store.StateStore
	prefs    PreferenceSource
	notifier Notifier
	api      HubAPI
	log      logger.Logger

	apply chan func()
	subs  []realtime.Subscription
	now   func() time.Time
}

// New creates an orchestrator. notifier and api may be nil in tests.
func New(bus realtime.EventBus, st *store.StateStore, prefs PreferenceSource, notifier Notifier, api HubAPI, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		bus:      bus,
		store:    st,
		prefs:    prefs,
		notifier: notifier,
		api:      api,
		log:      log.WithFields(map[string]interface{}{"component": "orchestrator"}),
		apply:    make(chan func(), 128),
		now:      time.Now,
	}
}

// Run subscribes to the event bus and drains the apply loop until ctx is
// canceled. It must be running before any Do/MarkRead/... call completes.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.subs = []realtime.Subscription{
		o.bus.On(models.EventNotificationNew, o.onNew),
		o.bus.On(models.EventNotificationRead, o.onRead),
		o.bus.On(models.EventNotificationCount, o.onCount),
	}
	defer func() {
		for _, sub := range o.subs {
			o.bus.Off(sub)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-o.apply:
			fn()
		}
	}
}

// Do submits a mutation to the apply loop.
func (o *Orchestrator) Do(fn func()) {
	o.apply <- fn
}

// Snapshot runs fn on the apply loop and waits for it, giving callers a
// consistent read of the store.
func (o *Orchestrator) Snapshot(fn func(s *store.StateStore)) {
	done := make(chan struct{})
	o.apply <- func() {
		fn(o.store)
		close(done)
	}
	<-done
}

// onNew handles notification:new: validate, store per the in-app channel
// toggle, gate side effects through the preference resolver. Malformed
// payloads are dropped and logged; the handler chain never crashes.
func (o *Orchestrator) onNew(env models.EventEnvelope) {
	var payloadMap map[string]interface{}
	if err := json.Unmarshal(env.Payload, &payloadMap); err != nil {
		o.drop(env, err.Error())
		return
	}
	if err := validation.ValidateNotificationPayload(payloadMap); err != nil {
		o.drop(env, err.Error())
		return
	}

	var n models.Notification
	if err := json.Unmarshal(env.Payload, &n); err != nil {
		o.drop(env, err.Error())
		return
	}
	if n.Status == "" {
		n.Status = models.StatusUnread
	}

	o.apply <- func() {
		now := o.now()
		prefs := o.currentPrefs()

		// Storage follows the in-app channel toggle alone. Per-type
		// overrides and quiet hours decide whether the arrival is
		// announced, not whether it lands in the history.
		if inAppEnabled(prefs) {
			o.store.Insert(n)
		}

		if o.notifier != nil && preference.ShouldDeliver(n.Type, n.Priority, models.ChannelInApp, prefs, now) {
			o.notifier.ShowToast(n)
		}

		if o.notifier != nil && preference.ShouldDeliver(n.Type, n.Priority, models.ChannelPush, prefs, now) {
			if prefs == nil || prefs.Sound {
				o.notifier.PlaySound(n)
			}
			if prefs == nil || prefs.Desktop {
				o.notifier.ShowDesktop(n)
			}
		}
	}
}

// onRead handles notification:read pushed when another device of the same
// user marks a notification read.
func (o *Orchestrator) onRead(env models.EventEnvelope) {
	var payload models.ReadEventPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload.ID == "" {
		o.drop(env, "missing id")
		return
	}
	o.apply <- func() {
		o.store.MarkRead(payload.ID)
	}
}

// onCount handles an authoritative unread-count push; it always wins over
// the locally computed count.
func (o *Orchestrator) onCount(env models.EventEnvelope) {
	var payload models.CountEventPayload
	if err := json.Unmarshal(env.Payload, &payload); err != nil {
		o.drop(env, "malformed count")
		return
	}
	o.apply <- func() {
		o.store.SetUnreadCount(payload.UnreadCount)
	}
}

func (o *Orchestrator) drop(env models.EventEnvelope, reason string) {
	metrics.EventsDropped.WithLabelValues(env.Event, "invalid_payload").Inc()
	o.log.Warn("dropping malformed event", map[string]interface{}{
		"event":  env.Event,
		"reason": reason,
	})
}

func (o *Orchestrator) currentPrefs() *models.NotificationPreference {
	if o.prefs == nil {
		return nil
	}
	return o.prefs.Current()
}

// inAppEnabled reports whether the in-app channel accepts notifications into
// the local store. Absent preferences count as enabled.
func inAppEnabled(prefs *models.NotificationPreference) bool {
	if prefs == nil {
		return true
	}
	cp, ok := prefs.Channels[models.ChannelInApp]
	if !ok {
		return true
	}
	return cp.Enabled
}

// MarkRead applies the optimistic local mutation immediately, then confirms
// it with the hub. A failed confirmation is surfaced as a retryable
// RequestFailure; the local state is never silently reverted. A conflict
// (already deleted on the server) counts as success.
func (o *Orchestrator) MarkRead(ctx context.Context, id string) error {
	o.Do(func() { o.store.MarkRead(id) })
	return o.confirm(ctx, func() error { return o.api.MarkRead(ctx, id) })
}

// MarkAllRead marks everything read locally and issues the bulk request.
func (o *Orchestrator) MarkAllRead(ctx context.Context) error {
	o.Do(func() { o.store.MarkAllRead() })
	return o.confirm(ctx, func() error { return o.api.MarkAllRead(ctx) })
}

// Delete removes the notification locally and confirms with the hub.
func (o *Orchestrator) Delete(ctx context.Context, id string) error {
	o.Do(func() { o.store.Remove(id) })
	return o.confirm(ctx, func() error { return o.api.Delete(ctx, id) })
}

func (o *Orchestrator) confirm(ctx context.Context, call func() error) error {
	if o.api == nil {
		return nil
	}
	err := call()
	if err == nil || stderrors.IsConflict(err) {
		return nil
	}
	return stderrors.NewRequestFailure(err.Error())
}
