// internal/preference/resolver.go

// Package preference decides whether a notification of a given type may be
// delivered on a given channel, applying the layered preference model:
// channel toggle, quiet hours, per-type override, then the type's system
// default.
package preference

import (
	"time"

	"notification-hub/internal/models"
)

// ShouldDeliver resolves the delivery decision for one (type, channel) pair.
// Rules apply in order, first match wins:
//
//  1. Channel disabled: never deliver, regardless of per-type overrides.
//  2. Quiet hours active at now: suppress, unless priority is urgent.
//  3. Explicit per-type override: use it.
//  4. Fall back to the type's system default.
func ShouldDeliver(notifType, priority, channel string, prefs *models.NotificationPreference, now time.Time) bool {
	if prefs == nil {
		return TypeDefault(notifType)
	}

	cp, ok := prefs.Channels[channel]
	if !ok {
		return TypeDefault(notifType)
	}

	if !cp.Enabled {
		return false
	}

	if cp.QuietHours.Enabled && inQuietWindow(cp.QuietHours, now.Hour()) {
		if priority != models.PriorityUrgent {
			return false
		}
	}

	if override, ok := cp.Types[notifType]; ok {
		return override
	}

	return TypeDefault(notifType)
}

// inQuietWindow reports whether hour falls inside the window [start, end).
// When end < start the window wraps past midnight. start == end means the
// window covers the whole day: always quiet. The source this replaces
// treated that case inconsistently; this is the canonical rule here.
func inQuietWindow(q models.QuietHours, hour int) bool {
	start, end := q.Start, q.End
	switch {
	case start == end:
		return true
	case start < end:
		return hour >= start && hour < end
	default:
		return hour >= start || hour < end
	}
}
