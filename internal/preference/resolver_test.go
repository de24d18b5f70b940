// internal/preference/resolver_test.go
package preference

import (
	"testing"
	"time"

	"notification-hub/internal/models"

	"github.com/stretchr/testify/assert"
)

func atHour(hour int) time.Time {
	return time.Date(2026, 8, 27, hour, 30, 0, 0, time.UTC)
}

func prefsWith(channel string, cp models.ChannelPreference) *models.NotificationPreference {
	prefs := Defaults("user-1")
	prefs.Channels[channel] = cp
	return prefs
}

func TestShouldDeliver(t *testing.T) {
	tests := []struct {
		name      string
		notifType string
		priority  string
		channel   string
		prefs     *models.NotificationPreference
		now       time.Time
		expected  bool
	}{
		{
			name:      "nil preferences fall back to type default",
			notifType: "booking_confirmation",
			priority:  models.PriorityMedium,
			channel:   models.ChannelEmail,
			prefs:     nil,
			now:       atHour(12),
			expected:  true,
		},
		{
			name:      "nil preferences still suppress promotional by default",
			notifType: "promotional",
			priority:  models.PriorityMedium,
			channel:   models.ChannelEmail,
			prefs:     nil,
			now:       atHour(12),
			expected:  false,
		},
		{
			name:      "disabled channel suppresses even explicit type opt-in",
			notifType: "promotional",
			priority:  models.PriorityHigh,
			channel:   models.ChannelEmail,
			prefs: prefsWith(models.ChannelEmail, models.ChannelPreference{
				Enabled: false,
				Types:   map[string]bool{"promotional": true},
			}),
			now:      atHour(12),
			expected: false,
		},
		{
			name:      "quiet hours suppress non-urgent",
			notifType: "reminder",
			priority:  models.PriorityHigh,
			channel:   models.ChannelPush,
			prefs: prefsWith(models.ChannelPush, models.ChannelPreference{
				Enabled:    true,
				QuietHours: models.QuietHours{Enabled: true, Start: 22, End: 7},
				Types:      map[string]bool{},
			}),
			now:      atHour(23),
			expected: false,
		},
		{
			name:      "urgent bypasses quiet hours",
			notifType: "system_alert",
			priority:  models.PriorityUrgent,
			channel:   models.ChannelPush,
			prefs: prefsWith(models.ChannelPush, models.ChannelPreference{
				Enabled:    true,
				QuietHours: models.QuietHours{Enabled: true, Start: 22, End: 7},
				Types:      map[string]bool{},
			}),
			now:      atHour(23),
			expected: true,
		},
		{
			name:      "wrap-around window covers early morning",
			notifType: "reminder",
			priority:  models.PriorityMedium,
			channel:   models.ChannelPush,
			prefs: prefsWith(models.ChannelPush, models.ChannelPreference{
				Enabled:    true,
				QuietHours: models.QuietHours{Enabled: true, Start: 22, End: 7},
				Types:      map[string]bool{},
			}),
			now:      atHour(3),
			expected: false,
		},
		{
			name:      "outside quiet window delivers",
			notifType: "reminder",
			priority:  models.PriorityMedium,
			channel:   models.ChannelPush,
			prefs: prefsWith(models.ChannelPush, models.ChannelPreference{
				Enabled:    true,
				QuietHours: models.QuietHours{Enabled: true, Start: 22, End: 7},
				Types:      map[string]bool{},
			}),
			now:      atHour(12),
			expected: true,
		},
		{
			name:      "start equals end means always quiet",
			notifType: "reminder",
			priority:  models.PriorityMedium,
			channel:   models.ChannelPush,
			prefs: prefsWith(models.ChannelPush, models.ChannelPreference{
				Enabled:    true,
				QuietHours: models.QuietHours{Enabled: true, Start: 9, End: 9},
				Types:      map[string]bool{},
			}),
			now:      atHour(9),
			expected: false,
		},
		{
			name:      "explicit type opt-out wins over default",
			notifType: "booking_confirmation",
			priority:  models.PriorityMedium,
			channel:   models.ChannelInApp,
			prefs: prefsWith(models.ChannelInApp, models.ChannelPreference{
				Enabled: true,
				Types:   map[string]bool{"booking_confirmation": false},
			}),
			now:      atHour(12),
			expected: false,
		},
		{
			name:      "explicit promotional opt-in wins over default",
			notifType: "promotional",
			priority:  models.PriorityLow,
			channel:   models.ChannelInApp,
			prefs: prefsWith(models.ChannelInApp, models.ChannelPreference{
				Enabled: true,
				Types:   map[string]bool{"promotional": true},
			}),
			now:      atHour(12),
			expected: true,
		},
		{
			name:      "unknown type defaults to enabled",
			notifType: "something_new",
			priority:  models.PriorityMedium,
			channel:   models.ChannelSMS,
			prefs:     Defaults("user-1"),
			now:       atHour(12),
			expected:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldDeliver(tt.notifType, tt.priority, tt.channel, tt.prefs, tt.now)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDefaults(t *testing.T) {
	prefs := Defaults("user-9")

	assert.Equal(t, "user-9", prefs.UserID)
	assert.True(t, prefs.Sound)
	assert.True(t, prefs.Desktop)
	assert.Equal(t, models.FrequencyImmediate, prefs.Frequency)

	for _, ch := range models.Channels() {
		cp, ok := prefs.Channels[ch]
		assert.True(t, ok, "channel %s missing", ch)
		assert.True(t, cp.Enabled)
		assert.False(t, cp.QuietHours.Enabled)
		assert.Equal(t, 22, cp.QuietHours.Start)
		assert.Equal(t, 7, cp.QuietHours.End)
	}
}

func TestMerge(t *testing.T) {
	boolPtr := func(b bool) *bool { return &b }
	strPtr := func(s string) *string { return &s }

	base := Defaults("user-1")
	base.Channels[models.ChannelEmail] = models.ChannelPreference{
		Enabled: true,
		Types:   map[string]bool{"reminder": false},
	}

	update := &models.PreferenceUpdate{
		Channels: map[string]models.ChannelPreferenceUpdate{
			models.ChannelEmail: {
				QuietHours: &models.QuietHours{Enabled: true, Start: 21, End: 8},
				Types:      map[string]bool{"promotional": true},
			},
			"carrier_pigeon": {
				Enabled: boolPtr(true),
			},
		},
		Sound:     boolPtr(false),
		Frequency: strPtr(models.FrequencyDigest),
	}

	merged := Merge(base, update)

	email := merged.Channels[models.ChannelEmail]
	assert.True(t, email.Enabled, "unset pointer keeps base value")
	assert.True(t, email.QuietHours.Enabled)
	assert.Equal(t, 21, email.QuietHours.Start)
	assert.Equal(t, map[string]bool{"reminder": false, "promotional": true}, email.Types)

	_, hasBogus := merged.Channels["carrier_pigeon"]
	assert.False(t, hasBogus, "invalid channel keys are dropped")

	assert.False(t, merged.Sound)
	assert.True(t, merged.Desktop)
	assert.Equal(t, models.FrequencyDigest, merged.Frequency)

	// The merge must not alias the base maps.
	email.Types["reminder"] = true
	assert.False(t, base.Channels[models.ChannelEmail].Types["reminder"])
}

func TestMerge_InvalidFrequencyIgnored(t *testing.T) {
	bad := "hourly"
	merged := Merge(Defaults("u"), &models.PreferenceUpdate{Frequency: &bad})
	assert.Equal(t, models.FrequencyImmediate, merged.Frequency)
}
