// internal/preference/defaults.go
package preference

import "notification-hub/internal/models"

// typeDefaults is the system default-enabled flag per notification type,
// consulted when no per-type override exists. Types absent from the map
// default to enabled.
var typeDefaults = map[string]bool{
	"booking_confirmation": true,
	"booking_cancelled":    true,
	"payment_received":     true,
	"system_alert":         true,
	"reminder":             true,
	"promotional":          false,
	"newsletter":           false,
}

// TypeDefault returns the system default-enabled flag for a type.
func TypeDefault(notifType string) bool {
	if enabled, ok := typeDefaults[notifType]; ok {
		return enabled
	}
	return true
}

// Defaults returns the preference record a user gets on first access.
func Defaults(userID string) *models.NotificationPreference {
	channels := make(map[string]models.ChannelPreference, len(models.Channels()))
	for _, ch := range models.Channels() {
		channels[ch] = models.ChannelPreference{
			Enabled: true,
			QuietHours: models.QuietHours{
				Enabled: false,
				Start:   22,
				End:     7,
			},
			Types: map[string]bool{},
		}
	}
	return &models.NotificationPreference{
		UserID:    userID,
		Channels:  channels,
		Sound:     true,
		Desktop:   true,
		Frequency: models.FrequencyImmediate,
	}
}

// Merge applies a partial update onto base and returns the merged record.
// The server is authoritative for merge semantics: nil fields keep the base
// value, per-type override maps are merged key-by-key.
func Merge(base *models.NotificationPreference, update *models.PreferenceUpdate) *models.NotificationPreference {
	merged := *base
	merged.Channels = make(map[string]models.ChannelPreference, len(base.Channels))
	for ch, cp := range base.Channels {
		types := make(map[string]bool, len(cp.Types))
		for k, v := range cp.Types {
			types[k] = v
		}
		cp.Types = types
		merged.Channels[ch] = cp
	}

	if update == nil {
		return &merged
	}

	for ch, cu := range update.Channels {
		if !models.ValidChannel(ch) {
			continue
		}
		cp := merged.Channels[ch]
		if cu.Enabled != nil {
			cp.Enabled = *cu.Enabled
		}
		if cu.QuietHours != nil {
			cp.QuietHours = *cu.QuietHours
		}
		for k, v := range cu.Types {
			if cp.Types == nil {
				cp.Types = map[string]bool{}
			}
			cp.Types[k] = v
		}
		merged.Channels[ch] = cp
	}

	if update.Sound != nil {
		merged.Sound = *update.Sound
	}
	if update.Desktop != nil {
		merged.Desktop = *update.Desktop
	}
	if update.Frequency != nil && models.ValidFrequency(*update.Frequency) {
		merged.Frequency = *update.Frequency
	}

	return &merged
}
