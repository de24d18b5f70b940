// internal/models/preference.go
package models

// QuietHours is a per-channel suppression window in local hours of day.
// The window [Start, End) may wrap past midnight when End < Start.
// Start == End means the window covers the whole day (always quiet).
type QuietHours struct {
	Enabled bool `json:"enabled"`
	Start   int  `json:"start"` // 0-23
	End     int  `json:"end"`   // 0-23
}

// ChannelPreference holds the per-channel settings for one user.
// Enabled=false suppresses every type on the channel regardless of the
// per-type overrides in Types.
type ChannelPreference struct {
	Enabled    bool            `json:"enabled"`
	QuietHours QuietHours      `json:"quietHours"`
	Types      map[string]bool `json:"types,omitempty"`
}

// Delivery frequencies.
const (
	FrequencyImmediate = "immediate"
	FrequencyDigest    = "digest"
	FrequencyWeekly    = "weekly"
)

// NotificationPreference is the full preference record for one user: one
// ChannelPreference per channel plus process-wide settings. The hub is
// authoritative; clients hold a cached copy invalidated after every
// successful mutation.
type NotificationPreference struct {
	UserID    string                       `json:"userId"`
	Channels  map[string]ChannelPreference `json:"channels"`
	Sound     bool                         `json:"sound"`
	Desktop   bool                         `json:"desktop"`
	Frequency string                       `json:"frequency"`
	UpdatedAt string                       `json:"updatedAt,omitempty"`
}

// PreferenceUpdate is a partial update: nil fields are left unchanged by the
// server-side merge.
type PreferenceUpdate struct {
	Channels  map[string]ChannelPreferenceUpdate `json:"channels,omitempty"`
	Sound     *bool                              `json:"sound,omitempty"`
	Desktop   *bool                              `json:"desktop,omitempty"`
	Frequency *string                            `json:"frequency,omitempty"`
}

// ChannelPreferenceUpdate is the partial per-channel form of a preference
// mutation.
type ChannelPreferenceUpdate struct {
	Enabled    *bool           `json:"enabled,omitempty"`
	QuietHours *QuietHours     `json:"quietHours,omitempty"`
	Types      map[string]bool `json:"types,omitempty"`
}

// ValidFrequency reports whether f is one of the known frequencies.
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyImmediate, FrequencyDigest, FrequencyWeekly:
		return true
	}
	return false
}
