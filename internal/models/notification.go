// internal/models/notification.go
package models

import "time"

// Priority levels, highest first. Urgent notifications bypass quiet hours.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Delivery channels. The set is closed; preference records hold one entry
// per channel rather than arbitrary string keys.
const (
	ChannelInApp = "in_app"
	ChannelEmail = "email"
	ChannelSMS   = "sms"
	ChannelPush  = "push"
)

// Channels lists every delivery channel in a fixed order.
func Channels() []string {
	return []string{ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush}
}

// Notification statuses.
const (
	StatusUnread = "unread"
	StatusRead   = "read"
)

// Notification is a single delivered notification. Instances are created by
// the hub and mutated client-side only through mark-read/mark-all-read/delete.
// Invariant: Status == StatusRead iff ReadAt != nil.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"userId"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Priority  string                 `json:"priority"`
	Channel   string                 `json:"channel"`
	Status    string                 `json:"status"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// IsUnread reports whether the notification has not been read yet.
func (n *Notification) IsUnread() bool {
	return n.Status != StatusRead
}

// MarkRead transitions the notification to read at the given time. Calling it
// on an already-read notification is a no-op.
func (n *Notification) MarkRead(at time.Time) {
	if n.Status == StatusRead {
		return
	}
	n.Status = StatusRead
	n.ReadAt = &at
}

// ValidPriority reports whether p is one of the known priority levels.
func ValidPriority(p string) bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

var priorityRank = map[string]int{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
	PriorityUrgent: 3,
}

// PriorityAtLeast reports whether p ranks at or above threshold. Unknown
// priorities rank lowest.
func PriorityAtLeast(p, threshold string) bool {
	return priorityRank[p] >= priorityRank[threshold]
}

// ValidChannel reports whether c is one of the known delivery channels.
func ValidChannel(c string) bool {
	switch c {
	case ChannelInApp, ChannelEmail, ChannelSMS, ChannelPush:
		return true
	}
	return false
}
