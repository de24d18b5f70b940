// internal/store/state.go

// Package store holds the authoritative client-side view of notifications:
// the ordered item list, the unread count and the pagination cursor. All
// operations are synchronous and idempotent; callers serialize them on the
// orchestrator's apply loop, so the store itself takes no locks.
package store

import (
	"sort"
	"time"

	"notification-hub/internal/models"
)

// StateStore is the client-side notification state. Items are ordered newest
// first. unreadCount is a cache of server truth: it may diverge between
// authoritative pushes and self-heals on the next ReplacePage or
// SetUnreadCount.
type StateStore struct {
	items       []models.Notification
	index       map[string]int
	unreadCount int
	cursor      string

	// lastMutated records when each id was last mutated locally, and
	// tombstones records local deletions. Both drive the ReplacePage merge:
	// a server row older than a local mutation does not overwrite it.
	lastMutated map[string]time.Time
	tombstones  map[string]time.Time

	now func() time.Time
}

// New creates an empty StateStore.
func New() *StateStore {
	return &StateStore{
		index:       make(map[string]int),
		lastMutated: make(map[string]time.Time),
		tombstones:  make(map[string]time.Time),
		now:         time.Now,
	}
}

// Items returns the held notifications, newest first. The slice is a copy.
func (s *StateStore) Items() []models.Notification {
	out := make([]models.Notification, len(s.items))
	copy(out, s.items)
	return out
}

// Get returns the held notification with the given id, or nil.
func (s *StateStore) Get(id string) *models.Notification {
	if i, ok := s.index[id]; ok {
		n := s.items[i]
		return &n
	}
	return nil
}

// UnreadCount returns the current unread count. Never negative.
func (s *StateStore) UnreadCount() int {
	return s.unreadCount
}

// Cursor returns the pagination token of the last applied page.
func (s *StateStore) Cursor() string {
	return s.cursor
}

// Len returns the number of held notifications.
func (s *StateStore) Len() int {
	return len(s.items)
}

// Insert adds a notification, or replaces the held copy when the id already
// exists. Applying the same insert twice yields the same state as applying
// it once. The unread count is recomputed from the held items.
func (s *StateStore) Insert(n models.Notification) {
	if i, ok := s.index[n.ID]; ok {
		s.items[i] = n
	} else {
		s.items = append([]models.Notification{n}, s.items...)
		s.reindex()
	}
	delete(s.tombstones, n.ID)
	s.lastMutated[n.ID] = s.now()
	s.recountUnread()
}

// MarkRead marks one notification read. Already-read and unknown ids are
// no-ops; the unread count decrements by at most one.
func (s *StateStore) MarkRead(id string) {
	i, ok := s.index[id]
	if !ok || !s.items[i].IsUnread() {
		return
	}
	now := s.now()
	s.items[i].MarkRead(now)
	s.lastMutated[id] = now
	if s.unreadCount > 0 {
		s.unreadCount--
	}
}

// MarkAllRead marks every held unread notification read and zeroes the
// unread count. The caller issues the matching bulk request to the hub.
func (s *StateStore) MarkAllRead() {
	now := s.now()
	for i := range s.items {
		if s.items[i].IsUnread() {
			s.items[i].MarkRead(now)
			s.lastMutated[s.items[i].ID] = now
		}
	}
	s.unreadCount = 0
}

// Remove deletes a notification. Removing an unread item decrements the
// unread count. Unknown ids are no-ops.
func (s *StateStore) Remove(id string) {
	i, ok := s.index[id]
	if !ok {
		return
	}
	if s.items[i].IsUnread() && s.unreadCount > 0 {
		s.unreadCount--
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.reindex()
	now := s.now()
	s.tombstones[id] = now
	s.lastMutated[id] = now
}

// SetUnreadCount applies an authoritative count pushed by the hub. It always
// wins over the locally computed value.
func (s *StateStore) SetUnreadCount(count int) {
	if count < 0 {
		count = 0
	}
	s.unreadCount = count
}

// ReplacePage applies a fetched page. It merges rather than overwrites:
// optimistic local mutations issued after fetchedAt win over the server rows
// (last mutation wins by timestamp), and locally deleted ids stay deleted.
// Afterwards the unread count equals the number of held unread items.
func (s *StateStore) ReplacePage(notifications []models.Notification, cursor string, fetchedAt time.Time) {
	merged := make([]models.Notification, 0, len(notifications))
	seen := make(map[string]bool, len(notifications))

	for _, n := range notifications {
		if deletedAt, ok := s.tombstones[n.ID]; ok && deletedAt.After(fetchedAt) {
			continue
		}
		if mutatedAt, ok := s.lastMutated[n.ID]; ok && mutatedAt.After(fetchedAt) {
			if i, held := s.index[n.ID]; held {
				merged = append(merged, s.items[i])
				seen[n.ID] = true
				continue
			}
		}
		merged = append(merged, n)
		seen[n.ID] = true
	}

	// Keep locally inserted items the page does not know about yet.
	for _, held := range s.items {
		if seen[held.ID] {
			continue
		}
		if mutatedAt, ok := s.lastMutated[held.ID]; ok && mutatedAt.After(fetchedAt) {
			merged = append(merged, held)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	s.items = merged
	s.cursor = cursor
	s.reindex()
	s.recountUnread()

	// Mutation history older than the fetch no longer matters.
	for id, at := range s.lastMutated {
		if !at.After(fetchedAt) {
			delete(s.lastMutated, id)
		}
	}
	for id, at := range s.tombstones {
		if !at.After(fetchedAt) {
			delete(s.tombstones, id)
		}
	}
}

func (s *StateStore) reindex() {
	s.index = make(map[string]int, len(s.items))
	for i := range s.items {
		s.index[s.items[i].ID] = i
	}
}

func (s *StateStore) recountUnread() {
	count := 0
	for i := range s.items {
		if s.items[i].IsUnread() {
			count++
		}
	}
	s.unreadCount = count
}
