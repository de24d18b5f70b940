// internal/store/state_test.go
package store

import (
	"fmt"
	"testing"
	"time"

	"notification-hub/internal/models"

	"github.com/stretchr/testify/assert"
)

var baseTime = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

// newTestStore returns a store with a controllable clock.
func newTestStore() (*StateStore, *time.Time) {
	s := New()
	current := baseTime
	s.now = func() time.Time { return current }
	return s, &current
}

func notif(id string, createdAt time.Time) models.Notification {
	return models.Notification{
		ID:        id,
		UserID:    "user-1",
		Type:      "reminder",
		Title:     "title " + id,
		Message:   "message " + id,
		Priority:  models.PriorityMedium,
		Channel:   models.ChannelInApp,
		Status:    models.StatusUnread,
		CreatedAt: createdAt,
	}
}

func TestInsert_IsIdempotent(t *testing.T) {
	s, _ := newTestStore()
	n := notif("n1", baseTime)

	s.Insert(n)
	s.Insert(n)

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 1, s.UnreadCount())
}

func TestInsert_NewestFirst(t *testing.T) {
	s, _ := newTestStore()
	s.Insert(notif("old", baseTime.Add(-time.Hour)))
	s.Insert(notif("new", baseTime))

	items := s.Items()
	assert.Equal(t, "new", items[0].ID)
	assert.Equal(t, "old", items[1].ID)
}

func TestMarkRead_DecrementsAtMostOnce(t *testing.T) {
	s, _ := newTestStore()
	s.Insert(notif("n1", baseTime))
	s.Insert(notif("n2", baseTime))
	assert.Equal(t, 2, s.UnreadCount())

	s.MarkRead("n1")
	assert.Equal(t, 1, s.UnreadCount())
	assert.False(t, s.Get("n1").IsUnread())
	assert.NotNil(t, s.Get("n1").ReadAt)

	// Repeats and unknown ids are no-ops.
	s.MarkRead("n1")
	s.MarkRead("ghost")
	assert.Equal(t, 1, s.UnreadCount())
}

func TestMarkAllRead(t *testing.T) {
	s, _ := newTestStore()
	for i := 0; i < 5; i++ {
		s.Insert(notif(fmt.Sprintf("n%d", i), baseTime))
	}
	s.MarkRead("n0")

	s.MarkAllRead()

	assert.Equal(t, 0, s.UnreadCount())
	for _, n := range s.Items() {
		assert.False(t, n.IsUnread())
	}
}

func TestRemove(t *testing.T) {
	s, _ := newTestStore()
	s.Insert(notif("n1", baseTime))
	s.Insert(notif("n2", baseTime))

	s.Remove("n1")
	assert.Equal(t, 1, s.Len())
	assert.Nil(t, s.Get("n1"))
	assert.Equal(t, 1, s.UnreadCount())

	s.Remove("ghost")
	assert.Equal(t, 1, s.Len())
}

func TestSetUnreadCount_AuthoritativeAndClamped(t *testing.T) {
	s, _ := newTestStore()
	s.Insert(notif("n1", baseTime))

	s.SetUnreadCount(42)
	assert.Equal(t, 42, s.UnreadCount())

	s.SetUnreadCount(-3)
	assert.Equal(t, 0, s.UnreadCount())
}

func TestReplacePage_SortsAndRecounts(t *testing.T) {
	s, _ := newTestStore()
	page := []models.Notification{
		notif("a", baseTime.Add(-2*time.Hour)),
		notif("b", baseTime.Add(-1*time.Hour)),
	}

	s.ReplacePage(page, "1", baseTime)

	items := s.Items()
	assert.Equal(t, "b", items[0].ID)
	assert.Equal(t, "a", items[1].ID)
	assert.Equal(t, 2, s.UnreadCount())
	assert.Equal(t, "1", s.Cursor())
}

func TestReplacePage_LocalMutationAfterFetchWins(t *testing.T) {
	s, clock := newTestStore()
	fetchedAt := baseTime

	s.Insert(notif("n1", baseTime.Add(-time.Hour)))
	*clock = baseTime.Add(time.Second)
	s.MarkRead("n1")

	// Server still thinks n1 is unread; the fetch predates the local read.
	serverCopy := notif("n1", baseTime.Add(-time.Hour))
	s.ReplacePage([]models.Notification{serverCopy}, "1", fetchedAt)

	assert.False(t, s.Get("n1").IsUnread(), "local read-after-fetch is kept")
	assert.Equal(t, 0, s.UnreadCount())
}

func TestReplacePage_TombstonedAfterFetchStaysDeleted(t *testing.T) {
	s, clock := newTestStore()
	fetchedAt := baseTime

	s.Insert(notif("n1", baseTime.Add(-time.Hour)))
	*clock = baseTime.Add(time.Second)
	s.Remove("n1")

	s.ReplacePage([]models.Notification{notif("n1", baseTime.Add(-time.Hour))}, "1", fetchedAt)

	assert.Nil(t, s.Get("n1"))
	assert.Equal(t, 0, s.Len())
}

func TestReplacePage_KeepsLocallyInsertedUnseenItems(t *testing.T) {
	s, clock := newTestStore()
	fetchedAt := baseTime

	// A push arrived after the poll fetch started; the page does not have it.
	*clock = baseTime.Add(time.Second)
	s.Insert(notif("fresh", baseTime.Add(time.Second)))

	s.ReplacePage([]models.Notification{notif("older", baseTime.Add(-time.Hour))}, "1", fetchedAt)

	assert.NotNil(t, s.Get("fresh"))
	items := s.Items()
	assert.Equal(t, "fresh", items[0].ID, "kept item sorts newest first")
	assert.Equal(t, 2, s.UnreadCount())
}

func TestReplacePage_ServerWinsWhenMutationPredatesFetch(t *testing.T) {
	s, clock := newTestStore()

	s.Insert(notif("n1", baseTime.Add(-time.Hour)))
	*clock = baseTime.Add(time.Second)
	s.MarkRead("n1")

	// This fetch happened after the local mutation, so the server row is
	// fresher and overwrites it.
	fetchedAt := baseTime.Add(2 * time.Second)
	server := notif("n1", baseTime.Add(-time.Hour))
	s.ReplacePage([]models.Notification{server}, "1", fetchedAt)

	assert.True(t, s.Get("n1").IsUnread())
	assert.Equal(t, 1, s.UnreadCount())
}
