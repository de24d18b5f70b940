// internal/storage/notifications_test.go
package storage

import (
	"context"
	"testing"
	"time"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notificationRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "type", "title", "message",
		"priority", "channel", "status", "read_at", "created_at", "metadata",
	})
	for _, id := range ids {
		rows.AddRow(id, "user-1", "reminder", "title", "message",
			"medium", "in_app", "unread", nil, time.Now(), []byte(`{"k":"v"}`))
	}
	return rows
}

func TestNotificationRepo_List(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE user_id = \$1 AND status = 'unread'`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	mock.ExpectQuery(`SELECT .+ FROM notifications WHERE user_id = \$1 AND status = 'unread' ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("user-1", 20, 0).
		WillReturnRows(notificationRows("n1", "n2", "n3"))

	repo := NewNotificationRepo(db)
	result, err := repo.List(context.Background(), models.ListQuery{
		UserID:     "user-1",
		UnreadOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalCount)
	assert.Equal(t, 1, result.TotalPages)
	require.Len(t, result.Notifications, 3)
	assert.Equal(t, "n1", result.Notifications[0].ID)
	assert.Equal(t, map[string]interface{}{"k": "v"}, result.Notifications[0].Metadata)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_List_SearchAndTypeFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications WHERE user_id = \$1 AND type = \$2 AND \(title ILIKE \$3 OR message ILIKE \$3\)`).
		WithArgs("user-1", "reminder", "%invoice%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	mock.ExpectQuery(`SELECT .+ FROM notifications WHERE user_id = \$1 AND type = \$2 AND \(title ILIKE \$3 OR message ILIKE \$3\) ORDER BY created_at DESC LIMIT \$4 OFFSET \$5`).
		WithArgs("user-1", "reminder", "%invoice%", 20, 0).
		WillReturnRows(notificationRows("n1"))

	repo := NewNotificationRepo(db)
	result, err := repo.List(context.Background(), models.ListQuery{
		UserID: "user-1",
		Type:   "reminder",
		Search: "invoice",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.TotalCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_UnreadCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM notifications`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	repo := NewNotificationRepo(db)
	count, err := repo.UnreadCount(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestNotificationRepo_MarkRead(t *testing.T) {
	tests := []struct {
		name         string
		rowsAffected int64
		wantConflict bool
	}{
		{"unread row transitions", 1, false},
		{"already read or unknown is a conflict", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()

			at := time.Now().UTC()
			mock.ExpectExec(`UPDATE notifications`).
				WithArgs("n1", "user-1", at).
				WillReturnResult(sqlmock.NewResult(0, tt.rowsAffected))

			repo := NewNotificationRepo(db)
			err = repo.MarkRead(context.Background(), "user-1", "n1", at)
			if tt.wantConflict {
				require.Error(t, err)
				assert.True(t, stderrors.IsConflict(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNotificationRepo_MarkAllRead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Now().UTC()
	mock.ExpectExec(`UPDATE notifications`).
		WithArgs("user-1", at).
		WillReturnResult(sqlmock.NewResult(0, 5))

	repo := NewNotificationRepo(db)
	affected, err := repo.MarkAllRead(context.Background(), "user-1", at)
	require.NoError(t, err)
	assert.Equal(t, int64(5), affected)
}

func TestNotificationRepo_Delete_UnknownIDIsConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM notifications`).
		WithArgs("ghost", "user-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewNotificationRepo(db)
	err = repo.Delete(context.Background(), "user-1", "ghost")
	require.Error(t, err)
	assert.True(t, stderrors.IsConflict(err))
}

func TestNotificationRepo_Insert(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	n := &models.Notification{
		ID:        "n1",
		UserID:    "user-1",
		Type:      "reminder",
		Title:     "t",
		Message:   "m",
		Priority:  models.PriorityMedium,
		Channel:   models.ChannelInApp,
		Status:    models.StatusUnread,
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec(`INSERT INTO notifications`).
		WithArgs(n.ID, n.UserID, n.Type, n.Title, n.Message,
			n.Priority, n.Channel, n.Status, nil, n.CreatedAt, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewNotificationRepo(db)
	assert.NoError(t, repo.Insert(context.Background(), n))
	assert.NoError(t, mock.ExpectationsWereMet())
}
