// internal/storage/notifications.go

// Package storage holds the hub's Postgres repositories.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/models"
)

// NotificationRepo persists notifications.
type NotificationRepo struct {
	db *sql.DB
}

// NewNotificationRepo creates a notification repository.
func NewNotificationRepo(db *sql.DB) *NotificationRepo {
	return &NotificationRepo{db: db}
}

const notificationColumns = "id, user_id, type, title, message, priority, channel, status, read_at, created_at, metadata"

// Insert stores a new notification row.
func (r *NotificationRepo) Insert(ctx context.Context, n *models.Notification) error {
	metadata, err := json.Marshal(n.Metadata)
	if err != nil {
		return stderrors.NewValidationError(fmt.Sprintf("invalid metadata: %v", err))
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message,
		n.Priority, n.Channel, n.Status, n.ReadAt, n.CreatedAt, metadata,
	)
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("insert notification: %v", err))
	}
	return nil
}

// List returns one page of a user's notifications, newest first, with the
// total count for pagination.
func (r *NotificationRepo) List(ctx context.Context, q models.ListQuery) (*models.ListResult, error) {
	q.Normalize()

	where := []string{"user_id = $1"}
	args := []interface{}{q.UserID}

	if q.UnreadOnly {
		where = append(where, "status = 'unread'")
	} else if q.ReadOnly {
		where = append(where, "status = 'read'")
	}
	if q.Type != "" {
		args = append(args, q.Type)
		where = append(where, fmt.Sprintf("type = $%d", len(args)))
	}
	if q.Priority != "" {
		args = append(args, q.Priority)
		where = append(where, fmt.Sprintf("priority = $%d", len(args)))
	}
	if q.Search != "" {
		args = append(args, "%"+q.Search+"%")
		where = append(where, fmt.Sprintf("(title ILIKE $%d OR message ILIKE $%d)", len(args), len(args)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE "+whereClause, args...,
	).Scan(&total)
	if err != nil {
		return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("count notifications: %v", err))
	}

	args = append(args, q.Limit, q.Offset())
	query := fmt.Sprintf(
		"SELECT %s FROM notifications WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d",
		notificationColumns, whereClause, len(args)-1, len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("list notifications: %v", err))
	}
	defer rows.Close()

	notifications := make([]models.Notification, 0, q.Limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("list notifications: %v", err))
	}

	totalPages := (total + q.Limit - 1) / q.Limit
	return &models.ListResult{
		Notifications: notifications,
		TotalCount:    total,
		TotalPages:    totalPages,
	}, nil
}

// UnreadCount returns the authoritative unread count for a user.
func (r *NotificationRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = $1 AND status = 'unread'`, userID,
	).Scan(&count)
	if err != nil {
		return 0, stderrors.NewQueryExecutionError(fmt.Sprintf("unread count: %v", err))
	}
	return count, nil
}

// MarkRead transitions one notification to read. Marking an already-read or
// unknown notification returns a conflict so the caller can treat it as a
// no-op.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = 'read', read_at = $3
		WHERE id = $1 AND user_id = $2 AND status = 'unread'`,
		id, userID, at,
	)
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("mark read: %v", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("mark read: %v", err))
	}
	if affected == 0 {
		return stderrors.NewConflictError("notification already read or not found")
	}
	return nil
}

// MarkAllRead transitions every unread notification of a user to read and
// returns how many rows changed.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE notifications
		SET status = 'read', read_at = $2
		WHERE user_id = $1 AND status = 'unread'`,
		userID, at,
	)
	if err != nil {
		return 0, stderrors.NewQueryExecutionError(fmt.Sprintf("mark all read: %v", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, stderrors.NewQueryExecutionError(fmt.Sprintf("mark all read: %v", err))
	}
	return affected, nil
}

// Delete removes a notification. Deleting an unknown id returns a conflict.
func (r *NotificationRepo) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("delete notification: %v", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("delete notification: %v", err))
	}
	if affected == 0 {
		return stderrors.NewConflictError("notification not found")
	}
	return nil
}

func scanNotification(rows *sql.Rows) (*models.Notification, error) {
	var n models.Notification
	var readAt sql.NullTime
	var metadata []byte

	err := rows.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message,
		&n.Priority, &n.Channel, &n.Status, &readAt, &n.CreatedAt, &metadata,
	)
	if err != nil {
		return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("scan notification: %v", err))
	}
	if readAt.Valid {
		n.ReadAt = &readAt.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &n.Metadata); err != nil {
			return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("decode metadata: %v", err))
		}
	}
	return &n, nil
}
