// internal/storage/preferences.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/models"
)

// PreferenceRepo persists per-user notification preferences as a single
// jsonb document per user. It implements preference.Repository.
type PreferenceRepo struct {
	db *sql.DB
}

// NewPreferenceRepo creates a preference repository.
func NewPreferenceRepo(db *sql.DB) *PreferenceRepo {
	return &PreferenceRepo{db: db}
}

// Get loads a user's preference record. A user with no stored record yields
// (nil, nil); the preference service fills in defaults.
func (r *PreferenceRepo) Get(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT preferences FROM notification_preferences WHERE user_id = $1`,
		userID,
	).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, stderrors.NewPreferenceLoadFailed(fmt.Sprintf("get preferences: %v", err))
	}

	var prefs models.NotificationPreference
	if err := json.Unmarshal(doc, &prefs); err != nil {
		return nil, stderrors.NewPreferenceLoadFailed(fmt.Sprintf("decode preferences: %v", err))
	}
	prefs.UserID = userID
	return &prefs, nil
}

// Save upserts a user's preference record.
func (r *PreferenceRepo) Save(ctx context.Context, prefs *models.NotificationPreference) error {
	doc, err := json.Marshal(prefs)
	if err != nil {
		return stderrors.NewValidationError(fmt.Sprintf("encode preferences: %v", err))
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notification_preferences (user_id, preferences, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id)
		DO UPDATE SET preferences = EXCLUDED.preferences, updated_at = EXCLUDED.updated_at`,
		prefs.UserID, doc, prefs.UpdatedAt,
	)
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("save preferences: %v", err))
	}
	return nil
}
