// internal/storage/preferences_test.go
package storage

import (
	"context"
	"testing"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferenceRepo_Get(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	doc := `{"channels":{"in_app":{"enabled":true},"email":{"enabled":false}},"sound":false,"desktop":true}`
	mock.ExpectQuery(`SELECT preferences FROM notification_preferences WHERE user_id = \$1`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"preferences"}).AddRow([]byte(doc)))

	repo := NewPreferenceRepo(db)
	prefs, err := repo.Get(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, prefs)
	assert.Equal(t, "user-1", prefs.UserID)
	assert.False(t, prefs.Channels["email"].Enabled)
	assert.True(t, prefs.Channels["in_app"].Enabled)
	assert.False(t, prefs.Sound)
	assert.True(t, prefs.Desktop)
}

func TestPreferenceRepo_Get_NoRecordYieldsNil(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT preferences FROM notification_preferences`).
		WithArgs("new-user").
		WillReturnRows(sqlmock.NewRows([]string{"preferences"}))

	repo := NewPreferenceRepo(db)
	prefs, err := repo.Get(context.Background(), "new-user")
	assert.NoError(t, err)
	assert.Nil(t, prefs)
}

func TestPreferenceRepo_Get_CorruptDocument(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT preferences FROM notification_preferences`).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"preferences"}).AddRow([]byte(`{broken`)))

	repo := NewPreferenceRepo(db)
	_, err = repo.Get(context.Background(), "user-1")
	require.Error(t, err)
	assert.True(t, stderrors.HasCode(err, stderrors.ErrCodePreferenceLoadFailed))
}

func TestPreferenceRepo_Save_Upserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO notification_preferences .+ ON CONFLICT \(user_id\)`).
		WithArgs("user-1", sqlmock.AnyArg(), "2026-08-28T00:00:00Z").
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPreferenceRepo(db)
	prefs := &models.NotificationPreference{
		UserID: "user-1",
		Channels: map[string]models.ChannelPreference{
			"in_app": {Enabled: true},
		},
		Sound:     true,
		UpdatedAt: "2026-08-28T00:00:00Z",
	}
	assert.NoError(t, repo.Save(context.Background(), prefs))
	assert.NoError(t, mock.ExpectationsWereMet())
}
