// internal/storage/templates.go
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	stderrors "notification-hub/internal/common/errors"
	"notification-hub/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// TemplateRepo persists versioned notification templates. Updates never
// rewrite a row; they insert the next version so in-flight renders keep
// resolving the version they started with.
type TemplateRepo struct {
	db *sql.DB
}

// NewTemplateRepo creates a template repository.
func NewTemplateRepo(db *sql.DB) *TemplateRepo {
	return &TemplateRepo{db: db}
}

const templateColumns = "id, version, name, category, type, channels, subject, title, message, target_roles, departments, variables, scheduling, created_at, updated_at"

// Get returns the latest version of a template.
func (r *TemplateRepo) Get(ctx context.Context, id string) (*models.NotificationTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+`
		FROM notification_templates
		WHERE id = $1
		ORDER BY version DESC
		LIMIT 1`, id)

	tmpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, stderrors.NewTemplateNotFoundError(fmt.Sprintf("template %s", id))
	}
	return tmpl, err
}

// GetVersion returns one specific version of a template.
func (r *TemplateRepo) GetVersion(ctx context.Context, id string, version int) (*models.NotificationTemplate, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+templateColumns+`
		FROM notification_templates
		WHERE id = $1 AND version = $2`, id, version)

	tmpl, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, stderrors.NewTemplateNotFoundError(fmt.Sprintf("template %s v%d", id, version))
	}
	return tmpl, err
}

// List returns the latest version of every template.
func (r *TemplateRepo) List(ctx context.Context) ([]models.NotificationTemplate, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (id) `+templateColumns+`
		FROM notification_templates
		ORDER BY id, version DESC`)
	if err != nil {
		return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("list templates: %v", err))
	}
	defer rows.Close()

	var templates []models.NotificationTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("list templates: %v", err))
	}
	return templates, nil
}

// Create stores a new template as version 1. A missing id is generated.
func (r *TemplateRepo) Create(ctx context.Context, tmpl *models.NotificationTemplate) error {
	if tmpl.ID == "" {
		tmpl.ID = uuid.NewString()
	}
	tmpl.Version = 1
	return r.insert(ctx, tmpl)
}

// Update inserts the next version of an existing template and returns it.
func (r *TemplateRepo) Update(ctx context.Context, tmpl *models.NotificationTemplate) error {
	var latest int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0) FROM notification_templates WHERE id = $1`,
		tmpl.ID,
	).Scan(&latest)
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("latest template version: %v", err))
	}
	if latest == 0 {
		return stderrors.NewTemplateNotFoundError(fmt.Sprintf("template %s", tmpl.ID))
	}

	tmpl.Version = latest + 1
	return r.insert(ctx, tmpl)
}

// Delete removes every version of a template.
func (r *TemplateRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM notification_templates WHERE id = $1`, id)
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("delete template: %v", err))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("delete template: %v", err))
	}
	if affected == 0 {
		return stderrors.NewTemplateNotFoundError(fmt.Sprintf("template %s", id))
	}
	return nil
}

func (r *TemplateRepo) insert(ctx context.Context, tmpl *models.NotificationTemplate) error {
	variables, err := json.Marshal(tmpl.Variables)
	if err != nil {
		return stderrors.NewTemplateValidationFailed(fmt.Sprintf("invalid variables: %v", err))
	}
	scheduling, err := json.Marshal(tmpl.Scheduling)
	if err != nil {
		return stderrors.NewTemplateValidationFailed(fmt.Sprintf("invalid scheduling: %v", err))
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notification_templates (`+templateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		tmpl.ID, tmpl.Version, tmpl.Name, tmpl.Category, tmpl.Type,
		pq.Array(tmpl.Channels), tmpl.Subject, tmpl.Title, tmpl.Message,
		pq.Array(tmpl.TargetRoles), pq.Array(tmpl.Departments),
		variables, scheduling, tmpl.CreatedAt, tmpl.UpdatedAt,
	)
	if err != nil {
		return stderrors.NewQueryExecutionError(fmt.Sprintf("insert template: %v", err))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*models.NotificationTemplate, error) {
	var tmpl models.NotificationTemplate
	var channels, targetRoles, departments pq.StringArray
	var variables, scheduling []byte

	err := row.Scan(
		&tmpl.ID, &tmpl.Version, &tmpl.Name, &tmpl.Category, &tmpl.Type,
		&channels, &tmpl.Subject, &tmpl.Title, &tmpl.Message,
		&targetRoles, &departments, &variables, &scheduling,
		&tmpl.CreatedAt, &tmpl.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("scan template: %v", err))
	}

	tmpl.Channels = []string(channels)
	tmpl.TargetRoles = []string(targetRoles)
	tmpl.Departments = []string(departments)

	if len(variables) > 0 {
		if err := json.Unmarshal(variables, &tmpl.Variables); err != nil {
			return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("decode variables: %v", err))
		}
	}
	if len(scheduling) > 0 {
		if err := json.Unmarshal(scheduling, &tmpl.Scheduling); err != nil {
			return nil, stderrors.NewQueryExecutionError(fmt.Sprintf("decode scheduling: %v", err))
		}
	}
	return &tmpl, nil
}
