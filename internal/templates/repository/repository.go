package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinic_notify_backend/internal/templating"
	"clinic_notify_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EmailTemplate is the full template record managed by the admin API.
type EmailTemplate struct {
	ID                uuid.UUID
	Name              string
	TriggerType       string
	ConditionGroups   []templating.Group
	ScheduleType      string
	ScheduleTimeValue int
	ScheduleTimeUnit  string
	SendOnlyWorkdays  bool
	SendTimeStart     *string
	SendTimeEnd       *string
	SenderEmail       string
	Subject           string
	Body              string
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Repository provides database operations for email templates.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new templates repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectTemplate = `
	SELECT id, name, trigger_type, condition_groups, schedule_type, schedule_time_value,
		schedule_time_unit, send_only_workdays, send_time_start, send_time_end,
		sender_email, subject, body, active, created_at, updated_at
	FROM email_templates`

// List returns all templates, newest first.
func (r *Repository) List(ctx context.Context) ([]EmailTemplate, error) {
	rows, err := r.pool.Query(ctx, selectTemplate+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []EmailTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, tmpl)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to list templates: %w", rows.Err())
	}

	return templates, nil
}

// GetByID returns one template.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*EmailTemplate, error) {
	tmpl, err := scanTemplate(r.pool.QueryRow(ctx, selectTemplate+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("template not found")
		}
		return nil, err
	}
	return &tmpl, nil
}

// Create inserts a new template.
func (r *Repository) Create(ctx context.Context, tmpl *EmailTemplate) error {
	groups, err := marshalGroups(tmpl.ConditionGroups)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO email_templates (
			id, name, trigger_type, condition_groups, schedule_type, schedule_time_value,
			schedule_time_unit, send_only_workdays, send_time_start, send_time_end,
			sender_email, subject, body, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		tmpl.ID, tmpl.Name, tmpl.TriggerType, groups, tmpl.ScheduleType,
		tmpl.ScheduleTimeValue, tmpl.ScheduleTimeUnit, tmpl.SendOnlyWorkdays,
		tmpl.SendTimeStart, tmpl.SendTimeEnd, tmpl.SenderEmail, tmpl.Subject,
		tmpl.Body, tmpl.Active, tmpl.CreatedAt, tmpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	return nil
}

// Update replaces every editable field of the template.
func (r *Repository) Update(ctx context.Context, tmpl *EmailTemplate) error {
	groups, err := marshalGroups(tmpl.ConditionGroups)
	if err != nil {
		return err
	}

	result, err := r.pool.Exec(ctx, `
		UPDATE email_templates SET
			name = $2, trigger_type = $3, condition_groups = $4, schedule_type = $5,
			schedule_time_value = $6, schedule_time_unit = $7, send_only_workdays = $8,
			send_time_start = $9, send_time_end = $10, sender_email = $11,
			subject = $12, body = $13, active = $14, updated_at = now()
		WHERE id = $1`,
		tmpl.ID, tmpl.Name, tmpl.TriggerType, groups, tmpl.ScheduleType,
		tmpl.ScheduleTimeValue, tmpl.ScheduleTimeUnit, tmpl.SendOnlyWorkdays,
		tmpl.SendTimeStart, tmpl.SendTimeEnd, tmpl.SenderEmail, tmpl.Subject,
		tmpl.Body, tmpl.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to update template: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("template not found")
	}
	return nil
}

// SetActive toggles the template's active flag.
func (r *Repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE email_templates SET active = $2, updated_at = now() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("failed to set template active: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("template not found")
	}
	return nil
}

func scanTemplate(row pgx.Row) (EmailTemplate, error) {
	var tmpl EmailTemplate
	var groupsRaw []byte
	err := row.Scan(
		&tmpl.ID, &tmpl.Name, &tmpl.TriggerType, &groupsRaw, &tmpl.ScheduleType,
		&tmpl.ScheduleTimeValue, &tmpl.ScheduleTimeUnit, &tmpl.SendOnlyWorkdays,
		&tmpl.SendTimeStart, &tmpl.SendTimeEnd, &tmpl.SenderEmail,
		&tmpl.Subject, &tmpl.Body, &tmpl.Active, &tmpl.CreatedAt, &tmpl.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return EmailTemplate{}, err
		}
		return EmailTemplate{}, fmt.Errorf("failed to scan template: %w", err)
	}
	if len(groupsRaw) > 0 {
		if err := json.Unmarshal(groupsRaw, &tmpl.ConditionGroups); err != nil {
			return EmailTemplate{}, fmt.Errorf("failed to decode condition groups: %w", err)
		}
	}
	return tmpl, nil
}

func marshalGroups(groups []templating.Group) ([]byte, error) {
	if groups == nil {
		groups = []templating.Group{}
	}
	raw, err := json.Marshal(groups)
	if err != nil {
		return nil, fmt.Errorf("failed to encode condition groups: %w", err)
	}
	return raw, nil
}
