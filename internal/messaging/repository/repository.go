package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clinic_notify_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	appointmentNotFoundMsg = "appointment not found"
	messageNotFoundMsg     = "scheduled email not found"
)

// Repository provides database operations for the messaging module.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new messaging repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetAppointmentBundle loads an appointment with patient, examination,
// location and device joined in a single query.
func (r *Repository) GetAppointmentBundle(ctx context.Context, id uuid.UUID) (*AppointmentBundle, error) {
	query := `
		SELECT a.id, a.start_time, a.status,
			p.id, p.first_name, p.last_name, p.email, p.gender, p.birth_date,
			e.id, e.name, e.modality, e.preparation_notes, e.requires_fasting, e.duration_minutes,
			l.id, l.name, l.street, l.city, l.phone,
			d.id, d.name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN examinations e ON e.id = a.examination_id
		LEFT JOIN locations l ON l.id = a.location_id
		LEFT JOIN devices d ON d.id = a.device_id
		WHERE a.id = $1`

	var b AppointmentBundle
	var locID *uuid.UUID
	var locName, locStreet, locCity, locPhone *string
	var devID *uuid.UUID
	var devName *string

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&b.ID, &b.StartTime, &b.Status,
		&b.Patient.ID, &b.Patient.FirstName, &b.Patient.LastName, &b.Patient.Email,
		&b.Patient.Gender, &b.Patient.BirthDate,
		&b.Examination.ID, &b.Examination.Name, &b.Examination.Modality,
		&b.Examination.PreparationNotes, &b.Examination.RequiresFasting, &b.Examination.DurationMinutes,
		&locID, &locName, &locStreet, &locCity, &locPhone,
		&devID, &devName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(appointmentNotFoundMsg)
		}
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}

	if locID != nil {
		b.Location = &Location{ID: *locID, Name: *locName, Street: locStreet, City: locCity, Phone: locPhone}
	}
	if devID != nil {
		b.Device = &Device{ID: *devID, Name: *devName}
	}

	return &b, nil
}

// ListActiveTemplatesByTrigger returns all active templates bound to the
// trigger type, in creation order.
func (r *Repository) ListActiveTemplatesByTrigger(ctx context.Context, triggerType string) ([]EmailTemplate, error) {
	query := `
		SELECT id, name, trigger_type, condition_groups, schedule_type, schedule_time_value,
			schedule_time_unit, send_only_workdays, send_time_start, send_time_end,
			sender_email, subject, body, active, created_at, updated_at
		FROM email_templates
		WHERE trigger_type = $1 AND active
		ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, triggerType)
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
		return EmailTemplate{}, fmt.Errorf("failed to scan template: %w", err)
	}
	if len(groupsRaw) > 0 {
		if err := json.Unmarshal(groupsRaw, &tmpl.ConditionGroups); err != nil {
			return EmailTemplate{}, fmt.Errorf("failed to decode condition groups: %w", err)
		}
	}
	return tmpl, nil
}

// InsertScheduledEmail persists a rendered message with status pending.
// scheduled_for is written once here and never recomputed.
func (r *Repository) InsertScheduledEmail(ctx context.Context, msg *ScheduledEmail) error {
	query := `
		INSERT INTO scheduled_emails (
			id, template_id, appointment_id, patient_id, recipient_email, sender_email,
			subject, body, status, scheduled_for, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		msg.ID, msg.TemplateID, msg.AppointmentID, msg.PatientID, msg.RecipientEmail,
		msg.SenderEmail, msg.Subject, msg.Body, string(msg.Status), msg.ScheduledFor,
		msg.CreatedAt, msg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert scheduled email: %w", err)
	}

	return nil
}

// ClaimDue atomically transitions due pending messages to processing and
// returns them. Concurrent claimers skip each other's locked rows, so a
// message is claimed by at most one worker.
func (r *Repository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]ScheduledEmail, error) {
	if limit < 1 {
		limit = 50
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM scheduled_emails
		WHERE status = 'pending' AND scheduled_for <= $1
		ORDER BY scheduled_for ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	)
	UPDATE scheduled_emails s
	SET status = 'processing', attempts = attempts + 1, updated_at = now()
	FROM cte
	WHERE s.id = cte.id
	RETURNING s.id, s.template_id, s.appointment_id, s.patient_id, s.recipient_email,
		s.sender_email, s.subject, s.body, s.status, s.scheduled_for, s.processed_at,
		s.error_message, s.attempts, s.created_at, s.updated_at`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due emails: %w", err)
	}
	defer rows.Close()

	var results []ScheduledEmail
	for rows.Next() {
		msg, err := scanScheduledEmail(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, msg)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to claim due emails: %w", rows.Err())
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit claim: %w", err)
	}

	return results, nil
}

// GetScheduledEmail loads one message by ID.
func (r *Repository) GetScheduledEmail(ctx context.Context, id uuid.UUID) (*ScheduledEmail, error) {
	query := `
		SELECT id, template_id, appointment_id, patient_id, recipient_email, sender_email,
			subject, body, status, scheduled_for, processed_at, error_message, attempts,
			created_at, updated_at
		FROM scheduled_emails WHERE id = $1`

	msg, err := scanScheduledEmail(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound(messageNotFoundMsg)
		}
		return nil, err
	}
	return &msg, nil
}

func scanScheduledEmail(row pgx.Row) (ScheduledEmail, error) {
	var msg ScheduledEmail
	var status string
	err := row.Scan(
		&msg.ID, &msg.TemplateID, &msg.AppointmentID, &msg.PatientID, &msg.RecipientEmail,
		&msg.SenderEmail, &msg.Subject, &msg.Body, &status, &msg.ScheduledFor,
		&msg.ProcessedAt, &msg.ErrorMessage, &msg.Attempts, &msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ScheduledEmail{}, err
		}
		return ScheduledEmail{}, fmt.Errorf("failed to scan scheduled email: %w", err)
	}
	msg.Status = Status(status)
	return msg, nil
}

// MarkProcessed finalizes a claimed message as successfully sent.
// The status guard keeps terminal states immutable.
func (r *Repository) MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE scheduled_emails
		 SET status = 'processed', processed_at = $2, error_message = NULL, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id, processedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("scheduled email is not in processing state")
	}
	return nil
}

// MarkPending returns a claimed message to the pending queue so a later
// dispatch pass can claim it again. Only processing rows are affected.
func (r *Repository) MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE scheduled_emails
		 SET status = 'pending', error_message = $2, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id, lastError,
	)
	if err != nil {
		return fmt.Errorf("failed to mark pending: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("scheduled email is not in processing state")
	}
	return nil
}

// MarkError finalizes a claimed message as failed.
func (r *Repository) MarkError(ctx context.Context, id uuid.UUID, processedAt time.Time, errorMessage string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE scheduled_emails
		 SET status = 'error', processed_at = $2, error_message = $3, updated_at = now()
		 WHERE id = $1 AND status = 'processing'`,
		id, processedAt, errorMessage,
	)
	if err != nil {
		return fmt.Errorf("failed to mark error: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.Conflict("scheduled email is not in processing state")
	}
	return nil
}

// AppendLog writes one append-only delivery log entry.
func (r *Repository) AppendLog(ctx context.Context, entry EmailLogEntry) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO email_logs (id, scheduled_email_id, recipient_email, subject, status, error_message, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID, entry.ScheduledEmailID, entry.RecipientEmail, entry.Subject,
		entry.Status, entry.ErrorMessage, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append email log: %w", err)
	}
	return nil
}

// AddAppointmentComment attaches a system comment to an appointment.
func (r *Repository) AddAppointmentComment(ctx context.Context, appointmentID uuid.UUID, comment string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO appointment_comments (id, appointment_id, comment, author, created_at)
		 VALUES ($1, $2, $3, 'system', $4)`,
		uuid.New(), appointmentID, comment, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to add appointment comment: %w", err)
	}
	return nil
}

// Ping verifies database connectivity for readiness checks.
func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
