package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic_notify_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Appointment is the read model served by the appointments API.
type Appointment struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	ExaminationID   uuid.UUID
	LocationID      *uuid.UUID
	DeviceID        *uuid.UUID
	StartTime       time.Time
	Status          string
	PatientName     string
	ExaminationName string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Repository provides database operations for appointments.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a new appointments repository
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectAppointment = `
	SELECT a.id, a.patient_id, a.examination_id, a.location_id, a.device_id,
		a.start_time, a.status,
		p.first_name || ' ' || p.last_name,
		e.name,
		a.created_at, a.updated_at
	FROM appointments a
	JOIN patients p ON p.id = a.patient_id
	JOIN examinations e ON e.id = a.examination_id`

// List returns appointments starting at or after from, oldest first.
func (r *Repository) List(ctx context.Context, from time.Time, limit int) ([]Appointment, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx,
		selectAppointment+` WHERE a.start_time >= $1 ORDER BY a.start_time ASC LIMIT $2`,
		from, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	defer rows.Close()

	var appointments []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", rows.Err())
	}

	return appointments, nil
}

// GetByID returns one appointment.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.pool.QueryRow(ctx, selectAppointment+` WHERE a.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.NotFound("appointment not found")
		}
		return nil, err
	}
	return &a, nil
}

// UpdateStatus transitions the appointment to the given status.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = now() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperr.NotFound("appointment not found")
	}
	return nil
}

func scanAppointment(row pgx.Row) (Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.ExaminationID, &a.LocationID, &a.DeviceID,
		&a.StartTime, &a.Status, &a.PatientName, &a.ExaminationName,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Appointment{}, err
		}
		return Appointment{}, fmt.Errorf("failed to scan appointment: %w", err)
	}
	return a, nil
}
