package service

import (
	"context"
	"time"

	"clinic_notify_backend/internal/appointments/repository"
	"clinic_notify_backend/internal/appointments/transport"
	"clinic_notify_backend/internal/events"
	"clinic_notify_backend/platform/apperr"

	"github.com/google/uuid"
)

// Trigger types emitted on lifecycle transitions. Templates bind to these
// strings through their trigger_type column.
const (
	TriggerAppointmentCompleted = "appointment_completed"
	TriggerAppointmentCancelled = "appointment_cancelled"
	TriggerAppointmentNoShow    = "appointment_no_show"
)

var statusTriggers = map[transport.AppointmentStatus]string{
	transport.AppointmentStatusCompleted: TriggerAppointmentCompleted,
	transport.AppointmentStatusCancelled: TriggerAppointmentCancelled,
	transport.AppointmentStatusNoShow:    TriggerAppointmentNoShow,
}

// Store is the persistence surface the service needs.
type Store interface {
	List(ctx context.Context, from time.Time, limit int) ([]repository.Appointment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*repository.Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Service implements appointment reads and lifecycle transitions.
type Service struct {
	store Store
	bus   events.Bus
}

// New creates a new appointments service
func New(store Store, bus events.Bus) *Service {
	return &Service{store: store, bus: bus}
}

// List returns appointments starting at or after from.
func (s *Service) List(ctx context.Context, from time.Time, limit int) ([]repository.Appointment, error) {
	return s.store.List(ctx, from, limit)
}

// GetByID returns one appointment.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*repository.Appointment, error) {
	return s.store.GetByID(ctx, id)
}

// UpdateStatus transitions the appointment and publishes the matching
// lifecycle event so the messaging module can schedule templates bound to
// the transition.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status transport.AppointmentStatus) (*repository.Appointment, error) {
	appointment, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.Status == string(status) {
		return nil, apperr.Conflict("appointment already has this status")
	}

	if err := s.store.UpdateStatus(ctx, id, string(status)); err != nil {
		return nil, err
	}
	appointment.Status = string(status)

	if trigger, ok := statusTriggers[status]; ok && s.bus != nil {
		s.bus.Publish(ctx, events.AppointmentLifecycleChanged{
			BaseEvent:     events.NewBaseEvent(),
			AppointmentID: id,
			TriggerType:   trigger,
			StartTime:     appointment.StartTime,
		})
	}

	return appointment, nil
}
