package repository

import (
	"time"

	"clinic_notify_backend/internal/templating"

	"github.com/google/uuid"
)

// Scheduled email statuses. A message moves pending -> processing ->
// processed|error; terminal states are never mutated again.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusProcessed  Status = "processed"
	StatusError      Status = "error"
)

// Delivery log statuses.
const (
	LogStatusSent   = "sent"
	LogStatusFailed = "failed"
)

// EmailTemplate is a trigger-bound message template. Condition groups decide
// whether the template applies to a given appointment context; the schedule
// fields decide when the rendered message becomes due.
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

// ScheduledEmail is one rendered, persisted message waiting for dispatch.
type ScheduledEmail struct {
	ID             uuid.UUID
	TemplateID     uuid.UUID
	AppointmentID  uuid.UUID
	PatientID      uuid.UUID
	RecipientEmail string
	SenderEmail    string
	Subject        string
	Body           string
	Status         Status
	ScheduledFor   time.Time
	ProcessedAt    *time.Time
	ErrorMessage   *string
	Attempts       int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EmailLogEntry is one append-only record of a send attempt's outcome.
type EmailLogEntry struct {
	ID               uuid.UUID
	ScheduledEmailID uuid.UUID
	RecipientEmail   string
	Subject          string
	Status           string
	ErrorMessage     *string
	CreatedAt        time.Time
}

// Patient is the recipient-side record joined onto an appointment.
type Patient struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     string
	Gender    *string
	BirthDate *time.Time
}

// Examination describes the booked procedure.
type Examination struct {
	ID               uuid.UUID
	Name             string
	Modality         *string
	PreparationNotes *string
	RequiresFasting  bool
	DurationMinutes  int
}

// Location is the practice site of the appointment; optional.
type Location struct {
	ID     uuid.UUID
	Name   string
	Street *string
	City   *string
	Phone  *string
}

// Device is the machine the examination runs on; optional.
type Device struct {
	ID   uuid.UUID
	Name string
}

// AppointmentBundle is an appointment with all records templates can
// reference, loaded in one query.
type AppointmentBundle struct {
	ID          uuid.UUID
	StartTime   time.Time
	Status      string
	Patient     Patient
	Examination Examination
	Location    *Location
	Device      *Device
}

// Context builds the evaluation context shared by condition groups and the
// template compiler. Keys mirror the column names templates reference, e.g.
// patient.first_name. Optional relations resolve as missing paths.
func (b *AppointmentBundle) Context() map[string]any {
	ctx := map[string]any{
		"appointment": map[string]any{
			"id":         b.ID.String(),
			"start_time": b.StartTime,
			"status":     b.Status,
		},
		"patient": map[string]any{
			"id":         b.Patient.ID.String(),
			"first_name": b.Patient.FirstName,
			"last_name":  b.Patient.LastName,
			"email":      b.Patient.Email,
			"gender":     optString(b.Patient.Gender),
		},
		"examination": map[string]any{
			"id":                b.Examination.ID.String(),
			"name":              b.Examination.Name,
			"modality":          optString(b.Examination.Modality),
			"preparation_notes": optString(b.Examination.PreparationNotes),
			"requires_fasting":  b.Examination.RequiresFasting,
			"duration_minutes":  b.Examination.DurationMinutes,
		},
	}

	if b.Patient.BirthDate != nil {
		ctx["patient"].(map[string]any)["birth_date"] = *b.Patient.BirthDate
	}
	if b.Location != nil {
		ctx["location"] = map[string]any{
			"id":     b.Location.ID.String(),
			"name":   b.Location.Name,
			"street": optString(b.Location.Street),
			"city":   optString(b.Location.City),
			"phone":  optString(b.Location.Phone),
		}
	}
	if b.Device != nil {
		ctx["device"] = map[string]any{
			"id":   b.Device.ID.String(),
			"name": b.Device.Name,
		}
	}

	return ctx
}

func optString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
