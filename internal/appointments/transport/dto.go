package transport

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus defines the lifecycle status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusNoShow    AppointmentStatus = "no_show"
)

// UpdateStatusRequest is the request body for a status transition
type UpdateStatusRequest struct {
	Status AppointmentStatus `json:"status" validate:"required,oneof=scheduled completed cancelled no_show"`
}

// ListRequest is the query parameters for listing appointments
type ListRequest struct {
	From  *time.Time `form:"from" time_format:"2006-01-02"`
	Limit int        `form:"limit" validate:"omitempty,min=1,max=500"`
}

// AppointmentResponse is the appointment representation returned by the API
type AppointmentResponse struct {
	ID              uuid.UUID  `json:"id"`
	PatientID       uuid.UUID  `json:"patientId"`
	ExaminationID   uuid.UUID  `json:"examinationId"`
	LocationID      *uuid.UUID `json:"locationId,omitempty"`
	DeviceID        *uuid.UUID `json:"deviceId,omitempty"`
	StartTime       time.Time  `json:"startTime"`
	Status          string     `json:"status"`
	PatientName     string     `json:"patientName"`
	ExaminationName string     `json:"examinationName"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
