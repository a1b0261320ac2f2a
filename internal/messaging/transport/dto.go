package transport

import "github.com/google/uuid"

// ScheduleRequest is the request body for triggering template scheduling.
type ScheduleRequest struct {
	AppointmentID *uuid.UUID `json:"appointmentId" validate:"required"`
	TriggerType   string     `json:"triggerType" validate:"required"`
}

// ScheduleResponse is the success body for POST /schedule.
type ScheduleResponse struct {
	Success bool `json:"success"`
}

// ProcessResponse is the success body for the process endpoints. The
// processed count is always present, even when zero messages were due.
type ProcessResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
}

// ErrorResponse is the failure body shared by the messaging endpoints.
// It carries no processed count since a failed run delivers nothing.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
