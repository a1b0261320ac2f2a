package transport

import (
	"time"

	"clinic_notify_backend/internal/templating"

	"github.com/google/uuid"
)

// SaveTemplateRequest is the request body for creating or replacing a template
type SaveTemplateRequest struct {
	Name              string             `json:"name" validate:"required,min=1,max=200"`
	TriggerType       string             `json:"triggerType" validate:"required,min=1,max=100"`
	ConditionGroups   []templating.Group `json:"conditionGroups"`
	ScheduleType      string             `json:"scheduleType" validate:"required,oneof=immediate before_appointment after_appointment"`
	ScheduleTimeValue int                `json:"scheduleTimeValue" validate:"min=0"`
	ScheduleTimeUnit  string             `json:"scheduleTimeUnit" validate:"omitempty,oneof=hours days weeks months"`
	SendOnlyWorkdays  bool               `json:"sendOnlyWorkdays"`
	SendTimeStart     *string            `json:"sendTimeStart,omitempty" validate:"omitempty,len=5"`
	SendTimeEnd       *string            `json:"sendTimeEnd,omitempty" validate:"omitempty,len=5"`
	SenderEmail       string             `json:"senderEmail" validate:"required,email"`
	Subject           string             `json:"subject" validate:"required,min=1,max=500"`
	Body              string             `json:"body" validate:"required"`
	Active            bool               `json:"active"`
}

// SetActiveRequest is the request body for toggling a template
type SetActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

// TemplateResponse is the template representation returned by the API
type TemplateResponse struct {
	ID                uuid.UUID          `json:"id"`
	Name              string             `json:"name"`
	TriggerType       string             `json:"triggerType"`
	ConditionGroups   []templating.Group `json:"conditionGroups"`
	ScheduleType      string             `json:"scheduleType"`
	ScheduleTimeValue int                `json:"scheduleTimeValue"`
	ScheduleTimeUnit  string             `json:"scheduleTimeUnit"`
	SendOnlyWorkdays  bool               `json:"sendOnlyWorkdays"`
	SendTimeStart     *string            `json:"sendTimeStart,omitempty"`
	SendTimeEnd       *string            `json:"sendTimeEnd,omitempty"`
	SenderEmail       string             `json:"senderEmail"`
	Subject           string             `json:"subject"`
	Body              string             `json:"body"`
	Active            bool               `json:"active"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}
