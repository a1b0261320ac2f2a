// Package events defines the domain events exchanged between modules.
package events

import (
	"context"
	"time"

	platformevents "clinic_notify_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types so modules only import internal/events.
type (
	Event       = platformevents.Event
	BaseEvent   = platformevents.BaseEvent
	Handler     = platformevents.Handler
	HandlerFunc = platformevents.HandlerFunc
	Bus         = platformevents.Bus
)

// NewBaseEvent creates a new base event with the current timestamp.
func NewBaseEvent() BaseEvent {
	return platformevents.NewBaseEvent()
}

// Compile-time check that HandlerFunc satisfies Handler.
var _ Handler = HandlerFunc(func(context.Context, Event) error { return nil })

// AppointmentLifecycleChanged fires when an appointment enters a lifecycle
// stage that may trigger notifications: created, completed, cancelled.
// The messaging module maps the trigger type onto its email templates.
type AppointmentLifecycleChanged struct {
	BaseEvent
	AppointmentID uuid.UUID `json:"appointmentId"`
	TriggerType   string    `json:"triggerType"`
	StartTime     time.Time `json:"startTime"`
}

func (e AppointmentLifecycleChanged) EventName() string { return "appointments.lifecycle.changed" }

// EmailScheduled fires after the trigger processor persisted a pending
// scheduled email.
type EmailScheduled struct {
	BaseEvent
	MessageID     uuid.UUID `json:"messageId"`
	TemplateID    uuid.UUID `json:"templateId"`
	AppointmentID uuid.UUID `json:"appointmentId"`
	ScheduledFor  time.Time `json:"scheduledFor"`
}

func (e EmailScheduled) EventName() string { return "messaging.email.scheduled" }
