package service

import (
	"context"
	"fmt"
	"time"

	"clinic_notify_backend/internal/email"
	"clinic_notify_backend/internal/events"
	"clinic_notify_backend/internal/messaging/repository"
	"clinic_notify_backend/internal/schedule"
	"clinic_notify_backend/internal/templating"
	"clinic_notify_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs. Implemented by
// repository.Repository; tests substitute an in-memory fake.
type Store interface {
	GetAppointmentBundle(ctx context.Context, id uuid.UUID) (*repository.AppointmentBundle, error)
	ListActiveTemplatesByTrigger(ctx context.Context, triggerType string) ([]repository.EmailTemplate, error)
	InsertScheduledEmail(ctx context.Context, msg *repository.ScheduledEmail) error
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]repository.ScheduledEmail, error)
	GetScheduledEmail(ctx context.Context, id uuid.UUID) (*repository.ScheduledEmail, error)
	MarkProcessed(ctx context.Context, id uuid.UUID, processedAt time.Time) error
	MarkError(ctx context.Context, id uuid.UUID, processedAt time.Time, errorMessage string) error
	MarkPending(ctx context.Context, id uuid.UUID, lastError *string) error
	AppendLog(ctx context.Context, entry repository.EmailLogEntry) error
	AddAppointmentComment(ctx context.Context, appointmentID uuid.UUID, comment string) error
}

// TemplateOutcome reports one template's fate during scheduling.
type TemplateOutcome struct {
	TemplateID   uuid.UUID
	TemplateName string
	Scheduled    bool
	Skipped      bool
	Err          error
}

// ScheduleResult aggregates the outcome of one trigger run.
type ScheduleResult struct {
	Outcomes []TemplateOutcome
}

// Scheduled counts templates that produced a pending message.
func (r ScheduleResult) Scheduled() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Scheduled {
			n++
		}
	}
	return n
}

// Failed counts templates whose scheduling raised an error.
func (r ScheduleResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// DispatchResult aggregates one dispatch pass over due messages.
type DispatchResult struct {
	Processed int
	Failed    int
}

// Service implements trigger processing and dispatch for scheduled emails.
type Service struct {
	store    Store
	sender   email.Sender
	compiler *templating.Compiler
	bus      events.Bus
	log      *logger.Logger
	now      func() time.Time
}

// New creates a messaging service. bus may be nil when no other module
// listens for scheduling events.
func New(store Store, sender email.Sender, compiler *templating.Compiler, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		sender:   sender,
		compiler: compiler,
		bus:      bus,
		log:      log,
		now:      time.Now,
	}
}

// ScheduleForAppointment runs every active template bound to the trigger
// against the appointment. Each template is evaluated independently: a
// failing template is reported in its outcome and never blocks the rest.
func (s *Service) ScheduleForAppointment(ctx context.Context, appointmentID uuid.UUID, triggerType string) (ScheduleResult, error) {
	bundle, err := s.store.GetAppointmentBundle(ctx, appointmentID)
	if err != nil {
		return ScheduleResult{}, err
	}

	templates, err := s.store.ListActiveTemplatesByTrigger(ctx, triggerType)
	if err != nil {
		return ScheduleResult{}, err
	}

	data := bundle.Context()
	now := s.now()

	result := ScheduleResult{Outcomes: make([]TemplateOutcome, 0, len(templates))}
	for _, tmpl := range templates {
		outcome := s.scheduleOne(ctx, bundle, tmpl, data, now)
		if outcome.Err != nil {
			s.log.Error("template scheduling failed",
				"template_id", tmpl.ID.String(),
				"template_name", tmpl.Name,
				"appointment_id", appointmentID.String(),
				"error", outcome.Err.Error(),
			)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	return result, nil
}

func (s *Service) scheduleOne(ctx context.Context, bundle *repository.AppointmentBundle, tmpl repository.EmailTemplate, data map[string]any, now time.Time) TemplateOutcome {
	outcome := TemplateOutcome{TemplateID: tmpl.ID, TemplateName: tmpl.Name}

	if !templating.EvaluateGroups(tmpl.ConditionGroups, data) {
		outcome.Skipped = true
		return outcome
	}

	subject := s.compiler.Compile(tmpl.Subject, data)
	body := s.compiler.Compile(tmpl.Body, data)

	rule := schedule.Rule{
		Type:         tmpl.ScheduleType,
		Value:        tmpl.ScheduleTimeValue,
		Unit:         tmpl.ScheduleTimeUnit,
		OnlyWorkdays: tmpl.SendOnlyWorkdays,
	}
	if tmpl.SendTimeStart != nil {
		rule.WindowStart = *tmpl.SendTimeStart
	}
	if tmpl.SendTimeEnd != nil {
		rule.WindowEnd = *tmpl.SendTimeEnd
	}
	sendAt := schedule.SendTime(bundle.StartTime, now, rule)

	msg := &repository.ScheduledEmail{
		ID:             uuid.New(),
		TemplateID:     tmpl.ID,
		AppointmentID:  bundle.ID,
		PatientID:      bundle.Patient.ID,
		RecipientEmail: bundle.Patient.Email,
		SenderEmail:    tmpl.SenderEmail,
		Subject:        subject,
		Body:           body,
		Status:         repository.StatusPending,
		ScheduledFor:   sendAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.InsertScheduledEmail(ctx, msg); err != nil {
		outcome.Err = fmt.Errorf("failed to schedule template %q: %w", tmpl.Name, err)
		return outcome
	}

	if s.bus != nil {
		s.bus.Publish(ctx, events.EmailScheduled{
			BaseEvent:     events.NewBaseEvent(),
			MessageID:     msg.ID,
			TemplateID:    tmpl.ID,
			AppointmentID: bundle.ID,
			ScheduledFor:  sendAt,
		})
	}

	outcome.Scheduled = true
	return outcome
}

// ProcessDue claims every message due at now and delivers it synchronously.
// Used by the HTTP process endpoint; the asynq dispatcher claims the same
// rows through ClaimDue, so overlapping runs never double-send.
func (s *Service) ProcessDue(ctx context.Context, now time.Time, limit int) (DispatchResult, error) {
	claimed, err := s.store.ClaimDue(ctx, now, limit)
	if err != nil {
		return DispatchResult{}, err
	}

	var result DispatchResult
	for i := range claimed {
		if err := s.DeliverClaimed(ctx, &claimed[i]); err != nil {
			result.Failed++
			continue
		}
		result.Processed++
	}

	return result, nil
}

// ClaimDue exposes the atomic claim for the asynq dispatcher loop.
func (s *Service) ClaimDue(ctx context.Context, now time.Time, limit int) ([]repository.ScheduledEmail, error) {
	return s.store.ClaimDue(ctx, now, limit)
}

// Release returns a claimed message to the pending queue. Called when a
// claim cannot be handed off for delivery, so the message stays claimable
// instead of being stuck in processing.
func (s *Service) Release(ctx context.Context, id uuid.UUID, cause error) error {
	var lastError *string
	if cause != nil {
		msg := cause.Error()
		lastError = &msg
	}
	return s.store.MarkPending(ctx, id, lastError)
}

// DeliverByID loads a previously claimed message and delivers it. Messages
// no longer in processing state are skipped; the claim already settled them.
func (s *Service) DeliverByID(ctx context.Context, id uuid.UUID) error {
	msg, err := s.store.GetScheduledEmail(ctx, id)
	if err != nil {
		return err
	}
	if msg.Status != repository.StatusProcessing {
		return nil
	}
	return s.DeliverClaimed(ctx, msg)
}

// DeliverClaimed sends one claimed message and records the outcome. The
// message must already be in processing state. Sending failures settle the
// message as error; bookkeeping failures after a successful send are logged
// but do not fail the delivery.
func (s *Service) DeliverClaimed(ctx context.Context, msg *repository.ScheduledEmail) error {
	sendErr := s.sender.Send(ctx, email.Message{
		From:    msg.SenderEmail,
		To:      msg.RecipientEmail,
		Subject: msg.Subject,
		HTML:    msg.Body,
	})

	now := s.now()
	if sendErr != nil {
		s.log.DispatchOutcome(msg.ID.String(), msg.RecipientEmail, "failed", sendErr)
		if err := s.store.MarkError(ctx, msg.ID, now, sendErr.Error()); err != nil {
			s.log.DatabaseError("mark scheduled email error", err)
		}
		s.appendLog(ctx, msg, repository.LogStatusFailed, sendErr)
		s.addFailureComment(ctx, msg, sendErr)
		return fmt.Errorf("failed to send email %s: %w", msg.ID, sendErr)
	}

	s.log.DispatchOutcome(msg.ID.String(), msg.RecipientEmail, "sent", nil)
	if err := s.store.MarkProcessed(ctx, msg.ID, now); err != nil {
		s.log.DatabaseError("mark scheduled email processed", err)
	}
	s.appendLog(ctx, msg, repository.LogStatusSent, nil)
	return nil
}

func (s *Service) appendLog(ctx context.Context, msg *repository.ScheduledEmail, status string, sendErr error) {
	entry := repository.EmailLogEntry{
		ID:               uuid.New(),
		ScheduledEmailID: msg.ID,
		RecipientEmail:   msg.RecipientEmail,
		Subject:          msg.Subject,
		Status:           status,
		CreatedAt:        s.now(),
	}
	if sendErr != nil {
		detail := sendErr.Error()
		entry.ErrorMessage = &detail
	}
	if err := s.store.AppendLog(ctx, entry); err != nil {
		s.log.DatabaseError("append email log", err)
	}
}

func (s *Service) addFailureComment(ctx context.Context, msg *repository.ScheduledEmail, sendErr error) {
	comment := fmt.Sprintf("E-Mail-Versand fehlgeschlagen: %s (%s)", msg.Subject, sendErr.Error())
	if err := s.store.AddAppointmentComment(ctx, msg.AppointmentID, comment); err != nil {
		s.log.DatabaseError("add appointment comment", err)
	}
}
