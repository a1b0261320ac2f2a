package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"clinic_notify_backend/internal/email"
	"clinic_notify_backend/internal/messaging/repository"
	"clinic_notify_backend/internal/schedule"
	"clinic_notify_backend/internal/templating"
	"clinic_notify_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	bundle    *repository.AppointmentBundle
	bundleErr error
	templates []repository.EmailTemplate
	listErr   error

	scheduled []repository.ScheduledEmail
	insertErr map[uuid.UUID]error
	claimErr  error

	logs     []repository.EmailLogEntry
	comments []string
}

func (f *fakeStore) GetAppointmentBundle(_ context.Context, _ uuid.UUID) (*repository.AppointmentBundle, error) {
	if f.bundleErr != nil {
		return nil, f.bundleErr
	}
	return f.bundle, nil
}

func (f *fakeStore) ListActiveTemplatesByTrigger(_ context.Context, triggerType string) ([]repository.EmailTemplate, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []repository.EmailTemplate
	for _, t := range f.templates {
		if t.TriggerType == triggerType && t.Active {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertScheduledEmail(_ context.Context, msg *repository.ScheduledEmail) error {
	if err := f.insertErr[msg.TemplateID]; err != nil {
		return err
	}
	f.scheduled = append(f.scheduled, *msg)
	return nil
}

func (f *fakeStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]repository.ScheduledEmail, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	var claimed []repository.ScheduledEmail
	for i := range f.scheduled {
		msg := &f.scheduled[i]
		if msg.Status == repository.StatusPending && !msg.ScheduledFor.After(now) {
			msg.Status = repository.StatusProcessing
			msg.Attempts++
			claimed = append(claimed, *msg)
			if len(claimed) == limit {
				break
			}
		}
	}
	return claimed, nil
}

func (f *fakeStore) GetScheduledEmail(_ context.Context, id uuid.UUID) (*repository.ScheduledEmail, error) {
	for i := range f.scheduled {
		if f.scheduled[i].ID == id {
			msg := f.scheduled[i]
			return &msg, nil
		}
	}
	return nil, errors.New("not found")
}

func (f *fakeStore) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	return f.settle(id, repository.StatusProcessed, processedAt, nil)
}

func (f *fakeStore) MarkError(_ context.Context, id uuid.UUID, processedAt time.Time, errorMessage string) error {
	return f.settle(id, repository.StatusError, processedAt, &errorMessage)
}

func (f *fakeStore) MarkPending(_ context.Context, id uuid.UUID, lastError *string) error {
	for i := range f.scheduled {
		msg := &f.scheduled[i]
		if msg.ID == id {
			if msg.Status != repository.StatusProcessing {
				return errors.New("not in processing state")
			}
			msg.Status = repository.StatusPending
			msg.ErrorMessage = lastError
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) settle(id uuid.UUID, status repository.Status, at time.Time, errMsg *string) error {
	for i := range f.scheduled {
		msg := &f.scheduled[i]
		if msg.ID == id {
			if msg.Status != repository.StatusProcessing {
				return errors.New("not in processing state")
			}
			msg.Status = status
			msg.ProcessedAt = &at
			msg.ErrorMessage = errMsg
			return nil
		}
	}
	return errors.New("not found")
}

func (f *fakeStore) AppendLog(_ context.Context, entry repository.EmailLogEntry) error {
	f.logs = append(f.logs, entry)
	return nil
}

func (f *fakeStore) AddAppointmentComment(_ context.Context, _ uuid.UUID, comment string) error {
	f.comments = append(f.comments, comment)
	return nil
}

type fakeSender struct {
	sent    []email.Message
	failFor string
}

func (f *fakeSender) Send(_ context.Context, msg email.Message) error {
	if f.failFor != "" && msg.To == f.failFor {
		return errors.New("smtp refused")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func testBundle() *repository.AppointmentBundle {
	return &repository.AppointmentBundle{
		ID:        uuid.New(),
		StartTime: time.Date(2024, 5, 10, 10, 0, 0, 0, time.UTC),
		Status:    "scheduled",
		Patient: repository.Patient{
			ID:        uuid.New(),
			FirstName: "Anna",
			LastName:  "Schmidt",
			Email:     "anna@example.com",
		},
		Examination: repository.Examination{
			ID:              uuid.New(),
			Name:            "MRT Knie",
			RequiresFasting: false,
			DurationMinutes: 30,
		},
	}
}

func reminderTemplate() repository.EmailTemplate {
	return repository.EmailTemplate{
		ID:                uuid.New(),
		Name:              "Terminerinnerung",
		TriggerType:       "appointment_created",
		ScheduleType:      schedule.TypeBeforeAppointment,
		ScheduleTimeValue: 2,
		ScheduleTimeUnit:  schedule.UnitDays,
		SenderEmail:       "praxis@example.com",
		Subject:           "Erinnerung: {{examination.name}}",
		Body:              "Hallo {{patient.first_name}}, Ihr Termin ist am {{appointment.start_time}}.",
		Active:            true,
	}
}

func newTestService(store *fakeStore, sender email.Sender) *Service {
	log := logger.New("test")
	svc := New(store, sender, templating.NewCompiler(log), nil, log)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestScheduleForAppointmentRendersAndSchedules(t *testing.T) {
	store := &fakeStore{bundle: testBundle(), templates: []repository.EmailTemplate{reminderTemplate()}}
	svc := newTestService(store, &fakeSender{})

	result, err := svc.ScheduleForAppointment(context.Background(), store.bundle.ID, "appointment_created")
	if err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}
	if result.Scheduled() != 1 || result.Failed() != 0 {
		t.Fatalf("expected 1 scheduled, 0 failed, got %d/%d", result.Scheduled(), result.Failed())
	}
	if len(store.scheduled) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(store.scheduled))
	}

	msg := store.scheduled[0]
	if msg.Subject != "Erinnerung: MRT Knie" {
		t.Errorf("subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Body, "Hallo Anna") {
		t.Errorf("body missing greeting: %q", msg.Body)
	}
	if !strings.Contains(msg.Body, "10.05.2024 10:00") {
		t.Errorf("body missing formatted start time: %q", msg.Body)
	}
	want := time.Date(2024, 5, 8, 10, 0, 0, 0, time.UTC)
	if !msg.ScheduledFor.Equal(want) {
		t.Errorf("scheduled_for = %v, want %v", msg.ScheduledFor, want)
	}
	if msg.Status != repository.StatusPending {
		t.Errorf("status = %q, want pending", msg.Status)
	}
	if msg.RecipientEmail != "anna@example.com" || msg.SenderEmail != "praxis@example.com" {
		t.Errorf("addressing wrong: to=%q from=%q", msg.RecipientEmail, msg.SenderEmail)
	}
}

func TestScheduleForAppointmentSkipsOnCondition(t *testing.T) {
	tmpl := reminderTemplate()
	tmpl.ConditionGroups = []templating.Group{{
		Operator:   templating.GroupAnd,
		Conditions: []templating.Condition{{Field: "examination.requires_fasting", Operator: "=", Value: "true"}},
	}}
	store := &fakeStore{bundle: testBundle(), templates: []repository.EmailTemplate{tmpl}}
	svc := newTestService(store, &fakeSender{})

	result, err := svc.ScheduleForAppointment(context.Background(), store.bundle.ID, "appointment_created")
	if err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}
	if result.Scheduled() != 0 {
		t.Fatalf("expected no scheduled messages, got %d", result.Scheduled())
	}
	if !result.Outcomes[0].Skipped {
		t.Error("expected outcome marked skipped")
	}
	if len(store.scheduled) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(store.scheduled))
	}
}

func TestScheduleForAppointmentIsolatesTemplateFailures(t *testing.T) {
	broken := reminderTemplate()
	healthy := reminderTemplate()
	healthy.ID = uuid.New()
	store := &fakeStore{
		bundle:    testBundle(),
		templates: []repository.EmailTemplate{broken, healthy},
		insertErr: map[uuid.UUID]error{broken.ID: errors.New("disk full")},
	}
	svc := newTestService(store, &fakeSender{})

	result, err := svc.ScheduleForAppointment(context.Background(), store.bundle.ID, "appointment_created")
	if err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}
	if result.Scheduled() != 1 || result.Failed() != 1 {
		t.Fatalf("expected 1 scheduled + 1 failed, got %d/%d", result.Scheduled(), result.Failed())
	}
	if len(store.scheduled) != 1 {
		t.Fatalf("healthy template should still persist, got %d messages", len(store.scheduled))
	}
}

func TestScheduleForAppointmentAbortsWhenAppointmentMissing(t *testing.T) {
	store := &fakeStore{bundleErr: errors.New("appointment not found")}
	svc := newTestService(store, &fakeSender{})

	if _, err := svc.ScheduleForAppointment(context.Background(), uuid.New(), "appointment_created"); err == nil {
		t.Fatal("expected error for missing appointment")
	}
}

func TestProcessDueDeliversAndSettles(t *testing.T) {
	store := &fakeStore{bundle: testBundle(), templates: []repository.EmailTemplate{reminderTemplate()}}
	sender := &fakeSender{}
	svc := newTestService(store, sender)

	if _, err := svc.ScheduleForAppointment(context.Background(), store.bundle.ID, "appointment_created"); err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}

	due := store.scheduled[0].ScheduledFor.Add(time.Minute)
	result, err := svc.ProcessDue(context.Background(), due, 50)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if result.Processed != 1 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sender.sent))
	}
	if store.scheduled[0].Status != repository.StatusProcessed {
		t.Errorf("status = %q, want processed", store.scheduled[0].Status)
	}
	if store.scheduled[0].ProcessedAt == nil {
		t.Error("processed_at not set")
	}
	if len(store.logs) != 1 || store.logs[0].Status != repository.LogStatusSent {
		t.Errorf("logs = %+v", store.logs)
	}
}

func TestProcessDueSkipsFutureMessages(t *testing.T) {
	store := &fakeStore{bundle: testBundle(), templates: []repository.EmailTemplate{reminderTemplate()}}
	sender := &fakeSender{}
	svc := newTestService(store, sender)

	if _, err := svc.ScheduleForAppointment(context.Background(), store.bundle.ID, "appointment_created"); err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}

	early := store.scheduled[0].ScheduledFor.Add(-time.Hour)
	result, err := svc.ProcessDue(context.Background(), early, 50)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if result.Processed != 0 || result.Failed != 0 {
		t.Fatalf("result = %+v", result)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be sent, got %d", len(sender.sent))
	}
}

func TestProcessDueRecordsFailures(t *testing.T) {
	store := &fakeStore{bundle: testBundle(), templates: []repository.EmailTemplate{reminderTemplate()}}
	sender := &fakeSender{failFor: "anna@example.com"}
	svc := newTestService(store, sender)

	if _, err := svc.ScheduleForAppointment(context.Background(), store.bundle.ID, "appointment_created"); err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}

	due := store.scheduled[0].ScheduledFor.Add(time.Minute)
	result, err := svc.ProcessDue(context.Background(), due, 50)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if result.Processed != 0 || result.Failed != 1 {
		t.Fatalf("result = %+v", result)
	}

	msg := store.scheduled[0]
	if msg.Status != repository.StatusError {
		t.Errorf("status = %q, want error", msg.Status)
	}
	if msg.ErrorMessage == nil || !strings.Contains(*msg.ErrorMessage, "smtp refused") {
		t.Errorf("error message = %v", msg.ErrorMessage)
	}
	if len(store.logs) != 1 || store.logs[0].Status != repository.LogStatusFailed {
		t.Errorf("logs = %+v", store.logs)
	}
	if len(store.comments) != 1 {
		t.Errorf("expected a failure comment, got %d", len(store.comments))
	}
}

func TestProcessDueAbortsOnClaimFailure(t *testing.T) {
	store := &fakeStore{bundle: testBundle(), templates: []repository.EmailTemplate{reminderTemplate()}}
	sender := &fakeSender{}
	svc := newTestService(store, sender)

	if _, err := svc.ScheduleForAppointment(context.Background(), store.bundle.ID, "appointment_created"); err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}

	store.claimErr = errors.New("connection refused")
	due := store.scheduled[0].ScheduledFor.Add(time.Minute)
	if _, err := svc.ProcessDue(context.Background(), due, 50); err == nil {
		t.Fatal("expected error when claiming fails")
	}
	if len(sender.sent) != 0 {
		t.Fatalf("nothing should be sent, got %d", len(sender.sent))
	}
	if store.scheduled[0].Status != repository.StatusPending {
		t.Errorf("status = %q, want pending", store.scheduled[0].Status)
	}
}

func TestReleaseReturnsClaimedMessageToQueue(t *testing.T) {
	store := &fakeStore{bundle: testBundle(), templates: []repository.EmailTemplate{reminderTemplate()}}
	sender := &fakeSender{}
	svc := newTestService(store, sender)

	if _, err := svc.ScheduleForAppointment(context.Background(), store.bundle.ID, "appointment_created"); err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}

	due := store.scheduled[0].ScheduledFor.Add(time.Minute)
	claimed, err := svc.ClaimDue(context.Background(), due, 50)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(claimed) != 1 {
		t.Fatalf("expected 1 claimed message, got %d", len(claimed))
	}

	if err := svc.Release(context.Background(), claimed[0].ID, errors.New("enqueue failed")); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if store.scheduled[0].Status != repository.StatusPending {
		t.Fatalf("status = %q, want pending after release", store.scheduled[0].Status)
	}
	if store.scheduled[0].ErrorMessage == nil || *store.scheduled[0].ErrorMessage != "enqueue failed" {
		t.Errorf("error message = %v", store.scheduled[0].ErrorMessage)
	}

	result, err := svc.ProcessDue(context.Background(), due, 50)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if result.Processed != 1 {
		t.Fatalf("released message should be claimable again, result = %+v", result)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sender.sent))
	}
}

func TestProcessDueTerminalStatesStaySettled(t *testing.T) {
	store := &fakeStore{bundle: testBundle(), templates: []repository.EmailTemplate{reminderTemplate()}}
	sender := &fakeSender{}
	svc := newTestService(store, sender)

	if _, err := svc.ScheduleForAppointment(context.Background(), store.bundle.ID, "appointment_created"); err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}

	due := store.scheduled[0].ScheduledFor.Add(time.Minute)
	if _, err := svc.ProcessDue(context.Background(), due, 50); err != nil {
		t.Fatalf("first ProcessDue: %v", err)
	}

	result, err := svc.ProcessDue(context.Background(), due, 50)
	if err != nil {
		t.Fatalf("second ProcessDue: %v", err)
	}
	if result.Processed != 0 || result.Failed != 0 {
		t.Fatalf("second pass should claim nothing, got %+v", result)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("message sent twice: %d sends", len(sender.sent))
	}
}
