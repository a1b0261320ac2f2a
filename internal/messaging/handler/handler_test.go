package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clinic_notify_backend/internal/email"
	"clinic_notify_backend/internal/messaging/repository"
	"clinic_notify_backend/internal/messaging/service"
	"clinic_notify_backend/internal/messaging/transport"
	"clinic_notify_backend/internal/templating"
	"clinic_notify_backend/platform/apperr"
	"clinic_notify_backend/platform/logger"
	"clinic_notify_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type stubStore struct {
	bundleErr error
	claimErr  error
}

func (s *stubStore) GetAppointmentBundle(context.Context, uuid.UUID) (*repository.AppointmentBundle, error) {
	if s.bundleErr != nil {
		return nil, s.bundleErr
	}
	return &repository.AppointmentBundle{
		ID:        uuid.New(),
		StartTime: time.Now().Add(48 * time.Hour),
		Patient:   repository.Patient{ID: uuid.New(), Email: "patient@example.com"},
	}, nil
}

func (s *stubStore) ListActiveTemplatesByTrigger(context.Context, string) ([]repository.EmailTemplate, error) {
	return nil, nil
}

func (s *stubStore) InsertScheduledEmail(context.Context, *repository.ScheduledEmail) error {
	return nil
}

func (s *stubStore) ClaimDue(context.Context, time.Time, int) ([]repository.ScheduledEmail, error) {
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	return nil, nil
}

func (s *stubStore) GetScheduledEmail(context.Context, uuid.UUID) (*repository.ScheduledEmail, error) {
	return nil, apperr.NotFound("scheduled email not found")
}

func (s *stubStore) MarkProcessed(context.Context, uuid.UUID, time.Time) error { return nil }

func (s *stubStore) MarkError(context.Context, uuid.UUID, time.Time, string) error { return nil }

func (s *stubStore) MarkPending(context.Context, uuid.UUID, *string) error { return nil }

func (s *stubStore) AppendLog(context.Context, repository.EmailLogEntry) error { return nil }

func (s *stubStore) AddAppointmentComment(context.Context, uuid.UUID, string) error { return nil }

func newTestRouter(store service.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logger.New("test")
	svc := service.New(store, email.NoopSender{}, templating.NewCompiler(log), nil, log)
	h := New(svc, validator.New(), 50)

	engine := gin.New()
	h.RegisterRoutes(&engine.RouterGroup)
	return engine
}

func TestScheduleMissingFieldsReturns400(t *testing.T) {
	engine := newTestRouter(&stubStore{})

	cases := []struct {
		name string
		body string
	}{
		{"empty body", `{}`},
		{"missing trigger type", `{"appointmentId":"` + uuid.NewString() + `"}`},
		{"missing appointment id", `{"triggerType":"appointment_reminder"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/schedule", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			engine.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp transport.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Success {
				t.Error("success should be false")
			}
			if resp.Error == "" {
				t.Error("error message should be set")
			}
		})
	}
}

func TestScheduleSuccessShape(t *testing.T) {
	engine := newTestRouter(&stubStore{})

	body := `{"appointmentId":"` + uuid.NewString() + `","triggerType":"appointment_reminder"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedule", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp transport.ScheduleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Errorf("response = %+v, want success", resp)
	}
	if strings.Contains(rec.Body.String(), "error") {
		t.Errorf("success body should carry no error field: %s", rec.Body.String())
	}
}

func TestScheduleUnknownAppointmentReturnsError(t *testing.T) {
	engine := newTestRouter(&stubStore{bundleErr: apperr.NotFound("appointment not found")})

	body := `{"appointmentId":"` + uuid.NewString() + `","triggerType":"appointment_reminder"}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/schedule", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp transport.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Error("success should be false")
	}
	if !strings.Contains(resp.Error, "not found") {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestProcessShape(t *testing.T) {
	engine := newTestRouter(&stubStore{})

	for _, method := range []string{http.MethodPost, http.MethodGet} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(method, "/process", nil)
		engine.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("%s /process status = %d, want 200", method, rec.Code)
		}
		var resp transport.ProcessResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if !resp.Success || resp.Processed != 0 {
			t.Errorf("%s /process response = %+v", method, resp)
		}
	}
}

func TestProcessFailureShape(t *testing.T) {
	engine := newTestRouter(&stubStore{claimErr: errors.New("connection refused")})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/process", nil)
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp transport.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Success {
		t.Error("success should be false")
	}
	if resp.Error == "" {
		t.Error("error message should be set")
	}
	if strings.Contains(rec.Body.String(), "processed") {
		t.Errorf("failure body should carry no processed count: %s", rec.Body.String())
	}
}
