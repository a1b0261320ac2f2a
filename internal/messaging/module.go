// Package messaging provides the scheduled email module: trigger
// processing, template rendering and dispatch of due messages.
package messaging

import (
	"context"
	"fmt"

	"clinic_notify_backend/internal/email"
	"clinic_notify_backend/internal/events"
	apphttp "clinic_notify_backend/internal/http"
	"clinic_notify_backend/internal/messaging/handler"
	"clinic_notify_backend/internal/messaging/repository"
	"clinic_notify_backend/internal/messaging/service"
	"clinic_notify_backend/internal/templating"
	"clinic_notify_backend/platform/config"
	"clinic_notify_backend/platform/logger"
	"clinic_notify_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the messaging domain module
type Module struct {
	handler *handler.Handler
	Service *service.Service
	log     *logger.Logger
}

// NewModule creates a new messaging module with all dependencies wired
func NewModule(pool *pgxpool.Pool, val *validator.Validator, sender email.Sender, bus events.Bus, cfg config.DispatchConfig, log *logger.Logger) *Module {
	repo := repository.New(pool)
	compiler := templating.NewCompiler(log)
	svc := service.New(repo, sender, compiler, bus, log)
	h := handler.New(svc, val, cfg.GetDispatchBatchSize())

	return &Module{
		handler: h,
		Service: svc,
		log:     log,
	}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "messaging"
}

// RegisterRoutes mounts /schedule and /process at the engine root. External
// schedulers call these paths directly, so they live outside /api/v1.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Root)
}

// RegisterHandlers subscribes the module to appointment lifecycle events so
// that status changes schedule emails without an explicit HTTP call.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.AppointmentLifecycleChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, e events.Event) error {
		evt, ok := e.(events.AppointmentLifecycleChanged)
		if !ok {
			return fmt.Errorf("unexpected event type %T", e)
		}
		result, err := m.Service.ScheduleForAppointment(ctx, evt.AppointmentID, evt.TriggerType)
		if err != nil {
			return err
		}
		m.log.Info("lifecycle trigger processed",
			"appointment_id", evt.AppointmentID.String(),
			"trigger_type", evt.TriggerType,
			"scheduled", result.Scheduled(),
			"failed", result.Failed(),
		)
		return nil
	}))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
