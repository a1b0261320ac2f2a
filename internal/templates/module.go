// Package templates provides the email template administration module.
package templates

import (
	apphttp "clinic_notify_backend/internal/http"
	"clinic_notify_backend/internal/templates/handler"
	"clinic_notify_backend/internal/templates/repository"
	"clinic_notify_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module represents the templates domain module
type Module struct {
	handler *handler.Handler
}

// NewModule creates a new templates module with all dependencies wired
func NewModule(pool *pgxpool.Pool, val *validator.Validator) *Module {
	repo := repository.New(pool)
	h := handler.New(repo, val)

	return &Module{handler: h}
}

// Name returns the module name for logging
func (m *Module) Name() string {
	return "templates"
}

// RegisterRoutes registers the module's routes under /api/v1/templates
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.V1.Group("/templates"))
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
