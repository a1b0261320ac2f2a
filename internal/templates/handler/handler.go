package handler

import (
	"net/http"
	"time"

	"clinic_notify_backend/internal/templates/repository"
	"clinic_notify_backend/internal/templates/transport"
	"clinic_notify_backend/internal/templating"
	"clinic_notify_backend/platform/httpkit"
	"clinic_notify_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for email template administration
type Handler struct {
	repo *repository.Repository
	val  *validator.Validator
}

// New creates a new templates handler
func New(repo *repository.Repository, val *validator.Validator) *Handler {
	return &Handler{repo: repo, val: val}
}

// RegisterRoutes registers the template admin routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.POST("", h.Create)
	rg.PUT("/:id", h.Update)
	rg.PATCH("/:id/active", h.SetActive)
}

// List handles GET /api/v1/templates
func (h *Handler) List(c *gin.Context) {
	templates, err := h.repo.List(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.TemplateResponse, 0, len(templates))
	for i := range templates {
		out = append(out, toResponse(&templates[i]))
	}
	httpkit.OK(c, out)
}

// GetByID handles GET /api/v1/templates/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	tmpl, err := h.repo.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toResponse(tmpl))
}

// Create handles POST /api/v1/templates
func (h *Handler) Create(c *gin.Context) {
	req, ok := bindSaveRequest(c, h.val)
	if !ok {
		return
	}

	now := time.Now()
	tmpl := fromRequest(req)
	tmpl.ID = uuid.New()
	tmpl.CreatedAt = now
	tmpl.UpdatedAt = now

	if err := h.repo.Create(c.Request.Context(), tmpl); httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, toResponse(tmpl))
}

// Update handles PUT /api/v1/templates/:id
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	req, ok := bindSaveRequest(c, h.val)
	if !ok {
		return
	}

	tmpl := fromRequest(req)
	tmpl.ID = id

	if err := h.repo.Update(c.Request.Context(), tmpl); httpkit.HandleError(c, err) {
		return
	}

	updated, err := h.repo.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toResponse(updated))
}

// SetActive handles PATCH /api/v1/templates/:id/active
func (h *Handler) SetActive(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req transport.SetActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	if err := h.repo.SetActive(c.Request.Context(), id, *req.Active); httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, gin.H{"id": id, "active": *req.Active})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid template ID", nil)
		return uuid.UUID{}, false
	}
	return id, true
}

func bindSaveRequest(c *gin.Context, val *validator.Validator) (*transport.SaveTemplateRequest, bool) {
	var req transport.SaveTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return nil, false
	}
	if err := val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return nil, false
	}
	return &req, true
}

func fromRequest(req *transport.SaveTemplateRequest) *repository.EmailTemplate {
	return &repository.EmailTemplate{
		Name:              req.Name,
		TriggerType:       req.TriggerType,
		ConditionGroups:   req.ConditionGroups,
		ScheduleType:      req.ScheduleType,
		ScheduleTimeValue: req.ScheduleTimeValue,
		ScheduleTimeUnit:  req.ScheduleTimeUnit,
		SendOnlyWorkdays:  req.SendOnlyWorkdays,
		SendTimeStart:     req.SendTimeStart,
		SendTimeEnd:       req.SendTimeEnd,
		SenderEmail:       req.SenderEmail,
		Subject:           req.Subject,
		Body:              req.Body,
		Active:            req.Active,
	}
}

func toResponse(t *repository.EmailTemplate) transport.TemplateResponse {
	groups := t.ConditionGroups
	if groups == nil {
		groups = []templating.Group{}
	}
	return transport.TemplateResponse{
		ID:                t.ID,
		Name:              t.Name,
		TriggerType:       t.TriggerType,
		ConditionGroups:   groups,
		ScheduleType:      t.ScheduleType,
		ScheduleTimeValue: t.ScheduleTimeValue,
		ScheduleTimeUnit:  t.ScheduleTimeUnit,
		SendOnlyWorkdays:  t.SendOnlyWorkdays,
		SendTimeStart:     t.SendTimeStart,
		SendTimeEnd:       t.SendTimeEnd,
		SenderEmail:       t.SenderEmail,
		Subject:           t.Subject,
		Body:              t.Body,
		Active:            t.Active,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
}
