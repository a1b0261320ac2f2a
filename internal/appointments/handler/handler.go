package handler

import (
	"net/http"
	"time"

	"clinic_notify_backend/internal/appointments/repository"
	"clinic_notify_backend/internal/appointments/service"
	"clinic_notify_backend/internal/appointments/transport"
	"clinic_notify_backend/platform/httpkit"
	"clinic_notify_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// Handler handles HTTP requests for appointments
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new appointments handler
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers the appointment routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/status", h.UpdateStatus)
}

// List handles GET /api/v1/appointments
func (h *Handler) List(c *gin.Context) {
	var req transport.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	from := time.Now().Truncate(24 * time.Hour)
	if req.From != nil {
		from = *req.From
	}

	appointments, err := h.svc.List(c.Request.Context(), from, req.Limit)
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.AppointmentResponse, 0, len(appointments))
	for i := range appointments {
		out = append(out, toResponse(&appointments[i]))
	}
	httpkit.OK(c, out)
}

// GetByID handles GET /api/v1/appointments/:id
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid appointment ID", nil)
		return
	}

	appointment, err := h.svc.GetByID(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toResponse(appointment))
}

// UpdateStatus handles PATCH /api/v1/appointments/:id/status
func (h *Handler) UpdateStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid appointment ID", nil)
		return
	}

	var req transport.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	appointment, err := h.svc.UpdateStatus(c.Request.Context(), id, req.Status)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toResponse(appointment))
}

func toResponse(a *repository.Appointment) transport.AppointmentResponse {
	return transport.AppointmentResponse{
		ID:              a.ID,
		PatientID:       a.PatientID,
		ExaminationID:   a.ExaminationID,
		LocationID:      a.LocationID,
		DeviceID:        a.DeviceID,
		StartTime:       a.StartTime,
		Status:          a.Status,
		PatientName:     a.PatientName,
		ExaminationName: a.ExaminationName,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}
