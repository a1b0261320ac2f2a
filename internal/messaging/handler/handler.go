package handler

import (
	"errors"
	"net/http"
	"time"

	"clinic_notify_backend/internal/messaging/service"
	"clinic_notify_backend/internal/messaging/transport"
	"clinic_notify_backend/platform/apperr"
	"clinic_notify_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for scheduled email messaging.
type Handler struct {
	svc       *service.Service
	val       *validator.Validator
	batchSize int
}

// New creates a new messaging handler.
func New(svc *service.Service, val *validator.Validator, batchSize int) *Handler {
	return &Handler{svc: svc, val: val, batchSize: batchSize}
}

// RegisterRoutes registers the trigger and dispatch routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/schedule", h.Schedule)
	rg.POST("/process", h.Process)
	rg.GET("/process", h.Process)
}

// Schedule handles POST /schedule. It evaluates every active template bound
// to the trigger type against the appointment and persists the matches.
func (h *Handler) Schedule(c *gin.Context) {
	var req transport.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, transport.ErrorResponse{Success: false, Error: "invalid request body"})
		return
	}
	if err := h.val.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, transport.ErrorResponse{Success: false, Error: "appointmentId and triggerType are required"})
		return
	}

	if _, err := h.svc.ScheduleForAppointment(c.Request.Context(), *req.AppointmentID, req.TriggerType); err != nil {
		c.JSON(statusFor(err), transport.ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, transport.ScheduleResponse{Success: true})
}

// Process handles POST /process and GET /process. It claims every due
// pending message and delivers it synchronously, reporting the count of
// successfully sent messages.
func (h *Handler) Process(c *gin.Context) {
	result, err := h.svc.ProcessDue(c.Request.Context(), time.Now(), h.batchSize)
	if err != nil {
		c.JSON(statusFor(err), transport.ErrorResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, transport.ProcessResponse{Success: true, Processed: result.Processed})
}

func statusFor(err error) int {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
