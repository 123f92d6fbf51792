package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/maildispatch/internal/email/domain"
	"github.com/allisson/maildispatch/internal/email/http/dto"
	emailUseCase "github.com/allisson/maildispatch/internal/email/usecase"
	"github.com/allisson/maildispatch/internal/httputil"
	customValidation "github.com/allisson/maildispatch/internal/validation"
)

// EmailHandler handles producer and inspection requests for email records.
type EmailHandler struct {
	emailUseCase emailUseCase.EmailUseCase
	logger       *slog.Logger
}

// NewEmailHandler creates a new email handler.
func NewEmailHandler(emailUseCase emailUseCase.EmailUseCase, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{
		emailUseCase: emailUseCase,
		logger:       logger,
	}
}

// EnqueueHandler queues a new email.
// POST /v1/emails - Returns 201 Created with the queued record.
func (h *EmailHandler) EnqueueHandler(c *gin.Context) {
	var req dto.EnqueueEmailRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	record, err := h.emailUseCase.Enqueue(c.Request.Context(), req.ToDomain())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapEmailToResponse(record))
}

// GetHandler returns one email record.
// GET /v1/emails/:id
func (h *EmailHandler) GetHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	record, err := h.emailUseCase.Get(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEmailToResponse(record))
}

// ListHandler lists email records, newest first.
// GET /v1/emails?status=failed&exhausted=true&offset=0&limit=50
func (h *EmailHandler) ListHandler(c *gin.Context) {
	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	exhausted, err := httputil.ParseOptionalBool(c, "exhausted")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	filter := domain.ListFilter{ExhaustedOnly: exhausted}
	if raw := c.Query("status"); raw != "" {
		status := domain.Status(raw)
		filter.Status = &status
	}

	records, err := h.emailUseCase.List(c.Request.Context(), filter, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapEmailsToListResponse(records))
}

// ListAttemptsHandler returns the provider audit trail of an email.
// GET /v1/emails/:id/attempts
func (h *EmailHandler) ListAttemptsHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	attempts, err := h.emailUseCase.ListAttempts(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapAttemptsToListResponse(attempts))
}

func (h *EmailHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid email id: %w", err), h.logger)
		return uuid.Nil, false
	}
	return id, true
}
