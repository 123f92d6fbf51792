// Package http provides HTTP handlers for email dispatch: the batch trigger that
// drains the queue, plus producer and inspection endpoints.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	emailUseCase "github.com/allisson/maildispatch/internal/email/usecase"
	"github.com/allisson/maildispatch/internal/httputil"
)

// BatchHandler exposes the delivery orchestrator as an invocation endpoint.
type BatchHandler struct {
	deliveryUseCase emailUseCase.DeliveryUseCase
	logger          *slog.Logger
}

// NewBatchHandler creates a new batch handler.
func NewBatchHandler(deliveryUseCase emailUseCase.DeliveryUseCase, logger *slog.Logger) *BatchHandler {
	return &BatchHandler{
		deliveryUseCase: deliveryUseCase,
		logger:          logger,
	}
}

// RunBatchHandler runs one delivery batch.
// POST /run-email-batch?batch_size=N (also POST /v1/email-batches).
// Returns 200 with the batch summary even when every record failed; 500 only when
// the notification store could not be read or written.
func (h *BatchHandler) RunBatchHandler(c *gin.Context) {
	batchSize, err := httputil.ParseOptionalPositiveInt(c, "batch_size")
	if err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	summary, err := h.deliveryUseCase.RunBatch(c.Request.Context(), batchSize)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, summary)
}
