package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/maildispatch/internal/email/domain"
	"github.com/allisson/maildispatch/internal/metrics"
)

// deliveryUseCaseWithMetrics decorates DeliveryUseCase with metrics instrumentation.
type deliveryUseCaseWithMetrics struct {
	next    DeliveryUseCase
	metrics metrics.BusinessMetrics
}

// NewDeliveryUseCaseWithMetrics wraps a DeliveryUseCase with metrics recording.
func NewDeliveryUseCaseWithMetrics(useCase DeliveryUseCase, m metrics.BusinessMetrics) DeliveryUseCase {
	return &deliveryUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// RunBatch records metrics for batch runs.
func (d *deliveryUseCaseWithMetrics) RunBatch(ctx context.Context, batchSize int) (*domain.BatchSummary, error) {
	start := time.Now()
	summary, err := d.next.RunBatch(ctx, batchSize)

	status := "success"
	if err != nil {
		status = "error"
	}

	d.metrics.RecordOperation(ctx, "email", "batch_run", status)
	d.metrics.RecordDuration(ctx, "email", "batch_run", time.Since(start), status)

	return summary, err
}

// RecoverStale records metrics for stale claim recovery.
func (d *deliveryUseCaseWithMetrics) RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	start := time.Now()
	count, err := d.next.RecoverStale(ctx, olderThan)

	status := "success"
	if err != nil {
		status = "error"
	}

	d.metrics.RecordOperation(ctx, "email", "recover_stale", status)
	d.metrics.RecordDuration(ctx, "email", "recover_stale", time.Since(start), status)

	return count, err
}

// emailUseCaseWithMetrics decorates EmailUseCase with metrics instrumentation.
type emailUseCaseWithMetrics struct {
	next    EmailUseCase
	metrics metrics.BusinessMetrics
}

// NewEmailUseCaseWithMetrics wraps an EmailUseCase with metrics recording.
func NewEmailUseCaseWithMetrics(useCase EmailUseCase, m metrics.BusinessMetrics) EmailUseCase {
	return &emailUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (e *emailUseCaseWithMetrics) observe(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	e.metrics.RecordOperation(ctx, "email", operation, status)
	e.metrics.RecordDuration(ctx, "email", operation, time.Since(start), status)
}

// Enqueue records metrics for enqueue operations.
func (e *emailUseCaseWithMetrics) Enqueue(
	ctx context.Context,
	input *domain.EnqueueInput,
) (*domain.EmailRecord, error) {
	start := time.Now()
	record, err := e.next.Enqueue(ctx, input)
	e.observe(ctx, "email_enqueue", start, err)
	return record, err
}

// Get records metrics for record lookups.
func (e *emailUseCaseWithMetrics) Get(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error) {
	start := time.Now()
	record, err := e.next.Get(ctx, id)
	e.observe(ctx, "email_get", start, err)
	return record, err
}

// List records metrics for listings.
func (e *emailUseCaseWithMetrics) List(
	ctx context.Context,
	filter domain.ListFilter,
	offset, limit int,
) ([]*domain.EmailRecord, error) {
	start := time.Now()
	records, err := e.next.List(ctx, filter, offset, limit)
	e.observe(ctx, "email_list", start, err)
	return records, err
}

// ListAttempts records metrics for audit trail lookups.
func (e *emailUseCaseWithMetrics) ListAttempts(
	ctx context.Context,
	id uuid.UUID,
) ([]*domain.DeliveryAttempt, error) {
	start := time.Now()
	attempts, err := e.next.ListAttempts(ctx, id)
	e.observe(ctx, "email_list_attempts", start, err)
	return attempts, err
}
