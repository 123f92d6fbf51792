// Package usecase defines the interfaces and implementations for email dispatch use cases.
// The delivery use case drains the notification store through the provider chain; the
// email use case is the producer and inspection side of the same store.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// EmailRepository defines the interface for EmailRecord persistence operations.
type EmailRepository interface {
	Create(ctx context.Context, record *domain.EmailRecord) error
	Get(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error)
	List(ctx context.Context, filter domain.ListFilter, offset, limit int) ([]*domain.EmailRecord, error)
	ListEligible(ctx context.Context, limit int, now time.Time) ([]*domain.EmailRecord, error)
	// Claim moves record to processing only if its status and attempt count are
	// unchanged in the store. It returns false when a concurrent run won the claim.
	Claim(ctx context.Context, record *domain.EmailRecord, now time.Time) (bool, error)
	// Complete persists the result of a claimed record. It returns domain.ErrClaimLost
	// when the record is no longer in processing.
	Complete(ctx context.Context, record *domain.EmailRecord) error
	RecoverStale(ctx context.Context, before, now time.Time) (int64, error)
}

// DeliveryAttemptRepository defines the interface for the per-provider audit trail.
type DeliveryAttemptRepository interface {
	Create(ctx context.Context, attempt *domain.DeliveryAttempt) error
	ListByEmail(ctx context.Context, emailID uuid.UUID) ([]*domain.DeliveryAttempt, error)
}

// DeliveryUseCase defines the batch delivery business logic.
type DeliveryUseCase interface {
	// RunBatch delivers up to batchSize eligible records. Per-record delivery
	// failures are reported in the summary; only store failures return an error.
	RunBatch(ctx context.Context, batchSize int) (*domain.BatchSummary, error)
	// RecoverStale returns records stuck in processing for longer than olderThan
	// to failed, counting the interrupted attempt.
	RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error)
}

// EmailUseCase defines the producer and inspection business logic.
type EmailUseCase interface {
	Enqueue(ctx context.Context, input *domain.EnqueueInput) (*domain.EmailRecord, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error)
	List(ctx context.Context, filter domain.ListFilter, offset, limit int) ([]*domain.EmailRecord, error)
	ListAttempts(ctx context.Context, id uuid.UUID) ([]*domain.DeliveryAttempt, error)
}
