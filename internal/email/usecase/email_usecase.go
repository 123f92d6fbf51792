package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/maildispatch/internal/email/domain"
	customValidation "github.com/allisson/maildispatch/internal/validation"
)

// emailUseCase implements EmailUseCase.
type emailUseCase struct {
	emailRepo          EmailRepository
	attemptRepo        DeliveryAttemptRepository
	defaultMaxAttempts int
}

// NewEmailUseCase creates a new EmailUseCase. defaultMaxAttempts applies to inputs
// that leave MaxAttempts unset.
func NewEmailUseCase(
	emailRepo EmailRepository,
	attemptRepo DeliveryAttemptRepository,
	defaultMaxAttempts int,
) EmailUseCase {
	if defaultMaxAttempts <= 0 {
		defaultMaxAttempts = domain.DefaultMaxAttempts
	}
	return &emailUseCase{
		emailRepo:          emailRepo,
		attemptRepo:        attemptRepo,
		defaultMaxAttempts: defaultMaxAttempts,
	}
}

// Enqueue validates input and stores a new queued record.
func (e *emailUseCase) Enqueue(ctx context.Context, input *domain.EnqueueInput) (*domain.EmailRecord, error) {
	if err := validateEnqueueInput(input); err != nil {
		return nil, customValidation.WrapValidationError(err)
	}

	category := input.Category
	if category == "" {
		category = domain.CategoryGeneric
	}
	maxAttempts := input.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = e.defaultMaxAttempts
	}

	now := time.Now().UTC()
	record := &domain.EmailRecord{
		ID:          uuid.Must(uuid.NewV7()),
		Recipient:   strings.TrimSpace(input.Recipient),
		Subject:     input.Subject,
		BodyHTML:    input.BodyHTML,
		BodyText:    input.BodyText,
		Category:    category,
		Priority:    input.Priority,
		Status:      domain.StatusQueued,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := e.emailRepo.Create(ctx, record); err != nil {
		return nil, err
	}

	return record, nil
}

// Get returns a record by id.
func (e *emailUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error) {
	return e.emailRepo.Get(ctx, id)
}

// List returns records matching filter, newest first.
func (e *emailUseCase) List(
	ctx context.Context,
	filter domain.ListFilter,
	offset, limit int,
) ([]*domain.EmailRecord, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, domain.ErrInvalidStatus
	}
	return e.emailRepo.List(ctx, filter, offset, limit)
}

// ListAttempts returns the provider audit trail of a record.
func (e *emailUseCase) ListAttempts(ctx context.Context, id uuid.UUID) ([]*domain.DeliveryAttempt, error) {
	if _, err := e.emailRepo.Get(ctx, id); err != nil {
		return nil, err
	}
	return e.attemptRepo.ListByEmail(ctx, id)
}

func validateEnqueueInput(input *domain.EnqueueInput) error {
	return validation.ValidateStruct(input,
		validation.Field(&input.Recipient, validation.Required, validation.Length(3, 320), customValidation.Email),
		validation.Field(&input.Subject,
			validation.Required,
			customValidation.NotBlank,
			customValidation.SingleLine,
			validation.Length(1, 998),
		),
		validation.Field(&input.BodyHTML, validation.Required, customValidation.NotBlank),
		validation.Field(&input.Category, validation.In(
			domain.CategoryBookingConfirmation,
			domain.CategoryAdminAlert,
			domain.CategoryApplicationReceipt,
			domain.CategoryGeneric,
		)),
		validation.Field(&input.MaxAttempts, validation.Min(0), validation.Max(domain.MaxAllowedAttempts)),
	)
}
