package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// MockDeliveryAttemptRepository is a mock implementation of DeliveryAttemptRepository for testing.
type MockDeliveryAttemptRepository struct {
	mock.Mock
}

// Create mocks the Create method of DeliveryAttemptRepository.
func (m *MockDeliveryAttemptRepository) Create(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

// ListByEmail mocks the ListByEmail method of DeliveryAttemptRepository.
func (m *MockDeliveryAttemptRepository) ListByEmail(
	ctx context.Context,
	emailID uuid.UUID,
) ([]*domain.DeliveryAttempt, error) {
	args := m.Called(ctx, emailID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DeliveryAttempt), args.Error(1)
}
