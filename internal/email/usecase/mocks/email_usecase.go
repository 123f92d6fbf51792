package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// MockEmailUseCase is a mock implementation of EmailUseCase for testing.
type MockEmailUseCase struct {
	mock.Mock
}

// Enqueue mocks the Enqueue method of EmailUseCase.
func (m *MockEmailUseCase) Enqueue(ctx context.Context, input *domain.EnqueueInput) (*domain.EmailRecord, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailRecord), args.Error(1)
}

// Get mocks the Get method of EmailUseCase.
func (m *MockEmailUseCase) Get(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailRecord), args.Error(1)
}

// List mocks the List method of EmailUseCase.
func (m *MockEmailUseCase) List(
	ctx context.Context,
	filter domain.ListFilter,
	offset, limit int,
) ([]*domain.EmailRecord, error) {
	args := m.Called(ctx, filter, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailRecord), args.Error(1)
}

// ListAttempts mocks the ListAttempts method of EmailUseCase.
func (m *MockEmailUseCase) ListAttempts(ctx context.Context, id uuid.UUID) ([]*domain.DeliveryAttempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DeliveryAttempt), args.Error(1)
}
