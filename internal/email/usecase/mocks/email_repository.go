// Package mocks provides mock implementations of the email use case dependencies.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// MockEmailRepository is a mock implementation of EmailRepository for testing.
type MockEmailRepository struct {
	mock.Mock
}

// Create mocks the Create method of EmailRepository.
func (m *MockEmailRepository) Create(ctx context.Context, record *domain.EmailRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// Get mocks the Get method of EmailRepository.
func (m *MockEmailRepository) Get(ctx context.Context, id uuid.UUID) (*domain.EmailRecord, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailRecord), args.Error(1)
}

// List mocks the List method of EmailRepository.
func (m *MockEmailRepository) List(
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

// ListEligible mocks the ListEligible method of EmailRepository.
func (m *MockEmailRepository) ListEligible(
	ctx context.Context,
	limit int,
	now time.Time,
) ([]*domain.EmailRecord, error) {
	args := m.Called(ctx, limit, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailRecord), args.Error(1)
}

// Claim mocks the Claim method of EmailRepository.
func (m *MockEmailRepository) Claim(ctx context.Context, record *domain.EmailRecord, now time.Time) (bool, error) {
	args := m.Called(ctx, record, now)
	return args.Bool(0), args.Error(1)
}

// Complete mocks the Complete method of EmailRepository.
func (m *MockEmailRepository) Complete(ctx context.Context, record *domain.EmailRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

// RecoverStale mocks the RecoverStale method of EmailRepository.
func (m *MockEmailRepository) RecoverStale(ctx context.Context, before, now time.Time) (int64, error) {
	args := m.Called(ctx, before, now)
	return args.Get(0).(int64), args.Error(1)
}
