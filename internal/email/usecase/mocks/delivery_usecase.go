package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/maildispatch/internal/email/domain"
)

// MockDeliveryUseCase is a mock implementation of DeliveryUseCase for testing.
type MockDeliveryUseCase struct {
	mock.Mock
}

// RunBatch mocks the RunBatch method of DeliveryUseCase.
func (m *MockDeliveryUseCase) RunBatch(ctx context.Context, batchSize int) (*domain.BatchSummary, error) {
	args := m.Called(ctx, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BatchSummary), args.Error(1)
}

// RecoverStale mocks the RecoverStale method of DeliveryUseCase.
func (m *MockDeliveryUseCase) RecoverStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	args := m.Called(ctx, olderThan)
	return args.Get(0).(int64), args.Error(1)
}
