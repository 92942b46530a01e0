// Package mocks provides mock implementations of the expiration use case for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/allisson/consents/internal/expiration/usecase"
)

// MockExpirationUseCase is a mock implementation of usecase.UseCase.
type MockExpirationUseCase struct {
	mock.Mock
}

var _ usecase.UseCase = (*MockExpirationUseCase)(nil)

func sweepResults(args mock.Arguments) ([]usecase.SweepResult, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]usecase.SweepResult), args.Error(1)
}

// Start mocks the Start method.
func (m *MockExpirationUseCase) Start(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// RunOnce mocks the RunOnce method.
func (m *MockExpirationUseCase) RunOnce(ctx context.Context) ([]usecase.SweepResult, error) {
	return sweepResults(m.Called(ctx))
}

// ExpireUsedNonRecurring mocks the ExpireUsedNonRecurring method.
func (m *MockExpirationUseCase) ExpireUsedNonRecurring(ctx context.Context) (usecase.SweepResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(usecase.SweepResult), args.Error(1)
}

// ExpireUnconfirmed mocks the ExpireUnconfirmed method.
func (m *MockExpirationUseCase) ExpireUnconfirmed(ctx context.Context) (usecase.SweepResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(usecase.SweepResult), args.Error(1)
}

// Preview mocks the Preview method.
func (m *MockExpirationUseCase) Preview(ctx context.Context) ([]usecase.SweepResult, error) {
	return sweepResults(m.Called(ctx))
}
