// Package mocks provides mock implementations of the authorisation use case for testing.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	"github.com/allisson/consents/internal/authorisation/usecase"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
)

// MockAuthorisationUseCase is a mock implementation of usecase.AuthorisationUseCase.
type MockAuthorisationUseCase struct {
	mock.Mock
}

var _ usecase.AuthorisationUseCase = (*MockAuthorisationUseCase)(nil)

func result(args mock.Arguments) (*usecase.Result, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.Result), args.Error(1)
}

// Create mocks the Create method.
func (m *MockAuthorisationUseCase) Create(
	ctx context.Context,
	consentID uuid.UUID,
	input usecase.CreateInput,
) (*usecase.Result, error) {
	return result(m.Called(ctx, consentID, input))
}

// CreateCancellation mocks the CreateCancellation method.
func (m *MockAuthorisationUseCase) CreateCancellation(
	ctx context.Context,
	paymentID uuid.UUID,
	input usecase.CreateInput,
) (*usecase.Result, error) {
	return result(m.Called(ctx, paymentID, input))
}

// Update mocks the Update method.
func (m *MockAuthorisationUseCase) Update(
	ctx context.Context,
	consentID, authorisationID uuid.UUID,
	req authDomain.UpdateRequest,
) (*usecase.Result, error) {
	return result(m.Called(ctx, consentID, authorisationID, req))
}

// Confirm mocks the Confirm method.
func (m *MockAuthorisationUseCase) Confirm(
	ctx context.Context,
	consentID, authorisationID uuid.UUID,
	code string,
) (*usecase.Result, error) {
	return result(m.Called(ctx, consentID, authorisationID, code))
}

// UpdateScaStatusFromAspsp mocks the UpdateScaStatusFromAspsp method.
func (m *MockAuthorisationUseCase) UpdateScaStatusFromAspsp(
	ctx context.Context,
	authorisationID uuid.UUID,
	status consentDomain.ScaStatus,
	confirmationCode string,
) (*usecase.Result, error) {
	return result(m.Called(ctx, authorisationID, status, confirmationCode))
}

// GetScaStatus mocks the GetScaStatus method.
func (m *MockAuthorisationUseCase) GetScaStatus(
	ctx context.Context,
	consentID, authorisationID uuid.UUID,
) (*usecase.Result, error) {
	return result(m.Called(ctx, consentID, authorisationID))
}
