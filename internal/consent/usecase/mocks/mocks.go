// Package mocks provides mock implementations of the consent use case for testing.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/allisson/consents/internal/consent/domain"
	"github.com/allisson/consents/internal/consent/usecase"
)

// MockConsentUseCase is a mock implementation of usecase.ConsentUseCase.
type MockConsentUseCase struct {
	mock.Mock
}

var _ usecase.ConsentUseCase = (*MockConsentUseCase)(nil)

func consentResult(args mock.Arguments) (*domain.Consent, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Consent), args.Error(1)
}

// Create mocks the Create method.
func (m *MockConsentUseCase) Create(
	ctx context.Context,
	input *usecase.CreateInput,
) (*domain.Consent, string, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*domain.Consent), args.String(1), args.Error(2)
}

// Get mocks the Get method.
func (m *MockConsentUseCase) Get(ctx context.Context, consentID uuid.UUID) (*domain.Consent, error) {
	return consentResult(m.Called(ctx, consentID))
}

// ResolveExternalID mocks the ResolveExternalID method.
func (m *MockConsentUseCase) ResolveExternalID(externalID string) (uuid.UUID, error) {
	args := m.Called(externalID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

// GetByInternalRequestID mocks the GetByInternalRequestID method.
func (m *MockConsentUseCase) GetByInternalRequestID(
	ctx context.Context,
	internalRequestID string,
) (*domain.Consent, error) {
	return consentResult(m.Called(ctx, internalRequestID))
}

// RecordAccess mocks the RecordAccess method.
func (m *MockConsentUseCase) RecordAccess(ctx context.Context, consentID uuid.UUID) (*domain.Consent, error) {
	return consentResult(m.Called(ctx, consentID))
}

// GetData mocks the GetData method.
func (m *MockConsentUseCase) GetData(ctx context.Context, consentID uuid.UUID) (*domain.Data, error) {
	args := m.Called(ctx, consentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Data), args.Error(1)
}

// SetData mocks the SetData method.
func (m *MockConsentUseCase) SetData(ctx context.Context, consentID uuid.UUID, data *domain.Data) error {
	return m.Called(ctx, consentID, data).Error(0)
}

// SetAspspAccess mocks the SetAspspAccess method.
func (m *MockConsentUseCase) SetAspspAccess(
	ctx context.Context,
	consentID uuid.UUID,
	access domain.AccountAccess,
) (*domain.Consent, error) {
	return consentResult(m.Called(ctx, consentID, access))
}

// ExternalID mocks the ExternalID method.
func (m *MockConsentUseCase) ExternalID(consentID uuid.UUID) (string, error) {
	args := m.Called(consentID)
	return args.String(0), args.Error(1)
}

// ListActiveByTpp mocks the ListActiveByTpp method.
func (m *MockConsentUseCase) ListActiveByTpp(
	ctx context.Context,
	tppID string,
	offset, limit int,
) ([]*domain.Consent, error) {
	args := m.Called(ctx, tppID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Consent), args.Error(1)
}

// UpdateStatus mocks the UpdateStatus method.
func (m *MockConsentUseCase) UpdateStatus(
	ctx context.Context,
	consentID uuid.UUID,
	status domain.Status,
) (*domain.Consent, error) {
	return consentResult(m.Called(ctx, consentID, status))
}
