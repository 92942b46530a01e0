package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
	"github.com/allisson/consents/internal/metrics"
)

// authorisationUseCaseWithMetrics decorates AuthorisationUseCase with metrics instrumentation.
type authorisationUseCaseWithMetrics struct {
	next    AuthorisationUseCase
	metrics metrics.BusinessMetrics
}

// NewAuthorisationUseCaseWithMetrics wraps an AuthorisationUseCase with metrics recording.
func NewAuthorisationUseCaseWithMetrics(useCase AuthorisationUseCase, m metrics.BusinessMetrics) AuthorisationUseCase {
	return &authorisationUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Create records metrics for authorisation creation.
func (a *authorisationUseCaseWithMetrics) Create(
	ctx context.Context,
	consentID uuid.UUID,
	input CreateInput,
) (*Result, error) {
	start := time.Now()
	result, err := a.next.Create(ctx, consentID, input)
	a.record(ctx, "authorisation_create", start, err)
	return result, err
}

// CreateCancellation records metrics for cancellation authorisation creation.
func (a *authorisationUseCaseWithMetrics) CreateCancellation(
	ctx context.Context,
	paymentID uuid.UUID,
	input CreateInput,
) (*Result, error) {
	start := time.Now()
	result, err := a.next.CreateCancellation(ctx, paymentID, input)
	a.record(ctx, "authorisation_create_cancellation", start, err)
	return result, err
}

// Update records metrics for PSU updates.
func (a *authorisationUseCaseWithMetrics) Update(
	ctx context.Context,
	consentID, authorisationID uuid.UUID,
	req authDomain.UpdateRequest,
) (*Result, error) {
	start := time.Now()
	result, err := a.next.Update(ctx, consentID, authorisationID, req)
	a.record(ctx, "authorisation_update", start, err)
	return result, err
}

// Confirm records metrics for authorisation confirmation.
func (a *authorisationUseCaseWithMetrics) Confirm(
	ctx context.Context,
	consentID, authorisationID uuid.UUID,
	code string,
) (*Result, error) {
	start := time.Now()
	result, err := a.next.Confirm(ctx, consentID, authorisationID, code)
	a.record(ctx, "authorisation_confirm", start, err)
	return result, err
}

// UpdateScaStatusFromAspsp records metrics for ASPSP status reports.
func (a *authorisationUseCaseWithMetrics) UpdateScaStatusFromAspsp(
	ctx context.Context,
	authorisationID uuid.UUID,
	status consentDomain.ScaStatus,
	confirmationCode string,
) (*Result, error) {
	start := time.Now()
	result, err := a.next.UpdateScaStatusFromAspsp(ctx, authorisationID, status, confirmationCode)
	a.record(ctx, "authorisation_aspsp_status", start, err)
	return result, err
}

// GetScaStatus records metrics for status reads.
func (a *authorisationUseCaseWithMetrics) GetScaStatus(
	ctx context.Context,
	consentID, authorisationID uuid.UUID,
) (*Result, error) {
	start := time.Now()
	result, err := a.next.GetScaStatus(ctx, consentID, authorisationID)
	a.record(ctx, "authorisation_get_sca_status", start, err)
	return result, err
}

func (a *authorisationUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	a.metrics.RecordOperation(ctx, "authorisations", operation, status)
	a.metrics.RecordDuration(ctx, "authorisations", operation, time.Since(start), status)
}
