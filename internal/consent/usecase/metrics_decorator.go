package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/consents/internal/consent/domain"
	"github.com/allisson/consents/internal/metrics"
)

// consentUseCaseWithMetrics decorates ConsentUseCase with metrics instrumentation.
type consentUseCaseWithMetrics struct {
	next    ConsentUseCase
	metrics metrics.BusinessMetrics
}

// NewConsentUseCaseWithMetrics wraps a ConsentUseCase with metrics recording.
func NewConsentUseCaseWithMetrics(useCase ConsentUseCase, m metrics.BusinessMetrics) ConsentUseCase {
	return &consentUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Create records metrics for consent creation.
func (c *consentUseCaseWithMetrics) Create(
	ctx context.Context,
	input *CreateInput,
) (*domain.Consent, string, error) {
	start := time.Now()
	consent, externalID, err := c.next.Create(ctx, input)
	c.record(ctx, "consent_create", start, err)
	return consent, externalID, err
}

// Get records metrics for consent retrieval.
func (c *consentUseCaseWithMetrics) Get(ctx context.Context, consentID uuid.UUID) (*domain.Consent, error) {
	start := time.Now()
	consent, err := c.next.Get(ctx, consentID)
	c.record(ctx, "consent_get", start, err)
	return consent, err
}

// ResolveExternalID is not instrumented.
func (c *consentUseCaseWithMetrics) ResolveExternalID(externalID string) (uuid.UUID, error) {
	return c.next.ResolveExternalID(externalID)
}

// ExternalID is not instrumented.
func (c *consentUseCaseWithMetrics) ExternalID(consentID uuid.UUID) (string, error) {
	return c.next.ExternalID(consentID)
}

// GetByInternalRequestID records metrics for internal request id lookups.
func (c *consentUseCaseWithMetrics) GetByInternalRequestID(
	ctx context.Context,
	internalRequestID string,
) (*domain.Consent, error) {
	start := time.Now()
	consent, err := c.next.GetByInternalRequestID(ctx, internalRequestID)
	c.record(ctx, "consent_get_by_internal_request_id", start, err)
	return consent, err
}

// RecordAccess records metrics for consent usage.
func (c *consentUseCaseWithMetrics) RecordAccess(ctx context.Context, consentID uuid.UUID) (*domain.Consent, error) {
	start := time.Now()
	consent, err := c.next.RecordAccess(ctx, consentID)
	c.record(ctx, "consent_record_access", start, err)
	return consent, err
}

// GetData records metrics for payload decryption.
func (c *consentUseCaseWithMetrics) GetData(ctx context.Context, consentID uuid.UUID) (*domain.Data, error) {
	start := time.Now()
	data, err := c.next.GetData(ctx, consentID)
	c.record(ctx, "consent_get_data", start, err)
	return data, err
}

// SetData records metrics for payload encryption.
func (c *consentUseCaseWithMetrics) SetData(ctx context.Context, consentID uuid.UUID, data *domain.Data) error {
	start := time.Now()
	err := c.next.SetData(ctx, consentID, data)
	c.record(ctx, "consent_set_data", start, err)
	return err
}

// SetAspspAccess records metrics for ASPSP access updates.
func (c *consentUseCaseWithMetrics) SetAspspAccess(
	ctx context.Context,
	consentID uuid.UUID,
	access domain.AccountAccess,
) (*domain.Consent, error) {
	start := time.Now()
	consent, err := c.next.SetAspspAccess(ctx, consentID, access)
	c.record(ctx, "consent_set_aspsp_access", start, err)
	return consent, err
}

// ListActiveByTpp records metrics for listing the consents of a TPP.
func (c *consentUseCaseWithMetrics) ListActiveByTpp(
	ctx context.Context,
	tppID string,
	offset, limit int,
) ([]*domain.Consent, error) {
	start := time.Now()
	consents, err := c.next.ListActiveByTpp(ctx, tppID, offset, limit)
	c.record(ctx, "consent_list_active", start, err)
	return consents, err
}

// UpdateStatus records metrics for status changes.
func (c *consentUseCaseWithMetrics) UpdateStatus(
	ctx context.Context,
	consentID uuid.UUID,
	status domain.Status,
) (*domain.Consent, error) {
	start := time.Now()
	consent, err := c.next.UpdateStatus(ctx, consentID, status)
	c.record(ctx, "consent_update_status", start, err)
	return consent, err
}

func (c *consentUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	c.metrics.RecordOperation(ctx, "consents", operation, status)
	c.metrics.RecordDuration(ctx, "consents", operation, time.Since(start), status)
}
