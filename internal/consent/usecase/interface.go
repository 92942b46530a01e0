// Package usecase implements the consent lifecycle operations: creation, reads
// that apply the expiry rules, usage recording and status changes.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/consents/internal/consent/domain"
)

// ConsentRepository defines the interface for Consent persistence operations.
// Save must only succeed when the stored version equals expectedVersion.
type ConsentRepository interface {
	Create(ctx context.Context, consent *domain.Consent) error
	Get(ctx context.Context, consentID uuid.UUID) (*domain.Consent, error)
	GetByAuthorisationID(ctx context.Context, authorisationID uuid.UUID) (*domain.Consent, error)
	GetByInternalRequestID(ctx context.Context, internalRequestID string) (*domain.Consent, error)
	Save(ctx context.Context, consent *domain.Consent, expectedVersion int64) error
	FindExpirable(ctx context.Context, criteria domain.ExpirableCriteria) ([]*domain.Consent, error)
	FindActiveByTpp(ctx context.Context, tppID string) ([]*domain.Consent, error)
}

// DataProtector encrypts consent payloads and identifiers. Failures are
// reported as ok=false and never carry a cause.
type DataProtector interface {
	Protect(consentID uuid.UUID, data *domain.Data) (domain.EncryptedData, bool)
	Unprotect(consentID uuid.UUID, enc domain.EncryptedData) (*domain.Data, bool)
	MigrateLegacy(consent domain.Consent) (domain.Consent, bool)
	ProtectID(id uuid.UUID) (string, bool)
	UnprotectID(token string) (uuid.UUID, bool)
}

// Config holds the consent lifecycle policy.
type Config struct {
	// MaxLifetimeDays caps consent validity. 0 disables the cap.
	MaxLifetimeDays int
	// NotConfirmedExpiration is how long a consent may stay RECEIVED.
	NotConfirmedExpiration time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// CreateInput is a consent request from a TPP.
type CreateInput struct {
	Type               domain.Type
	TppID              string
	InternalRequestID  string
	RecurringIndicator bool
	FrequencyPerDay    int
	ValidUntil         time.Time
	PsuIDDataList      []domain.PsuData
	TppAccess          domain.AccountAccess
	Data               *domain.Data
	Payment            *domain.PaymentDetails
}

// ConsentUseCase defines the interface for consent lifecycle business logic.
//
// Every read applies the expiry rules first and persists a resulting status
// change, so callers never observe a consent that should already be EXPIRED.
type ConsentUseCase interface {
	// Create stores a new RECEIVED consent and returns it with its external id.
	Create(ctx context.Context, input *CreateInput) (*domain.Consent, string, error)
	Get(ctx context.Context, consentID uuid.UUID) (*domain.Consent, error)
	// ResolveExternalID decrypts an external id back into the consent id.
	ResolveExternalID(externalID string) (uuid.UUID, error)
	// ExternalID encrypts a consent id into the id handed out to TPPs.
	ExternalID(consentID uuid.UUID) (string, error)
	// GetByInternalRequestID is only valid for AIS consents.
	GetByInternalRequestID(ctx context.Context, internalRequestID string) (*domain.Consent, error)
	// RecordAccess counts one access by the TPP, bounded by the frequency per day.
	RecordAccess(ctx context.Context, consentID uuid.UUID) (*domain.Consent, error)
	// GetData returns the decrypted consent payload.
	GetData(ctx context.Context, consentID uuid.UUID) (*domain.Data, error)
	SetData(ctx context.Context, consentID uuid.UUID, data *domain.Data) error
	SetAspspAccess(ctx context.Context, consentID uuid.UUID, access domain.AccountAccess) (*domain.Consent, error)
	// ListActiveByTpp pages through the RECEIVED and VALID AIS consents of a TPP.
	// Consents that the expiry rules would expire are left out.
	ListActiveByTpp(ctx context.Context, tppID string, offset, limit int) ([]*domain.Consent, error)
	// UpdateStatus refuses any change on a finalised consent.
	UpdateStatus(ctx context.Context, consentID uuid.UUID, status domain.Status) (*domain.Consent, error)
}
