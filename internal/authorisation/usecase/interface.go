// Package usecase runs the SCA authorisation flows of consents and payments:
// it loads the consent, lets the Processor decide, applies the response to a
// new consent version and commits it with an optimistic save.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
)

// ConsentRepository is the consent persistence used by the authorisation flows.
type ConsentRepository interface {
	Get(ctx context.Context, consentID uuid.UUID) (*consentDomain.Consent, error)
	GetByAuthorisationID(ctx context.Context, authorisationID uuid.UUID) (*consentDomain.Consent, error)
	Save(ctx context.Context, consent *consentDomain.Consent, expectedVersion int64) error
	FindActiveByTpp(ctx context.Context, tppID string) ([]*consentDomain.Consent, error)
}

// Processor is the SCA state machine.
type Processor interface {
	Process(ctx context.Context, req *authDomain.ProcessorRequest) *authDomain.ProcessorResponse
	Confirm(ctx context.Context, req *authDomain.ConfirmRequest) *authDomain.ProcessorResponse
	ApplyAspspStatus(ctx context.Context, req *authDomain.AspspStatusRequest) *authDomain.ProcessorResponse
	Links(externalID string, auth consentDomain.Authorisation) authDomain.Links
}

// IDProtector encrypts consent ids into the external ids used in links.
type IDProtector interface {
	ProtectID(id uuid.UUID) (string, bool)
}

// Config holds the authorisation policy.
type Config struct {
	// DefaultApproach is used when the TPP does not ask for an approach.
	DefaultApproach consentDomain.ScaApproach
	// RedirectURLExpiration is how long a REDIRECT authorisation link stays usable.
	RedirectURLExpiration time.Duration
	// NotConfirmedExpiration is how long a consent may stay RECEIVED.
	NotConfirmedExpiration time.Duration
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// CreateInput starts an authorisation for one PSU.
type CreateInput struct {
	PsuData consentDomain.PsuData
	// ScaApproach is the approach asked for by the TPP. Empty selects the default.
	ScaApproach consentDomain.ScaApproach
}

// Result is the state of an authorisation after an operation.
type Result struct {
	Consent       *consentDomain.Consent
	Authorisation consentDomain.Authorisation
	ExternalID    string
	Links         authDomain.Links
	PsuMessage    string
}

// AuthorisationUseCase defines the SCA authorisation operations.
//
// Operations rejected by the state machine return a *authDomain.ProcessorError
// together with a Result describing the authorisation as stored, since a
// rejected update may still have been persisted (a counted failed attempt, an
// expired redirect link). Lost optimistic saves return a CONCURRENT_MODIFICATION
// ProcessorError wrapping consentDomain.ErrConcurrentModification and must be
// retried by the caller.
type AuthorisationUseCase interface {
	// Create starts an authorisation on a consent or payment initiation.
	Create(ctx context.Context, consentID uuid.UUID, input CreateInput) (*Result, error)
	// CreateCancellation starts the cancellation authorisation of a payment.
	CreateCancellation(ctx context.Context, paymentID uuid.UUID, input CreateInput) (*Result, error)
	// Update applies a PSU update to an authorisation.
	Update(
		ctx context.Context,
		consentID, authorisationID uuid.UUID,
		req authDomain.UpdateRequest,
	) (*Result, error)
	// Confirm checks the confirmation code of an UNCONFIRMED authorisation.
	Confirm(ctx context.Context, consentID, authorisationID uuid.UUID, code string) (*Result, error)
	// UpdateScaStatusFromAspsp applies the outcome of a redirect or decoupled
	// authorisation reported by the ASPSP.
	UpdateScaStatusFromAspsp(
		ctx context.Context,
		authorisationID uuid.UUID,
		status consentDomain.ScaStatus,
		confirmationCode string,
	) (*Result, error)
	// GetScaStatus returns the authorisation after applying the consent expiry rules.
	GetScaStatus(ctx context.Context, consentID, authorisationID uuid.UUID) (*Result, error)
}
