// Package service implements the SCA state machine and the ports it drives.
//
// The Processor selects a stage handler from a table keyed by SCA approach and
// SCA status, and each stage talks to the bank through an AspspConnector.
// Stages never persist anything: they return the next authorisation snapshot
// and the usecase layer commits it.
package service

import (
	"context"

	"github.com/google/uuid"

	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
)

// Outcome is the ASPSP verdict on credentials or SCA data.
type Outcome string

const (
	// OutcomeSuccess means the credentials were accepted.
	OutcomeSuccess Outcome = "SUCCESS"
	// OutcomeAttemptFailure means the credentials were wrong and the PSU may retry.
	OutcomeAttemptFailure Outcome = "ATTEMPT_FAILURE"
	// OutcomeFailure means the authorisation cannot continue.
	OutcomeFailure Outcome = "FAILURE"
)

// PsuAuthorisationResult is returned by AspspConnector.AuthorisePsu.
type PsuAuthorisationResult struct {
	Outcome Outcome
	// ScaExempted reports a one-factor authorisation that needs no second factor.
	ScaExempted bool
}

// AuthorisationCodeResult is returned by AspspConnector.RequestAuthorisationCode.
type AuthorisationCodeResult struct {
	ChallengeData *consentDomain.ChallengeData
	// OtpHash is stored on the authorisation for later verification.
	OtpHash     string
	ScaExempted bool
	PsuMessage  string
}

// DecoupledResult is returned by AspspConnector.StartDecoupled.
type DecoupledResult struct {
	PsuMessage string
}

// AspspConnector is the port to the bank side of an authorisation.
type AspspConnector interface {
	AuthorisePsu(
		ctx context.Context,
		consent consentDomain.Consent,
		psu consentDomain.PsuData,
		password string,
	) (PsuAuthorisationResult, error)
	RequestAvailableScaMethods(
		ctx context.Context,
		consent consentDomain.Consent,
		psu consentDomain.PsuData,
	) ([]consentDomain.ScaMethod, error)
	RequestAuthorisationCode(
		ctx context.Context,
		consent consentDomain.Consent,
		psu consentDomain.PsuData,
		method consentDomain.ScaMethod,
	) (AuthorisationCodeResult, error)
	// StartDecoupled asks the ASPSP to authorise out of band. method is nil when
	// the PSU did not choose one.
	StartDecoupled(
		ctx context.Context,
		consent consentDomain.Consent,
		psu consentDomain.PsuData,
		method *consentDomain.ScaMethod,
	) (DecoupledResult, error)
	VerifyScaAuthorisation(
		ctx context.Context,
		consent consentDomain.Consent,
		authorisation consentDomain.Authorisation,
		scaAuthenticationData string,
	) (Outcome, error)
	// CheckConfirmationCode is used when confirmation codes are checked by the ASPSP.
	CheckConfirmationCode(
		ctx context.Context,
		consent consentDomain.Consent,
		authorisation consentDomain.Authorisation,
		code string,
	) (bool, error)
}

// ScaSecretHasher hashes short-lived SCA secrets such as OTPs and confirmation codes.
type ScaSecretHasher interface {
	Hash(secret string) (string, error)
	// Verify compares in constant time and returns false on any error.
	Verify(secret, hash string) bool
}

// Fingerprinter identifies update requests for replay detection. A fingerprint
// is bound to the status the request left the authorisation in, so it stops
// matching once anything else moves the authorisation on.
type Fingerprinter interface {
	Fingerprint(authorisationID uuid.UUID, result consentDomain.ScaStatus, req authDomain.UpdateRequest) string
}
