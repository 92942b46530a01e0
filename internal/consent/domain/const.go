// Package domain defines the consent and authorisation records, their statuses
// and the lifecycle rules that apply to them independently of storage.
package domain

// Type is the service a consent was requested for.
type Type string

const (
	// TypeAIS is an account information consent.
	TypeAIS Type = "AIS"
	// TypePIS is a payment initiation. Its consent carries PaymentDetails.
	TypePIS Type = "PIS"
	// TypePIIS is a confirmation-of-funds consent.
	TypePIIS Type = "PIIS"
	// TypeSigningBasket groups several consents and payments under one authorisation.
	TypeSigningBasket Type = "SIGNING_BASKET"
)

// Status is the consent-level status, distinct from the SCA status of its authorisations.
type Status string

const (
	StatusReceived            Status = "RECEIVED"
	StatusValid               Status = "VALID"
	StatusPartiallyAuthorised Status = "PARTIALLY_AUTHORISED"
	StatusRejected            Status = "REJECTED"
	StatusExpired             Status = "EXPIRED"
	StatusRevokedByPsu        Status = "REVOKED_BY_PSU"
	StatusTerminatedByTpp     Status = "TERMINATED_BY_TPP"
	StatusTerminatedByAspsp   Status = "TERMINATED_BY_ASPSP"
)

// IsFinalised reports whether the status accepts no further transition.
func (s Status) IsFinalised() bool {
	switch s {
	case StatusRejected, StatusExpired, StatusRevokedByPsu, StatusTerminatedByTpp, StatusTerminatedByAspsp:
		return true
	}
	return false
}

// IsValid reports whether s is a known consent status.
func (s Status) IsValid() bool {
	switch s {
	case StatusReceived, StatusValid, StatusPartiallyAuthorised:
		return true
	}
	return s.IsFinalised()
}

// TransactionStatus is the ISO 20022 status of a payment.
type TransactionStatus string

const (
	TransactionReceived           TransactionStatus = "RCVD"
	TransactionPartiallyAccepted  TransactionStatus = "PATC"
	TransactionAcceptedTechnical  TransactionStatus = "ACTC"
	TransactionAcceptedSettlement TransactionStatus = "ACSP"
	TransactionRejected           TransactionStatus = "RJCT"
	TransactionCancelled          TransactionStatus = "CANC"
)

// AuthorisationType separates the authorisation lists of a consent.
type AuthorisationType string

const (
	// AuthorisationConsent authorises an AIS, PIIS or signing-basket consent.
	AuthorisationConsent AuthorisationType = "CONSENT"
	// AuthorisationPisCreation authorises a payment initiation.
	AuthorisationPisCreation AuthorisationType = "PIS_CREATION"
	// AuthorisationPisCancellation authorises the cancellation of a payment.
	AuthorisationPisCancellation AuthorisationType = "PIS_CANCELLATION"
)

// ScaStatus is the state variable of the SCA state machine.
type ScaStatus string

const (
	ScaReceived         ScaStatus = "RECEIVED"
	ScaPsuIdentified    ScaStatus = "PSUIDENTIFIED"
	ScaPsuAuthenticated ScaStatus = "PSUAUTHENTICATED"
	ScaMethodSelected   ScaStatus = "SCAMETHODSELECTED"
	ScaStarted          ScaStatus = "STARTED"
	ScaFinalised        ScaStatus = "FINALISED"
	ScaFailed           ScaStatus = "FAILED"
	ScaExempted         ScaStatus = "EXEMPTED"
	ScaUnconfirmed      ScaStatus = "UNCONFIRMED"
)

// ScaStatuses lists every SCA status.
var ScaStatuses = []ScaStatus{
	ScaReceived,
	ScaPsuIdentified,
	ScaPsuAuthenticated,
	ScaMethodSelected,
	ScaStarted,
	ScaFinalised,
	ScaFailed,
	ScaExempted,
	ScaUnconfirmed,
}

// IsFinalised reports whether no further transition is accepted.
func (s ScaStatus) IsFinalised() bool {
	return s == ScaFinalised || s == ScaFailed || s == ScaExempted
}

// IsCompleted reports whether the status counts as a successful authorisation.
func (s ScaStatus) IsCompleted() bool {
	return s == ScaFinalised || s == ScaExempted
}

// ScaApproach is how the PSU is taken through SCA. It is fixed per authorisation,
// except that choosing a decoupled method switches EMBEDDED to DECOUPLED.
type ScaApproach string

const (
	ScaApproachRedirect  ScaApproach = "REDIRECT"
	ScaApproachDecoupled ScaApproach = "DECOUPLED"
	ScaApproachEmbedded  ScaApproach = "EMBEDDED"
)

// ScaApproaches lists every SCA approach.
var ScaApproaches = []ScaApproach{ScaApproachRedirect, ScaApproachDecoupled, ScaApproachEmbedded}

// IsValid reports whether a is a known approach.
func (a ScaApproach) IsValid() bool {
	switch a {
	case ScaApproachRedirect, ScaApproachDecoupled, ScaApproachEmbedded:
		return true
	}
	return false
}

// AllAccounts is the access marker granting every account of the PSU.
const AllAccounts = "allAccounts"

// DateLayout is the layout of usage keys and calendar dates.
const DateLayout = "2006-01-02"
