package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// ScaMethod is an authentication method offered to the PSU.
type ScaMethod struct {
	ID        string `json:"authenticationMethodId"`
	Type      string `json:"authenticationType"`
	Name      string `json:"name,omitempty"`
	Decoupled bool   `json:"decoupled,omitempty"`
}

// ChallengeData describes the challenge shown to the PSU after a method was chosen.
type ChallengeData struct {
	OtpFormat             string `json:"otpFormat,omitempty"`
	OtpMaxLength          int    `json:"otpMaxLength,omitempty"`
	AdditionalInformation string `json:"additionalInformation,omitempty"`
}

// Authorisation is one SCA attempt by one PSU on a consent or payment.
type Authorisation struct {
	ID        uuid.UUID
	ConsentID uuid.UUID
	Type      AuthorisationType

	ScaStatus   ScaStatus
	ScaApproach ScaApproach
	PsuData     PsuData

	ChosenScaMethod     *ScaMethod
	AvailableScaMethods []ScaMethod
	ChallengeData       *ChallengeData

	// OtpHash is the hash of the one time password sent to the PSU.
	OtpHash string
	// ConfirmationHash is the hash of the confirmation code awaited in UNCONFIRMED.
	ConfirmationHash string
	FailedAttempts   int
	// LastRequestFingerprint identifies the last update request that changed the record.
	LastRequestFingerprint string

	RedirectURLExpiresAt time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Clone returns a deep copy of a.
func (a Authorisation) Clone() Authorisation {
	out := a
	out.AvailableScaMethods = slices.Clone(a.AvailableScaMethods)
	if a.ChosenScaMethod != nil {
		m := *a.ChosenScaMethod
		out.ChosenScaMethod = &m
	}
	if a.ChallengeData != nil {
		c := *a.ChallengeData
		out.ChallengeData = &c
	}
	return out
}

// FindScaMethod returns the available method with the given id.
func (a Authorisation) FindScaMethod(id string) (ScaMethod, bool) {
	for _, m := range a.AvailableScaMethods {
		if m.ID == id {
			return m, true
		}
	}
	return ScaMethod{}, false
}

// RedirectExpired reports whether the redirect link of the authorisation expired at now.
func (a Authorisation) RedirectExpired(now time.Time) bool {
	return !a.RedirectURLExpiresAt.IsZero() && now.After(a.RedirectURLExpiresAt)
}
