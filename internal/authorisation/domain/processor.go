package domain

import (
	"github.com/google/uuid"

	consentDomain "github.com/allisson/consents/internal/consent/domain"
)

// UpdateRequest is the payload of an authorisation update sent by the TPP.
type UpdateRequest struct {
	PsuData consentDomain.PsuData
	// Password authenticates the PSU in the embedded and decoupled approaches.
	Password               string
	AuthenticationMethodID string
	// ScaAuthenticationData is the OTP entered by the PSU.
	ScaAuthenticationData string
}

// IsIdentificationOnly reports whether the request only names the PSU.
func (r UpdateRequest) IsIdentificationOnly() bool {
	return !r.PsuData.IsEmpty() && r.Password == "" && r.AuthenticationMethodID == "" &&
		r.ScaAuthenticationData == ""
}

// ProcessorRequest is the input of Processor.Process.
type ProcessorRequest struct {
	// Consent is the parent consent or payment snapshot.
	Consent consentDomain.Consent
	// Authorisation is the snapshot being updated.
	Authorisation consentDomain.Authorisation
	// ExternalID is the encrypted consent id used in links.
	ExternalID string
	Update     UpdateRequest
}

// ConfirmRequest is the input of Processor.Confirm.
type ConfirmRequest struct {
	Consent          consentDomain.Consent
	Authorisation    consentDomain.Authorisation
	ExternalID       string
	ConfirmationCode string
}

// AspspStatusRequest is the input of Processor.ApplyAspspStatus, reported by
// the ASPSP at the end of a redirect or decoupled authorisation.
type AspspStatusRequest struct {
	Consent          consentDomain.Consent
	Authorisation    consentDomain.Authorisation
	ExternalID       string
	ScaStatus        consentDomain.ScaStatus
	ConfirmationCode string
}

// Links are the hyperlinks returned to the TPP, keyed by link name.
type Links map[string]string

// ProcessorResponse is the outcome of one processor call.
//
// Authorisation always holds the next snapshot. An error response may still
// carry Modified=true, for instance a failed attempt counter or FAILED status,
// and the caller persists it like any other change.
type ProcessorResponse struct {
	Authorisation consentDomain.Authorisation
	Modified      bool
	// ConsentStatus, when set, is a consent status the stage requires.
	ConsentStatus consentDomain.Status
	Links         Links
	PsuMessage    string
	Err           *ProcessorError
}

// HasError reports whether the response carries an error.
func (r *ProcessorResponse) HasError() bool {
	return r.Err != nil
}

// ScaStatus returns the status of the resulting authorisation.
func (r *ProcessorResponse) ScaStatus() consentDomain.ScaStatus {
	return r.Authorisation.ScaStatus
}

// AuthorisationID returns the id of the processed authorisation.
func (r *ProcessorResponse) AuthorisationID() uuid.UUID {
	return r.Authorisation.ID
}
