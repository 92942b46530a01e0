// Package dto provides data transfer objects for the authorisation endpoints.
package dto

import (
	validation "github.com/jellydator/validation"

	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	"github.com/allisson/consents/internal/authorisation/usecase"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
	customValidation "github.com/allisson/consents/internal/validation"
)

// PsuData identifies the PSU in authorisation requests.
type PsuData struct {
	PsuID          string `json:"psuId"`
	PsuIDType      string `json:"psuIdType"`
	PsuCorporateID string `json:"psuCorporateId"`
}

func (p *PsuData) toDomain() consentDomain.PsuData {
	if p == nil {
		return consentDomain.PsuData{}
	}
	return consentDomain.PsuData{ID: p.PsuID, IDType: p.PsuIDType, CorporateID: p.PsuCorporateID}
}

// StartAuthorisationRequest starts an authorisation. Both fields are optional.
type StartAuthorisationRequest struct {
	PsuData     *PsuData `json:"psuData"`
	ScaApproach string   `json:"scaApproach"`
}

// Validate checks if the start authorisation request is valid.
func (r *StartAuthorisationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ScaApproach, customValidation.ScaApproach),
	)
}

// ToInput converts the request into the use case input.
func (r *StartAuthorisationRequest) ToInput() usecase.CreateInput {
	return usecase.CreateInput{
		PsuData:     r.PsuData.toDomain(),
		ScaApproach: consentDomain.ScaApproach(r.ScaApproach),
	}
}

// UpdateAuthorisationRequest carries one step of the embedded or decoupled flow.
type UpdateAuthorisationRequest struct {
	PsuData                *PsuData `json:"psuData"`
	Password               string   `json:"password"`
	AuthenticationMethodID string   `json:"authenticationMethodId"`
	ScaAuthenticationData  string   `json:"scaAuthenticationData"`
}

// Validate checks if the update authorisation request is valid.
// At least one field must be present; the state machine decides the rest.
func (r *UpdateAuthorisationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.PsuData, validation.Required.When(
			r.Password == "" && r.AuthenticationMethodID == "" && r.ScaAuthenticationData == "",
		).Error("request must carry psu data, a password, a method or authentication data")),
		validation.Field(&r.AuthenticationMethodID, customValidation.NoWhitespace),
		validation.Field(&r.ScaAuthenticationData, customValidation.NoWhitespace),
	)
}

// ToDomain converts the request into the processor update request.
func (r *UpdateAuthorisationRequest) ToDomain() authDomain.UpdateRequest {
	return authDomain.UpdateRequest{
		PsuData:                r.PsuData.toDomain(),
		Password:               r.Password,
		AuthenticationMethodID: r.AuthenticationMethodID,
		ScaAuthenticationData:  r.ScaAuthenticationData,
	}
}

// ConfirmationRequest carries the authorisation confirmation code.
type ConfirmationRequest struct {
	ConfirmationCode string `json:"confirmationCode"`
}

// Validate checks if the confirmation request is valid.
func (r *ConfirmationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ConfirmationCode, validation.Required, customValidation.NotBlank),
	)
}

// AspspStatusRequest reports the outcome of a redirect or decoupled authorisation.
type AspspStatusRequest struct {
	ScaStatus        string `json:"scaStatus"`
	ConfirmationCode string `json:"confirmationCode"`
}

// Validate checks if the ASPSP status request is valid.
func (r *AspspStatusRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ScaStatus, validation.Required, customValidation.ScaStatus),
	)
}
