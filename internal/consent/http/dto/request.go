// Package dto provides data transfer objects for the consent endpoints.
package dto

import (
	"time"

	validation "github.com/jellydator/validation"

	"github.com/allisson/consents/internal/consent/domain"
	"github.com/allisson/consents/internal/consent/usecase"
	customValidation "github.com/allisson/consents/internal/validation"
)

// PsuData identifies one PSU of a consent.
type PsuData struct {
	PsuID          string `json:"psuId"`
	PsuIDType      string `json:"psuIdType,omitempty"`
	PsuCorporateID string `json:"psuCorporateId,omitempty"`
}

// Payment is the payment part of a PIS consent.
type Payment struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	CreditorIBAN string `json:"creditorIban"`
}

// Validate checks if the payment is valid.
func (p Payment) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Amount, validation.Required, customValidation.NotBlank),
		validation.Field(&p.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&p.CreditorIBAN, validation.Required, customValidation.NoWhitespace),
	)
}

// CreateConsentRequest contains the parameters for creating a consent.
type CreateConsentRequest struct {
	Type               string               `json:"type"`
	TppID              string               `json:"tppId"`
	InternalRequestID  string               `json:"internalRequestId"`
	RecurringIndicator bool                 `json:"recurringIndicator"`
	FrequencyPerDay    int                  `json:"frequencyPerDay"`
	ValidUntil         string               `json:"validUntil"`
	PsuData            []PsuData            `json:"psuData"`
	Access             domain.AccountAccess `json:"access"`
	Data               *domain.Data         `json:"data"`
	Payment            *Payment             `json:"payment"`
}

// Validate checks if the create consent request is valid.
func (r *CreateConsentRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Type, validation.Required, validation.In(
			string(domain.TypeAIS), string(domain.TypePIS), string(domain.TypePIIS), string(domain.TypeSigningBasket),
		)),
		validation.Field(&r.TppID, validation.Required, customValidation.NotBlank, customValidation.NoWhitespace),
		validation.Field(&r.FrequencyPerDay, validation.Min(0)),
		validation.Field(&r.ValidUntil, customValidation.Date),
		validation.Field(&r.PsuData, validation.Required),
		validation.Field(&r.Payment, validation.Required.When(r.Type == string(domain.TypePIS))),
	)
}

// ToInput converts the request into the use case input. Validate must pass first.
func (r *CreateConsentRequest) ToInput() *usecase.CreateInput {
	input := &usecase.CreateInput{
		Type:               domain.Type(r.Type),
		TppID:              r.TppID,
		InternalRequestID:  r.InternalRequestID,
		RecurringIndicator: r.RecurringIndicator,
		FrequencyPerDay:    r.FrequencyPerDay,
		TppAccess:          r.Access,
		Data:               r.Data,
	}
	if r.ValidUntil != "" {
		input.ValidUntil, _ = time.Parse(domain.DateLayout, r.ValidUntil)
	}
	for _, psu := range r.PsuData {
		input.PsuIDDataList = append(input.PsuIDDataList, domain.PsuData{
			ID:          psu.PsuID,
			IDType:      psu.PsuIDType,
			CorporateID: psu.PsuCorporateID,
		})
	}
	if r.Payment != nil {
		input.Payment = &domain.PaymentDetails{
			Amount:       r.Payment.Amount,
			Currency:     r.Payment.Currency,
			CreditorIBAN: r.Payment.CreditorIBAN,
		}
	}
	return input
}

// UpdateAspspAccessRequest carries the account access confirmed by the ASPSP.
type UpdateAspspAccessRequest struct {
	Access domain.AccountAccess `json:"access"`
}

// Validate checks if the ASPSP access request is valid.
func (r *UpdateAspspAccessRequest) Validate() error {
	access := r.Access
	if access.IsEmpty() && access.AvailableAccounts == "" && access.AllPsd2 == "" {
		return validation.Errors{"access": validation.NewError("validation_access_empty", "must grant at least one account")}
	}
	return validation.ValidateStruct(&access,
		validation.Field(&access.AvailableAccounts, validation.In(domain.AllAccounts)),
		validation.Field(&access.AllPsd2, validation.In(domain.AllAccounts)),
	)
}

// UpdateStatusRequest carries a consent status change reported by the ASPSP.
type UpdateStatusRequest struct {
	ConsentStatus string `json:"consentStatus"`
}

// Validate checks if the status change request is valid.
func (r *UpdateStatusRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ConsentStatus, validation.Required, validation.By(func(value interface{}) error {
			if !domain.Status(value.(string)).IsValid() {
				return validation.NewError("validation_consent_status", "must be a known consent status")
			}
			return nil
		})),
	)
}
