package dto

import (
	"time"

	"github.com/allisson/consents/internal/consent/domain"
)

// Link is a hyperlink returned to the TPP.
type Link struct {
	Href string `json:"href"`
}

// ConsentResponse represents a consent in API responses.
type ConsentResponse struct {
	ConsentID             string               `json:"consentId"`
	ConsentStatus         domain.Status        `json:"consentStatus"`
	Type                  domain.Type          `json:"type"`
	TppID                 string               `json:"tppId"`
	RecurringIndicator    bool                 `json:"recurringIndicator"`
	FrequencyPerDay       int                  `json:"frequencyPerDay"`
	UsagesToday           int                  `json:"usagesToday"`
	ValidUntil            string               `json:"validUntil,omitempty"`
	LastActionDate        string               `json:"lastActionDate,omitempty"`
	Access                domain.AccountAccess `json:"access"`
	PsuData               []PsuData            `json:"psuData"`
	MultilevelScaRequired bool                 `json:"multilevelScaRequired"`
	TransactionStatus     string               `json:"transactionStatus,omitempty"`
	Links                 map[string]Link      `json:"_links,omitempty"`
}

// ConsentStatusResponse is returned by the status endpoint.
type ConsentStatusResponse struct {
	ConsentStatus domain.Status `json:"consentStatus"`
}

// ListConsentsResponse represents a paginated list of consents in API responses.
type ListConsentsResponse struct {
	Data []ConsentResponse `json:"data"`
}

// MapConsentToResponse converts a domain consent to an API response. The
// consent is identified by externalID and linked under baseURL.
func MapConsentToResponse(consent *domain.Consent, externalID, baseURL string, now time.Time) ConsentResponse {
	response := ConsentResponse{
		ConsentID:             externalID,
		ConsentStatus:         consent.Status,
		Type:                  consent.Type,
		TppID:                 consent.TppID,
		RecurringIndicator:    consent.RecurringIndicator,
		FrequencyPerDay:       consent.FrequencyPerDay,
		UsagesToday:           consent.UsagesOn(now),
		ValidUntil:            formatDate(consent.ValidUntil),
		LastActionDate:        formatDate(consent.LastActionDate),
		Access:                consent.EffectiveAccess(),
		PsuData:               make([]PsuData, 0, len(consent.PsuIDDataList)),
		MultilevelScaRequired: consent.MultilevelScaRequired,
	}
	for _, psu := range consent.PsuIDDataList {
		response.PsuData = append(response.PsuData, PsuData{
			PsuID:          psu.ID,
			PsuIDType:      psu.IDType,
			PsuCorporateID: psu.CorporateID,
		})
	}
	if consent.Payment != nil {
		response.TransactionStatus = string(consent.Payment.TransactionStatus)
	}

	self := baseURL + "/v1/consents/" + externalID
	response.Links = map[string]Link{
		"self":   {Href: self},
		"status": {Href: self + "/status"},
	}
	if !consent.IsFinalised() {
		response.Links["startAuthorisation"] = Link{Href: self + "/authorisations"}
	}
	return response
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(domain.DateLayout)
}
