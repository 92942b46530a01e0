package dto

import (
	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	"github.com/allisson/consents/internal/authorisation/usecase"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
)

// Link is a hyperlink returned to the TPP.
type Link struct {
	Href string `json:"href"`
}

// AuthorisationResponse represents an authorisation in API responses.
type AuthorisationResponse struct {
	AuthorisationID string                    `json:"authorisationId"`
	ScaStatus       consentDomain.ScaStatus   `json:"scaStatus"`
	ScaApproach     consentDomain.ScaApproach `json:"scaApproach,omitempty"`
	PsuMessage      string                    `json:"psuMessage,omitempty"`

	ChosenScaMethod   *consentDomain.ScaMethod     `json:"chosenScaMethod,omitempty"`
	ScaMethods        []consentDomain.ScaMethod    `json:"scaMethods,omitempty"`
	ChallengeData     *consentDomain.ChallengeData `json:"challengeData,omitempty"`
	TransactionStatus string                       `json:"transactionStatus,omitempty"`
	Links             map[string]Link              `json:"_links,omitempty"`
}

// ScaStatusResponse is returned by the status endpoints.
type ScaStatusResponse struct {
	ScaStatus consentDomain.ScaStatus `json:"scaStatus"`
}

// MapResultToResponse converts a use case result to an API response.
func MapResultToResponse(result *usecase.Result) AuthorisationResponse {
	auth := result.Authorisation
	response := AuthorisationResponse{
		AuthorisationID: auth.ID.String(),
		ScaStatus:       auth.ScaStatus,
		ScaApproach:     auth.ScaApproach,
		PsuMessage:      result.PsuMessage,
		ChosenScaMethod: auth.ChosenScaMethod,
		ChallengeData:   auth.ChallengeData,
		Links:           mapLinks(result.Links),
	}

	// methods are only offered while the PSU still has to choose one
	if auth.ScaStatus == consentDomain.ScaPsuAuthenticated {
		response.ScaMethods = auth.AvailableScaMethods
	}
	if result.Consent != nil && result.Consent.Payment != nil {
		response.TransactionStatus = string(result.Consent.Payment.TransactionStatus)
	}
	return response
}

func mapLinks(links authDomain.Links) map[string]Link {
	if len(links) == 0 {
		return nil
	}
	out := make(map[string]Link, len(links))
	for name, href := range links {
		out[name] = Link{Href: href}
	}
	return out
}
