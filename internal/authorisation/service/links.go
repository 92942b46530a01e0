package service

import (
	"strings"

	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
)

// LinkBuilder builds the hyperlinks returned with an authorisation.
type LinkBuilder struct {
	baseURL          string
	redirectTemplate string
}

// NewLinkBuilder creates a LinkBuilder. redirectTemplate may contain the
// placeholders "{redirect-id}" and "{encrypted-consent-id}".
func NewLinkBuilder(baseURL, redirectTemplate string) *LinkBuilder {
	return &LinkBuilder{
		baseURL:          strings.TrimSuffix(baseURL, "/"),
		redirectTemplate: redirectTemplate,
	}
}

// AuthorisationPath returns the API path of an authorisation.
func (b *LinkBuilder) AuthorisationPath(externalID string, auth consentDomain.Authorisation) string {
	switch auth.Type {
	case consentDomain.AuthorisationPisCreation:
		return "/v1/payments/" + externalID + "/authorisations/" + auth.ID.String()
	case consentDomain.AuthorisationPisCancellation:
		return "/v1/payments/" + externalID + "/cancellation-authorisations/" + auth.ID.String()
	default:
		return "/v1/consents/" + externalID + "/authorisations/" + auth.ID.String()
	}
}

// For returns the links matching the approach and status of auth.
func (b *LinkBuilder) For(externalID string, auth consentDomain.Authorisation) authDomain.Links {
	self := b.baseURL + b.AuthorisationPath(externalID, auth)
	links := authDomain.Links{
		authDomain.LinkSelf:      self,
		authDomain.LinkScaStatus: self,
	}

	if auth.ScaStatus.IsFinalised() {
		return links
	}
	if auth.ScaStatus == consentDomain.ScaUnconfirmed {
		links[authDomain.LinkConfirmation] = self + "/confirmation"
		return links
	}

	if auth.ScaApproach == consentDomain.ScaApproachRedirect {
		links[authDomain.LinkScaRedirect] = b.redirectURL(externalID, auth)
		return links
	}

	switch auth.ScaStatus {
	case consentDomain.ScaReceived, consentDomain.ScaStarted:
		if auth.PsuData.IsEmpty() {
			links[authDomain.LinkUpdatePsuIdentification] = self
		} else {
			links[authDomain.LinkUpdatePsuAuthentication] = self
		}
	case consentDomain.ScaPsuIdentified:
		links[authDomain.LinkUpdatePsuAuthentication] = self
	case consentDomain.ScaPsuAuthenticated:
		links[authDomain.LinkSelectAuthenticationMethod] = self
	case consentDomain.ScaMethodSelected:
		if auth.ScaApproach == consentDomain.ScaApproachEmbedded {
			links[authDomain.LinkAuthoriseTransaction] = self
		}
	}
	return links
}

func (b *LinkBuilder) redirectURL(externalID string, auth consentDomain.Authorisation) string {
	return strings.NewReplacer(
		"{redirect-id}", auth.ID.String(),
		"{encrypted-consent-id}", externalID,
	).Replace(b.redirectTemplate)
}
