package domain

import (
	"github.com/allisson/consents/internal/errors"
)

// Consent-specific error definitions.
var (
	// ErrConsentNotFound indicates no consent exists for the given id.
	ErrConsentNotFound = errors.Wrap(errors.ErrNotFound, "consent not found")

	// ErrAuthorisationNotFound indicates the consent has no authorisation with the given id.
	ErrAuthorisationNotFound = errors.Wrap(errors.ErrNotFound, "authorisation not found")

	// ErrConsentFinalised indicates the consent is in a terminal status.
	ErrConsentFinalised = errors.Wrap(errors.ErrConflict, "consent is finalised")

	// ErrConsentNotValid indicates the consent must be VALID for the operation.
	ErrConsentNotValid = errors.Wrap(errors.ErrConflict, "consent is not valid")

	// ErrAccessExceeded indicates today's usage already reached the frequency per day.
	ErrAccessExceeded = errors.Wrap(errors.ErrForbidden, "consent access exceeded")

	// ErrInternalRequestIDNotSupported indicates an internal request id lookup on a non AIS consent.
	ErrInternalRequestIDNotSupported = errors.Wrap(errors.ErrInvalidInput, "internal request id lookup is only supported for AIS consents")

	// ErrConcurrentModification indicates the record changed since it was loaded.
	ErrConcurrentModification = errors.Wrap(errors.ErrConflict, "consent was modified concurrently")

	// ErrInvalidConsent indicates a consent request failed validation.
	ErrInvalidConsent = errors.Wrap(errors.ErrInvalidInput, "invalid consent")

	// ErrConsentBlockedByBasket indicates the consent is part of a blocked signing basket.
	ErrConsentBlockedByBasket = errors.Wrap(errors.ErrConflict, "consent is blocked by a signing basket")

	// ErrConsentDataUnavailable indicates the protected consent data could not be produced or read.
	ErrConsentDataUnavailable = errors.New("consent data unavailable")
)
