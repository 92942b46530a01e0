// Package domain defines the request, response and error model of the SCA
// authorisation processor.
package domain

// ErrorCode is a stable code reported to the TPP when an authorisation update fails.
type ErrorCode string

// Error codes returned by the processor.
const (
	CodeFormatError                ErrorCode = "FORMAT_ERROR"
	CodeFormatErrorNoPsu           ErrorCode = "FORMAT_ERROR_NO_PSU"
	CodePsuCredentialsInvalid      ErrorCode = "PSU_CREDENTIALS_INVALID"
	CodeScaMethodUnknown           ErrorCode = "SCA_METHOD_UNKNOWN"
	CodeScaInvalid                 ErrorCode = "SCA_INVALID"
	CodeStatusInvalid              ErrorCode = "STATUS_INVALID"
	CodeScaConfirmationCodeInvalid ErrorCode = "ERROR_SCA_CONFIRMATION_CODE"
	CodeConsentInvalid             ErrorCode = "CONSENT_INVALID"
	CodeConsentBlockedByBasket     ErrorCode = "CONSENT_BLOCKED_BY_BASKET"
	CodeConcurrentModification     ErrorCode = "CONCURRENT_MODIFICATION"
	CodeAuthorisationExpired       ErrorCode = "AUTHORISATION_EXPIRED"
	CodeInternalError              ErrorCode = "INTERNAL_ERROR"
)

// ErrorKind groups error codes by how a caller should react to them.
type ErrorKind string

const (
	// KindValidation errors are permanent for the given request.
	KindValidation ErrorKind = "validation"
	// KindStateConflict errors may succeed after reloading the authorisation.
	KindStateConflict ErrorKind = "state_conflict"
	// KindInternal errors come from the ASPSP connector or infrastructure.
	KindInternal ErrorKind = "internal"
)

// Link names used in processor responses.
const (
	LinkSelf                       = "self"
	LinkScaStatus                  = "scaStatus"
	LinkScaRedirect                = "scaRedirect"
	LinkUpdatePsuIdentification    = "updatePsuIdentification"
	LinkUpdatePsuAuthentication    = "updatePsuAuthentication"
	LinkSelectAuthenticationMethod = "selectAuthenticationMethod"
	LinkAuthoriseTransaction       = "authoriseTransaction"
	LinkConfirmation               = "confirmation"
)
