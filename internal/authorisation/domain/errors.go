package domain

import (
	"fmt"

	consentDomain "github.com/allisson/consents/internal/consent/domain"
	apperrors "github.com/allisson/consents/internal/errors"
)

// Authorisation errors.
var (
	// ErrInvalidStateTransition indicates an update against a finalised or unconfirmed authorisation.
	ErrInvalidStateTransition = apperrors.Wrap(apperrors.ErrConflict, "invalid sca state transition")

	// ErrPsuCredentialsInvalid indicates the PSU password was rejected by the ASPSP.
	ErrPsuCredentialsInvalid = apperrors.Wrap(apperrors.ErrUnauthorized, "psu credentials invalid")

	// ErrScaInvalid indicates the SCA authentication data was rejected.
	ErrScaInvalid = apperrors.Wrap(apperrors.ErrUnauthorized, "sca authentication data invalid")

	// ErrConfirmationCodeInvalid indicates a wrong authorisation confirmation code.
	ErrConfirmationCodeInvalid = apperrors.Wrap(apperrors.ErrInvalidInput, "confirmation code invalid")

	// ErrScaMethodUnknown indicates no usable SCA method.
	ErrScaMethodUnknown = apperrors.Wrap(apperrors.ErrInvalidInput, "sca method unknown")

	// ErrFormat indicates a malformed authorisation update.
	ErrFormat = apperrors.Wrap(apperrors.ErrInvalidInput, "malformed authorisation request")

	// ErrAuthorisationExpired indicates the redirect link of the authorisation expired.
	ErrAuthorisationExpired = apperrors.Wrap(apperrors.ErrForbidden, "authorisation expired")

	// ErrConnector indicates the ASPSP connector failed.
	ErrConnector = apperrors.New("aspsp connector failure")
)

// ProcessorError is the typed error carried by a failed ProcessorResponse.
type ProcessorError struct {
	Code    ErrorCode
	Kind    ErrorKind
	Message string
}

// Error implements the error interface.
func (e *ProcessorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorCode returns the code reported to the TPP.
func (e *ProcessorError) ErrorCode() string { return string(e.Code) }

// ErrorMessage returns the message reported to the TPP.
func (e *ProcessorError) ErrorMessage() string { return e.Message }

// Unwrap maps the error code to the matching sentinel so callers can use errors.Is.
func (e *ProcessorError) Unwrap() error {
	switch e.Code {
	case CodeFormatError, CodeFormatErrorNoPsu:
		return ErrFormat
	case CodePsuCredentialsInvalid:
		return ErrPsuCredentialsInvalid
	case CodeScaMethodUnknown:
		return ErrScaMethodUnknown
	case CodeScaInvalid:
		return ErrScaInvalid
	case CodeStatusInvalid:
		return ErrInvalidStateTransition
	case CodeScaConfirmationCodeInvalid:
		return ErrConfirmationCodeInvalid
	case CodeConsentInvalid:
		return consentDomain.ErrConsentNotValid
	case CodeConsentBlockedByBasket:
		return consentDomain.ErrConsentBlockedByBasket
	case CodeConcurrentModification:
		return consentDomain.ErrConcurrentModification
	case CodeAuthorisationExpired:
		return ErrAuthorisationExpired
	default:
		return ErrConnector
	}
}

// NewValidationError creates a validation ProcessorError.
func NewValidationError(code ErrorCode, message string) *ProcessorError {
	return &ProcessorError{Code: code, Kind: KindValidation, Message: message}
}

// NewStateConflictError creates a state conflict ProcessorError.
func NewStateConflictError(code ErrorCode, message string) *ProcessorError {
	return &ProcessorError{Code: code, Kind: KindStateConflict, Message: message}
}

// NewInternalError creates an internal ProcessorError. The cause is not kept.
func NewInternalError(message string) *ProcessorError {
	return &ProcessorError{Code: CodeInternalError, Kind: KindInternal, Message: message}
}
