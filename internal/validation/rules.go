// Package validation holds the jellydator rules shared by the HTTP handlers
// and the CLI.
package validation

import (
	"strings"
	"time"

	validation "github.com/jellydator/validation"

	consentDomain "github.com/allisson/consents/internal/consent/domain"
	apperrors "github.com/allisson/consents/internal/errors"
)

// WrapValidationError wraps validation errors as domain ErrInvalidInput
func WrapValidationError(err error) error {
	if err == nil {
		return nil
	}
	return apperrors.Wrap(apperrors.ErrInvalidInput, err.Error())
}

// Date validates a calendar date in the YYYY-MM-DD layout.
var Date = validation.NewStringRuleWithError(
	func(s string) bool {
		_, err := time.Parse(consentDomain.DateLayout, s)
		return err == nil
	},
	validation.NewError("validation_date_format", "must be a date in the YYYY-MM-DD format"),
)

// ScaApproach validates an SCA approach name.
var ScaApproach = validation.NewStringRuleWithError(
	func(s string) bool {
		return consentDomain.ScaApproach(s).IsValid()
	},
	validation.NewError("validation_sca_approach", "must be one of REDIRECT, DECOUPLED or EMBEDDED"),
)

// ScaStatus validates an SCA status name.
var ScaStatus = validation.NewStringRuleWithError(
	func(s string) bool {
		for _, status := range consentDomain.ScaStatuses {
			if string(status) == s {
				return true
			}
		}
		return false
	},
	validation.NewError("validation_sca_status", "must be a known sca status"),
)

// NoWhitespace validates that string doesn't contain leading/trailing whitespace
var NoWhitespace = validation.NewStringRuleWithError(
	func(s string) bool {
		return s == strings.TrimSpace(s)
	},
	validation.NewError("validation_no_whitespace", "must not contain leading or trailing whitespace"),
)

// NotBlank validates that a string is not empty after trimming whitespace
var NotBlank = validation.NewStringRuleWithError(
	func(s string) bool {
		return strings.TrimSpace(s) != ""
	},
	validation.NewError("validation_not_blank", "must not be blank"),
)
