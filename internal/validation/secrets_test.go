package validation

import (
	"testing"

	validation "github.com/jellydator/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordStrength(t *testing.T) {
	strict := PasswordStrength{
		MinLength:      8,
		RequireUpper:   true,
		RequireLower:   true,
		RequireNumber:  true,
		RequireSpecial: true,
	}

	tests := []struct {
		name     string
		rule     PasswordStrength
		password string
		errPart  string
	}{
		{name: "all classes", rule: strict, password: "Psu-Pass123"},
		{name: "too short", rule: strict, password: "Ps-12", errPart: "at least 8 characters"},
		{name: "multibyte runes counted once", rule: strict, password: "Ää-1ääää", errPart: ""},
		{name: "missing uppercase", rule: strict, password: "psu-pass123", errPart: "an uppercase letter"},
		{name: "missing lowercase", rule: strict, password: "PSU-PASS123", errPart: "a lowercase letter"},
		{name: "missing number", rule: strict, password: "Psu-Password", errPart: "a number"},
		{name: "missing special", rule: strict, password: "PsuPass123", errPart: "a special character"},
		{name: "length only", rule: PasswordStrength{MinLength: 10}, password: "tencharact"},
		{name: "length only too short", rule: PasswordStrength{MinLength: 10}, password: "short", errPart: "at least 10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate(tt.password)
			if tt.errPart == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}

	assert.Error(t, strict.Validate(42))
}

func TestBase64Bytes(t *testing.T) {
	rule := Base64Bytes(8)

	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{name: "empty is left to required", value: "", valid: true},
		{name: "long enough", value: "c2VjcmV0LXBhc3N3b3Jk", valid: true},
		{name: "exactly the minimum", value: "MTIzNDU2Nzg=", valid: true},
		{name: "too short", value: "c2hvcnQ=", valid: false},
		{name: "not base64", value: "not base64!", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validation.Validate(tt.value, rule)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
