package validation

import (
	"encoding/base64"
	"strconv"
	"strings"
	"unicode"

	validation "github.com/jellydator/validation"
)

type characterClass struct {
	code    string
	label   string
	matches func(rune) bool
}

var (
	upperClass   = characterClass{"uppercase", "an uppercase letter", unicode.IsUpper}
	lowerClass   = characterClass{"lowercase", "a lowercase letter", unicode.IsLower}
	numberClass  = characterClass{"number", "a number", unicode.IsNumber}
	specialClass = characterClass{"special", "a special character", func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	}}
)

// PasswordStrength is the policy applied to PSU passwords before hashing.
type PasswordStrength struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireNumber  bool
	RequireSpecial bool
}

func (p PasswordStrength) required() []characterClass {
	var classes []characterClass
	for _, c := range []struct {
		on    bool
		class characterClass
	}{
		{p.RequireUpper, upperClass},
		{p.RequireLower, lowerClass},
		{p.RequireNumber, numberClass},
		{p.RequireSpecial, specialClass},
	} {
		if c.on {
			classes = append(classes, c.class)
		}
	}
	return classes
}

// Validate reports the first unmet requirement. Length is counted in runes.
func (p PasswordStrength) Validate(value interface{}) error {
	s, ok := value.(string)
	if !ok {
		return validation.NewError("validation_password_strength", "password must be a string")
	}
	if len([]rune(s)) < p.MinLength {
		return validation.NewError(
			"validation_password_min_length",
			"password must be at least "+strconv.Itoa(p.MinLength)+" characters",
		)
	}
	for _, class := range p.required() {
		if strings.IndexFunc(s, class.matches) < 0 {
			return validation.NewError(
				"validation_password_"+class.code,
				"password must contain at least "+class.label,
			)
		}
	}
	return nil
}

// Base64Bytes validates standard base64 text that decodes to at least min
// bytes. Empty values are left to validation.Required.
func Base64Bytes(min int) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if s == "" {
			return nil
		}
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return validation.NewError("validation_base64", "must be valid base64-encoded data")
		}
		if len(decoded) < min {
			return validation.NewError(
				"validation_base64_length",
				"must decode to at least "+strconv.Itoa(min)+" bytes",
			)
		}
		return nil
	})
}
