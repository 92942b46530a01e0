package commands

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"

	validation "github.com/jellydator/validation"

	authorisationService "github.com/allisson/consents/internal/authorisation/service"
	customValidation "github.com/allisson/consents/internal/validation"
)

// psuPasswordPolicy is the minimum strength of a PSU password stored for the
// built-in ASPSP connector.
var psuPasswordPolicy = customValidation.PasswordStrength{
	MinLength:     8,
	RequireUpper:  true,
	RequireLower:  true,
	RequireNumber: true,
}

// RunHashPsuPassword hashes a PSU password with Argon2id and prints the
// SCA_PSU_CREDENTIALS entry for it. When password is empty it is read from
// the first line of io.Reader so it stays out of shell history.
func RunHashPsuPassword(io IOTuple, logger *slog.Logger, psuID, password string) error {
	if err := validation.Validate(psuID,
		validation.Required,
		customValidation.NotBlank,
		customValidation.NoWhitespace,
	); err != nil {
		return customValidation.WrapValidationError(err)
	}
	if strings.ContainsAny(psuID, ":;") {
		return fmt.Errorf("psu id must not contain ':' or ';'")
	}

	if password == "" {
		_, _ = fmt.Fprint(io.Writer, "Enter PSU password: ")
		scanner := bufio.NewScanner(io.Reader)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			return fmt.Errorf("password is required")
		}
		password = strings.TrimRight(scanner.Text(), "\r")
		_, _ = fmt.Fprintln(io.Writer)
	}

	if err := validation.Validate(password, validation.Required, psuPasswordPolicy); err != nil {
		return customValidation.WrapValidationError(err)
	}

	hasher, err := authorisationService.NewPsuPasswordHasher()
	if err != nil {
		return err
	}
	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintln(io.Writer, "# Append this entry to SCA_PSU_CREDENTIALS, separating entries with ';'")
	_, _ = fmt.Fprintf(io.Writer, "SCA_PSU_CREDENTIALS=\"%s:%s\"\n", psuID, hash)

	logger.Info("psu password hashed", slog.String("psu_id", psuID))
	return nil
}
