package service

import (
	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/consents/internal/errors"
)

// scaSecretHasher implements ScaSecretHasher using Argon2id.
type scaSecretHasher struct {
	hasher *pwdhash.PasswordHasher
}

// NewScaSecretHasher creates a ScaSecretHasher. OTPs and confirmation codes
// live for minutes, so the interactive policy is used.
func NewScaSecretHasher() (ScaSecretHasher, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyInteractive))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create sca secret hasher")
	}
	return &scaSecretHasher{hasher: hasher}, nil
}

// NewPsuPasswordHasher creates the hasher used for PSU credentials of the built-in connector.
func NewPsuPasswordHasher() (ScaSecretHasher, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create psu password hasher")
	}
	return &scaSecretHasher{hasher: hasher}, nil
}

// Hash hashes secret.
func (s *scaSecretHasher) Hash(secret string) (string, error) {
	hash, err := s.hasher.Hash([]byte(secret))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash sca secret")
	}
	return hash, nil
}

// Verify reports whether secret matches hash.
func (s *scaSecretHasher) Verify(secret, hash string) bool {
	if secret == "" || hash == "" {
		return false
	}
	ok, err := s.hasher.Verify([]byte(secret), hash)
	if err != nil {
		return false
	}
	return ok
}
