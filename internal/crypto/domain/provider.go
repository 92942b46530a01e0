package domain

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	validation "github.com/jellydator/validation"
)

// ProviderParams holds the immutable parameters of a password-based AEAD provider.
type ProviderParams struct {
	Algorithm  Algorithm
	KDF        KDF
	Iterations int
	KeyLength  int // bits
}

// DefaultProviderParams returns the parameters used when none are configured:
// AES-GCM with a 256-bit PBKDF2-HMAC-SHA256 key at the minimum iteration count.
func DefaultProviderParams() ProviderParams {
	return ProviderParams{
		Algorithm:  AESGCM,
		KDF:        PBKDF2WithHmacSHA256,
		Iterations: MinIterations,
		KeyLength:  KeyLengthBits,
	}
}

// Validate checks that the parameters describe a supported provider.
func (p ProviderParams) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.Algorithm, validation.Required),
		validation.Field(&p.KDF, validation.Required),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProvidersFormat, err)
	}

	switch p.Algorithm {
	case AESGCM, ChaCha20:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, p.Algorithm)
	}

	switch p.KDF {
	case PBKDF2WithHmacSHA256, PBKDF2WithHmacSHA512:
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedKDF, p.KDF)
	}

	if p.Iterations < MinIterations {
		return fmt.Errorf("%w: %d < %d", ErrInsufficientIterations, p.Iterations, MinIterations)
	}

	if p.KeyLength != KeyLengthBits {
		return fmt.Errorf("%w: %d bits", ErrInvalidKeySize, p.KeyLength)
	}

	return nil
}

// ProviderSpec is one configured provider: its stable id and parameters.
type ProviderSpec struct {
	ID     string
	Params ProviderParams
}

// ParseProviderSpecs parses a comma-separated list of
// "id:algorithm:kdf:iterations:keyLength" entries.
//
// Example:
//
//	CRYPTO_PROVIDERS="gcm-2024:aes-gcm:PBKDF2WithHmacSHA256:65536:256,cc-2025:chacha20-poly1305:PBKDF2WithHmacSHA512:131072:256"
func ParseProviderSpecs(raw string) ([]ProviderSpec, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: no providers configured", ErrInvalidProvidersFormat)
	}

	seen := make(map[string]struct{})
	var specs []ProviderSpec
	for part := range strings.SplitSeq(raw, ",") {
		fields := strings.Split(strings.TrimSpace(part), ":")
		if len(fields) != 5 || fields[0] == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidProvidersFormat, part)
		}

		iterations, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("%w: iterations %q", ErrInvalidProvidersFormat, fields[3])
		}
		keyLength, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, fmt.Errorf("%w: key length %q", ErrInvalidProvidersFormat, fields[4])
		}

		spec := ProviderSpec{
			ID: fields[0],
			Params: ProviderParams{
				Algorithm:  Algorithm(fields[1]),
				KDF:        KDF(fields[2]),
				Iterations: iterations,
				KeyLength:  keyLength,
			},
		}
		if err := spec.Params.Validate(); err != nil {
			return nil, fmt.Errorf("provider %s: %w", spec.ID, err)
		}
		if _, dup := seen[spec.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate provider id %s", ErrInvalidProvidersFormat, spec.ID)
		}
		seen[spec.ID] = struct{}{}
		specs = append(specs, spec)
	}

	return specs, nil
}

// ParsePasswords parses a comma-separated list of "id:base64password" entries.
// The decoded bytes are either the password itself or, when a KMS is configured,
// the KMS ciphertext of the password.
func ParsePasswords(raw string) (map[string][]byte, error) {
	passwords := make(map[string][]byte)
	if strings.TrimSpace(raw) == "" {
		return passwords, nil
	}

	for part := range strings.SplitSeq(raw, ",") {
		p := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(p) != 2 || p[0] == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPasswordsFormat, part)
		}
		decoded, err := base64.StdEncoding.DecodeString(p[1])
		if err != nil {
			return nil, fmt.Errorf("%w for %s: %v", ErrInvalidPasswordsFormat, p[0], err)
		}
		if len(decoded) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyPassword, p[0])
		}
		passwords[p[0]] = decoded
	}

	return passwords, nil
}
