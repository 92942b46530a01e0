package domain

import (
	"github.com/allisson/consents/internal/errors"
)

// Cryptographic error definitions.
//
// Configuration errors surface at startup. Encryption and decryption errors never
// leave the consent data protector; they are logged and collapsed into absence.
var (
	// ErrUnsupportedAlgorithm indicates the requested AEAD algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrUnsupportedKDF indicates the requested key derivation function is not supported.
	ErrUnsupportedKDF = errors.Wrap(errors.ErrInvalidInput, "unsupported key derivation function")

	// ErrInvalidKeySize indicates the derived key length is not 256 bits.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrInsufficientIterations indicates the PBKDF2 iteration count is below MinIterations.
	ErrInsufficientIterations = errors.Wrap(errors.ErrInvalidInput, "insufficient kdf iterations")

	// ErrEmptyPassword indicates a provider was configured without a password.
	ErrEmptyPassword = errors.Wrap(errors.ErrInvalidInput, "empty provider password")

	// ErrInvalidProvidersFormat indicates CRYPTO_PROVIDERS could not be parsed.
	ErrInvalidProvidersFormat = errors.Wrap(errors.ErrInvalidInput, "invalid crypto providers format")

	// ErrInvalidPasswordsFormat indicates CRYPTO_PASSWORDS could not be parsed.
	ErrInvalidPasswordsFormat = errors.Wrap(errors.ErrInvalidInput, "invalid crypto passwords format")

	// ErrMissingPassword indicates a configured provider has no password entry.
	ErrMissingPassword = errors.Wrap(errors.ErrInvalidInput, "missing password for crypto provider")

	// ErrDefaultProviderNotConfigured indicates a default provider id is empty or not registered.
	ErrDefaultProviderNotConfigured = errors.Wrap(errors.ErrInvalidInput, "default crypto provider not configured")

	// ErrUnknownProvider indicates no provider is registered under the requested id.
	ErrUnknownProvider = errors.Wrap(errors.ErrNotFound, "unknown crypto provider")

	// ErrMalformedCiphertext indicates the ciphertext is too short to hold salt and nonce.
	ErrMalformedCiphertext = errors.Wrap(errors.ErrInvalidInput, "malformed ciphertext")

	// ErrDecryptionFailed indicates authentication failed while opening a ciphertext.
	// Wrong password, wrong associated data and corrupted bytes are not told apart.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")
)
