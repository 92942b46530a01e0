// Package service provides the cryptographic building blocks of consent data protection:
// AEAD ciphers, password-derived providers and the provider registry.
package service

import (
	cryptoDomain "github.com/allisson/consents/internal/crypto/domain"
)

// AEAD defines the interface for Authenticated Encryption with Associated Data.
type AEAD interface {
	// Encrypt encrypts plaintext with optional AAD and returns ciphertext and nonce.
	Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error)

	// Decrypt decrypts ciphertext using the provided nonce and AAD.
	Decrypt(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager defines the interface for creating AEAD cipher instances.
type AEADManager interface {
	// CreateCipher creates an AEAD cipher instance for the specified algorithm.
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// Provider is a named, immutable encryption scheme. The id is stored next to every
// ciphertext the provider produces so the same provider can be found again for
// decryption after the configured default changes.
type Provider interface {
	// ID returns the stable provider id.
	ID() string

	// Params returns the parameters the provider was built with.
	Params() cryptoDomain.ProviderParams

	// Encrypt seals plaintext bound to aad. The result is self-contained.
	Encrypt(plaintext, aad []byte) ([]byte, error)

	// Decrypt opens a ciphertext produced by Encrypt with the same aad.
	Decrypt(ciphertext, aad []byte) ([]byte, error)
}

// ProviderResolver resolves default providers for new encryptions and any
// registered provider for decryption.
type ProviderResolver interface {
	CurrentDataProvider() (Provider, error)
	CurrentIDProvider() (Provider, error)
	ProviderByID(id string) (Provider, error)
}
