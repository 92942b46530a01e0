package service

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/pbkdf2"

	cryptoDomain "github.com/allisson/consents/internal/crypto/domain"
)

// nonceSize is the nonce length of both supported AEAD algorithms.
const nonceSize = 12

// tagSize is the authentication tag length of both supported AEAD algorithms.
const tagSize = 16

// PasswordCipher is a Provider that derives a fresh AEAD key from its password
// and a random salt for every encryption.
//
// Ciphertext layout: salt (16 bytes) || nonce (12 bytes) || sealed data with tag.
// The provider id is deliberately not part of the layout; callers store it
// alongside the ciphertext.
type PasswordCipher struct {
	id          string
	params      cryptoDomain.ProviderParams
	password    []byte
	hash        func() hash.Hash
	aeadManager AEADManager
}

// NewPasswordCipher builds an immutable provider. The password is copied.
func NewPasswordCipher(
	id string,
	params cryptoDomain.ProviderParams,
	password []byte,
	aeadManager AEADManager,
) (*PasswordCipher, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty provider id", cryptoDomain.ErrInvalidProvidersFormat)
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: %s", cryptoDomain.ErrEmptyPassword, id)
	}

	var h func() hash.Hash
	switch params.KDF {
	case cryptoDomain.PBKDF2WithHmacSHA512:
		h = sha512.New
	default:
		h = sha256.New
	}

	return &PasswordCipher{
		id:          id,
		params:      params,
		password:    append([]byte(nil), password...),
		hash:        h,
		aeadManager: aeadManager,
	}, nil
}

// ID returns the provider id.
func (c *PasswordCipher) ID() string {
	return c.id
}

// Params returns the provider parameters.
func (c *PasswordCipher) Params() cryptoDomain.ProviderParams {
	return c.params
}

// Encrypt derives a key from a new random salt and seals plaintext bound to aad.
func (c *PasswordCipher) Encrypt(plaintext, aad []byte) ([]byte, error) {
	salt := make([]byte, cryptoDomain.SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	aead, err := c.cipher(salt)
	if err != nil {
		return nil, err
	}

	sealed, nonce, err := aead.Encrypt(plaintext, aad)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, sealed...)
	return out, nil
}

// Decrypt splits the ciphertext layout, re-derives the key and opens the data.
// Every authentication failure is reported as ErrDecryptionFailed.
func (c *PasswordCipher) Decrypt(ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < cryptoDomain.SaltSize+nonceSize+tagSize {
		return nil, cryptoDomain.ErrMalformedCiphertext
	}

	salt := ciphertext[:cryptoDomain.SaltSize]
	nonce := ciphertext[cryptoDomain.SaltSize : cryptoDomain.SaltSize+nonceSize]
	sealed := ciphertext[cryptoDomain.SaltSize+nonceSize:]

	aead, err := c.cipher(salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Decrypt(sealed, nonce, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}

func (c *PasswordCipher) cipher(salt []byte) (AEAD, error) {
	key := pbkdf2.Key(c.password, salt, c.params.Iterations, c.params.KeyLength/8, c.hash)
	defer cryptoDomain.Zero(key)

	return c.aeadManager.CreateCipher(key, c.params.Algorithm)
}
