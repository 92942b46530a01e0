package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/consents/internal/crypto/domain"
)

func newTestCipher(t *testing.T, id string, alg cryptoDomain.Algorithm, password string) *PasswordCipher {
	t.Helper()
	params := cryptoDomain.DefaultProviderParams()
	params.Algorithm = alg
	c, err := NewPasswordCipher(id, params, []byte(password), NewAEADManager())
	require.NoError(t, err)
	return c
}

func TestNewPasswordCipher(t *testing.T) {
	manager := NewAEADManager()

	t.Run("invalid params", func(t *testing.T) {
		params := cryptoDomain.DefaultProviderParams()
		params.Iterations = 1000
		_, err := NewPasswordCipher("p1", params, []byte("pw"), manager)
		assert.ErrorIs(t, err, cryptoDomain.ErrInsufficientIterations)
	})

	t.Run("empty password", func(t *testing.T) {
		_, err := NewPasswordCipher("p1", cryptoDomain.DefaultProviderParams(), nil, manager)
		assert.ErrorIs(t, err, cryptoDomain.ErrEmptyPassword)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := NewPasswordCipher("", cryptoDomain.DefaultProviderParams(), []byte("pw"), manager)
		assert.ErrorIs(t, err, cryptoDomain.ErrInvalidProvidersFormat)
	})

	t.Run("password is copied", func(t *testing.T) {
		password := []byte("secret")
		c, err := NewPasswordCipher("p1", cryptoDomain.DefaultProviderParams(), password, manager)
		require.NoError(t, err)

		ciphertext, err := c.Encrypt([]byte("data"), nil)
		require.NoError(t, err)

		cryptoDomain.Zero(password)
		plaintext, err := c.Decrypt(ciphertext, nil)
		require.NoError(t, err)
		assert.Equal(t, []byte("data"), plaintext)
	})
}

func TestPasswordCipher_RoundTrip(t *testing.T) {
	for _, alg := range []cryptoDomain.Algorithm{cryptoDomain.AESGCM, cryptoDomain.ChaCha20} {
		t.Run(string(alg), func(t *testing.T) {
			c := newTestCipher(t, "p1", alg, "correct horse battery staple")
			plaintext := []byte(`{"frequencyPerDay":4}`)
			aad := []byte("9b2c6f7e-3a4d-4f1e-8a7b-1c2d3e4f5a6b")

			ciphertext, err := c.Encrypt(plaintext, aad)
			require.NoError(t, err)
			assert.Len(t, ciphertext, cryptoDomain.SaltSize+nonceSize+len(plaintext)+tagSize)

			decrypted, err := c.Decrypt(ciphertext, aad)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		})
	}
}

func TestPasswordCipher_FreshSaltPerEncryption(t *testing.T) {
	c := newTestCipher(t, "p1", cryptoDomain.AESGCM, "pw")

	first, err := c.Encrypt([]byte("same"), nil)
	require.NoError(t, err)
	second, err := c.Encrypt([]byte("same"), nil)
	require.NoError(t, err)

	assert.NotEqual(t, first[:cryptoDomain.SaltSize], second[:cryptoDomain.SaltSize])
	assert.NotEqual(t, first, second)
}

func TestPasswordCipher_DecryptFailures(t *testing.T) {
	c := newTestCipher(t, "p1", cryptoDomain.AESGCM, "pw")
	ciphertext, err := c.Encrypt([]byte("data"), []byte("consent-a"))
	require.NoError(t, err)

	t.Run("wrong associated data", func(t *testing.T) {
		_, err := c.Decrypt(ciphertext, []byte("consent-b"))
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("wrong password", func(t *testing.T) {
		other := newTestCipher(t, "p1", cryptoDomain.AESGCM, "other")
		_, err := other.Decrypt(ciphertext, []byte("consent-a"))
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("corrupted byte", func(t *testing.T) {
		tampered := append([]byte(nil), ciphertext...)
		tampered[len(tampered)-1] ^= 0x01
		_, err := c.Decrypt(tampered, []byte("consent-a"))
		assert.ErrorIs(t, err, cryptoDomain.ErrDecryptionFailed)
	})

	t.Run("truncated", func(t *testing.T) {
		_, err := c.Decrypt(ciphertext[:cryptoDomain.SaltSize+nonceSize], []byte("consent-a"))
		assert.ErrorIs(t, err, cryptoDomain.ErrMalformedCiphertext)
	})
}
