package domain

// Algorithm represents the AEAD cipher a crypto provider encrypts with.
//
// Both algorithms provide authenticated encryption with associated data, so a
// ciphertext that was tampered with, or decrypted under the wrong password or
// consent id, fails to open instead of yielding garbage.
type Algorithm string

const (
	// AESGCM is AES-256 in Galois/Counter Mode. It is the default for new providers.
	AESGCM Algorithm = "aes-gcm"

	// ChaCha20 is ChaCha20-Poly1305, the alternate algorithm for hosts without AES-NI.
	ChaCha20 Algorithm = "chacha20-poly1305"
)

// KDF names the password-based key derivation function of a provider.
type KDF string

const (
	// PBKDF2WithHmacSHA256 derives keys with PBKDF2 over HMAC-SHA256.
	PBKDF2WithHmacSHA256 KDF = "PBKDF2WithHmacSHA256"

	// PBKDF2WithHmacSHA512 derives keys with PBKDF2 over HMAC-SHA512.
	PBKDF2WithHmacSHA512 KDF = "PBKDF2WithHmacSHA512"
)

const (
	// MinIterations is the lowest accepted PBKDF2 iteration count.
	MinIterations = 65536

	// KeyLengthBits is the derived key length. Both supported ciphers take 256-bit keys.
	KeyLengthBits = 256

	// SaltSize is the per-ciphertext PBKDF2 salt length in bytes.
	SaltSize = 16
)

// Role identifies what a default provider is used for.
type Role string

const (
	// RoleData encrypts consent payloads.
	RoleData Role = "data"

	// RoleID encrypts identifiers handed out to TPPs.
	RoleID Role = "id"
)
