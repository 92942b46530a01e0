package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	cryptoDomain "github.com/allisson/consents/internal/crypto/domain"
)

// aeadConstructors maps every supported provider algorithm to its
// cipher.AEAD factory. Both take a 32-byte key and use a 12-byte nonce.
var aeadConstructors = map[cryptoDomain.Algorithm]func(key []byte) (cipher.AEAD, error){
	cryptoDomain.AESGCM: func(key []byte) (cipher.AEAD, error) {
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		return cipher.NewGCM(block)
	},
	cryptoDomain.ChaCha20: chacha20poly1305.New,
}

// sealer draws a fresh random nonce for every encryption. It is stateless and
// safe for concurrent use.
type sealer struct {
	alg  cryptoDomain.Algorithm
	aead cipher.AEAD
}

func (s *sealer) Encrypt(plaintext, aad []byte) (ciphertext, nonce []byte, err error) {
	nonce = make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nil, nonce, plaintext, aad), nonce, nil
}

// Decrypt fails when the tag does not match, i.e. on a different key or aad
// or a modified ciphertext.
func (s *sealer) Decrypt(ciphertext, nonce, aad []byte) ([]byte, error) {
	if len(nonce) != s.aead.NonceSize() {
		return nil, fmt.Errorf("failed to decrypt: nonce must be %d bytes", s.aead.NonceSize())
	}
	plaintext, err := s.aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// AEADManagerService builds ciphers for derived provider keys.
type AEADManagerService struct{}

func NewAEADManager() *AEADManagerService {
	return &AEADManagerService{}
}

// CreateCipher returns ErrInvalidKeySize unless key is 32 bytes and
// ErrUnsupportedAlgorithm for an unknown algorithm.
func (am *AEADManagerService) CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error) {
	newAEAD, ok := aeadConstructors[alg]
	if !ok {
		return nil, cryptoDomain.ErrUnsupportedAlgorithm
	}
	if len(key) != cryptoDomain.KeyLengthBits/8 {
		return nil, cryptoDomain.ErrInvalidKeySize
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cipher: %w", alg, err)
	}
	return &sealer{alg: alg, aead: aead}, nil
}
