package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
	cryptoDomain "github.com/allisson/consents/internal/crypto/domain"
	apperrors "github.com/allisson/consents/internal/errors"
)

// requestFingerprinter implements Fingerprinter with HMAC-SHA256 under a key
// derived by HKDF from a configured secret. Fingerprints cover the password and
// the OTP, so they must not be plain hashes.
type requestFingerprinter struct {
	key []byte
}

// NewRequestFingerprinter derives the fingerprint key from secret.
func NewRequestFingerprinter(secret []byte) (Fingerprinter, error) {
	if len(secret) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "fingerprint secret is empty")
	}

	reader := hkdf.New(sha256.New, secret, nil, []byte("sca-request-fingerprint-v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		cryptoDomain.Zero(key)
		return nil, apperrors.Wrap(err, "failed to derive fingerprint key")
	}

	return &requestFingerprinter{key: key}, nil
}

// Fingerprint returns a hex HMAC over the canonical form of req bound to
// authorisationID and the resulting status.
func (f *requestFingerprinter) Fingerprint(
	authorisationID uuid.UUID,
	result consentDomain.ScaStatus,
	req authDomain.UpdateRequest,
) string {
	buf := make([]byte, 0, 256)
	buf = append(buf, authorisationID[:]...)
	for _, field := range []string{
		string(result),
		req.PsuData.ID,
		req.PsuData.IDType,
		req.PsuData.CorporateID,
		req.Password,
		req.AuthenticationMethodID,
		req.ScaAuthenticationData,
	} {
		buf = appendLengthPrefixed(buf, []byte(field))
	}
	defer cryptoDomain.Zero(buf)

	mac := hmac.New(sha256.New, f.key)
	mac.Write(buf)
	return hex.EncodeToString(mac.Sum(nil))
}

// appendLengthPrefixed adds a 4-byte big-endian length prefix followed by data.
func appendLengthPrefixed(buf []byte, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}
