// Package service provides the consent data protector, which keeps the consent
// payload and the identifiers handed to TPPs encrypted with the configured
// crypto providers.
package service

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/allisson/consents/internal/consent/domain"
	cryptoService "github.com/allisson/consents/internal/crypto/service"
)

// idTokenAAD binds identifier tokens to their purpose.
var idTokenAAD = []byte("consent-external-id")

// DataProtector converts consent payloads and identifiers between their plain
// and encrypted forms.
//
// Every failure is logged and reported as absence (ok=false). Callers never see
// the cause, so a wrong password cannot be told apart from corrupted bytes.
type DataProtector struct {
	providers cryptoService.ProviderResolver
	logger    *slog.Logger
}

// NewDataProtector creates a protector resolving providers through providers.
func NewDataProtector(providers cryptoService.ProviderResolver, logger *slog.Logger) *DataProtector {
	return &DataProtector{
		providers: providers,
		logger:    logger,
	}
}

// Protect encrypts data with the current data provider. The ciphertext is bound
// to consentID so it cannot be replayed onto another consent.
func (p *DataProtector) Protect(consentID uuid.UUID, data *domain.Data) (domain.EncryptedData, bool) {
	if data == nil {
		data = &domain.Data{}
	}

	plaintext, err := json.Marshal(data)
	if err != nil {
		p.warn("failed to encode consent data", consentID, "", err)
		return domain.EncryptedData{}, false
	}

	return p.protectBytes(consentID, plaintext)
}

// Unprotect decrypts enc with the provider recorded next to it.
func (p *DataProtector) Unprotect(consentID uuid.UUID, enc domain.EncryptedData) (*domain.Data, bool) {
	if enc.IsEmpty() {
		return nil, false
	}

	provider, err := p.providers.ProviderByID(enc.ProviderID)
	if err != nil {
		p.warn("failed to resolve crypto provider", consentID, enc.ProviderID, err)
		return nil, false
	}

	plaintext, err := provider.Decrypt(enc.Ciphertext, consentID[:])
	if err != nil {
		p.warn("failed to decrypt consent data", consentID, enc.ProviderID, err)
		return nil, false
	}

	var data domain.Data
	if err := json.Unmarshal(plaintext, &data); err != nil {
		p.warn("failed to decode consent data", consentID, enc.ProviderID, err)
		return nil, false
	}
	return &data, true
}

// MigrateLegacy encrypts the plaintext payload of a record written before
// encryption existed and clears it. It reports whether c changed; a record that
// is already encrypted, or has nothing to migrate, is returned as is.
func (p *DataProtector) MigrateLegacy(c domain.Consent) (domain.Consent, bool) {
	if !c.EncryptedData.IsEmpty() || c.LegacyData == nil {
		return c, false
	}

	var data domain.Data
	if err := json.Unmarshal(c.LegacyData, &data); err != nil {
		p.warn("failed to decode legacy consent data", c.ID, "", err)
		return c, false
	}

	plaintext, err := json.Marshal(&data)
	if err != nil {
		p.warn("failed to encode legacy consent data", c.ID, "", err)
		return c, false
	}

	enc, ok := p.protectBytes(c.ID, plaintext)
	if !ok {
		return c, false
	}

	out := c.Clone()
	out.EncryptedData = enc
	out.LegacyData = nil

	p.logger.Info("legacy consent data migrated",
		slog.String("consent_id", c.ID.String()),
		slog.String("provider_id", enc.ProviderID),
	)
	return out, true
}

// ProtectID encrypts id with the current id provider into an opaque URL safe
// token of the form "<providerID>.<base64url ciphertext>".
func (p *DataProtector) ProtectID(id uuid.UUID) (string, bool) {
	provider, err := p.providers.CurrentIDProvider()
	if err != nil {
		p.warn("failed to resolve id provider", id, "", err)
		return "", false
	}

	ciphertext, err := provider.Encrypt(id[:], idTokenAAD)
	if err != nil {
		p.warn("failed to encrypt consent id", id, provider.ID(), err)
		return "", false
	}

	return provider.ID() + "." + base64.RawURLEncoding.EncodeToString(ciphertext), true
}

// UnprotectID reverses ProtectID. Tokens from any registered provider are accepted.
func (p *DataProtector) UnprotectID(token string) (uuid.UUID, bool) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return uuid.Nil, false
	}
	providerID, encoded := token[:i], token[i+1:]

	ciphertext, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return uuid.Nil, false
	}

	provider, err := p.providers.ProviderByID(providerID)
	if err != nil {
		p.warn("failed to resolve id provider", uuid.Nil, providerID, err)
		return uuid.Nil, false
	}

	plaintext, err := provider.Decrypt(ciphertext, idTokenAAD)
	if err != nil {
		p.warn("failed to decrypt consent id", uuid.Nil, providerID, err)
		return uuid.Nil, false
	}

	id, err := uuid.FromBytes(plaintext)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (p *DataProtector) protectBytes(consentID uuid.UUID, plaintext []byte) (domain.EncryptedData, bool) {
	provider, err := p.providers.CurrentDataProvider()
	if err != nil {
		p.warn("failed to resolve data provider", consentID, "", err)
		return domain.EncryptedData{}, false
	}

	ciphertext, err := provider.Encrypt(plaintext, consentID[:])
	if err != nil {
		p.warn("failed to encrypt consent data", consentID, provider.ID(), err)
		return domain.EncryptedData{}, false
	}

	return domain.EncryptedData{ProviderID: provider.ID(), Ciphertext: ciphertext}, true
}

func (p *DataProtector) warn(msg string, consentID uuid.UUID, providerID string, err error) {
	p.logger.Warn(msg,
		slog.String("consent_id", consentID.String()),
		slog.String("provider_id", providerID),
		slog.Any("error", err),
	)
}
