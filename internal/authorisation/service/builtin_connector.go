package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"strings"

	consentDomain "github.com/allisson/consents/internal/consent/domain"
	apperrors "github.com/allisson/consents/internal/errors"
)

const otpLength = 6

// CredentialStore holds the Argon2id password hashes of the PSUs known to the
// built-in connector, keyed by PSU id.
type CredentialStore struct {
	hashes map[string]string
}

// ParseCredentialStore parses ";"-separated "psuId:hash" entries.
func ParseCredentialStore(raw string) (*CredentialStore, error) {
	store := &CredentialStore{hashes: make(map[string]string)}
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		psuID, hash, ok := strings.Cut(entry, ":")
		if !ok || psuID == "" || hash == "" {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid psu credential entry")
		}
		store.hashes[psuID] = hash
	}
	return store, nil
}

// Hash returns the password hash of psuID.
func (s *CredentialStore) Hash(psuID string) (string, bool) {
	hash, ok := s.hashes[psuID]
	return hash, ok
}

// Len returns the number of known PSUs.
func (s *CredentialStore) Len() int {
	return len(s.hashes)
}

// ParseScaMethods parses comma-separated "id:type:decoupled" entries.
func ParseScaMethods(raw string) ([]consentDomain.ScaMethod, error) {
	var methods []consentDomain.ScaMethod
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("invalid sca method %q", entry))
		}
		decoupled, err := strconv.ParseBool(parts[2])
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("invalid sca method %q", entry))
		}
		methods = append(methods, consentDomain.ScaMethod{
			ID:        parts[0],
			Type:      parts[1],
			Name:      parts[1],
			Decoupled: decoupled,
		})
	}
	return methods, nil
}

// OtpSender delivers a one time password to the PSU.
type OtpSender func(ctx context.Context, psu consentDomain.PsuData, method consentDomain.ScaMethod, otp string) error

// BuiltinConnector is an AspspConnector backed by configuration, used when no
// bank integration is deployed.
type BuiltinConnector struct {
	credentials *CredentialStore
	methods     []consentDomain.ScaMethod
	passwords   ScaSecretHasher
	otps        ScaSecretHasher
	send        OtpSender
	logger      *slog.Logger
}

// NewBuiltinConnector creates a BuiltinConnector. passwords verifies PSU
// credentials and otps hashes and verifies one time passwords.
func NewBuiltinConnector(
	credentials *CredentialStore,
	methods []consentDomain.ScaMethod,
	passwords ScaSecretHasher,
	otps ScaSecretHasher,
	send OtpSender,
	logger *slog.Logger,
) *BuiltinConnector {
	c := &BuiltinConnector{
		credentials: credentials,
		methods:     methods,
		passwords:   passwords,
		otps:        otps,
		send:        send,
		logger:      logger,
	}
	if c.send == nil {
		c.send = c.logOtp
	}
	return c
}

// AuthorisePsu checks password against the stored hash. Unknown PSUs and
// wrong passwords are the same attempt failure.
func (c *BuiltinConnector) AuthorisePsu(
	_ context.Context,
	consent consentDomain.Consent,
	psu consentDomain.PsuData,
	password string,
) (PsuAuthorisationResult, error) {
	hash, ok := c.credentials.Hash(psu.ID)
	if !ok || !c.passwords.Verify(password, hash) {
		return PsuAuthorisationResult{Outcome: OutcomeAttemptFailure}, nil
	}
	return PsuAuthorisationResult{Outcome: OutcomeSuccess, ScaExempted: oneFactor(consent)}, nil
}

// RequestAvailableScaMethods returns the configured methods.
func (c *BuiltinConnector) RequestAvailableScaMethods(
	_ context.Context,
	_ consentDomain.Consent,
	_ consentDomain.PsuData,
) ([]consentDomain.ScaMethod, error) {
	return append([]consentDomain.ScaMethod(nil), c.methods...), nil
}

// RequestAuthorisationCode generates an OTP, sends it and returns its hash.
func (c *BuiltinConnector) RequestAuthorisationCode(
	ctx context.Context,
	_ consentDomain.Consent,
	psu consentDomain.PsuData,
	method consentDomain.ScaMethod,
) (AuthorisationCodeResult, error) {
	otp, err := generateOtp()
	if err != nil {
		return AuthorisationCodeResult{}, err
	}

	hash, err := c.otps.Hash(otp)
	if err != nil {
		return AuthorisationCodeResult{}, err
	}

	if err := c.send(ctx, psu, method, otp); err != nil {
		return AuthorisationCodeResult{}, apperrors.Wrap(err, "failed to send otp")
	}

	return AuthorisationCodeResult{
		ChallengeData: &consentDomain.ChallengeData{
			OtpFormat:    "integer",
			OtpMaxLength: otpLength,
		},
		OtpHash:    hash,
		PsuMessage: "Please enter the code sent by " + method.Name,
	}, nil
}

// StartDecoupled only answers with the message shown to the PSU.
func (c *BuiltinConnector) StartDecoupled(
	_ context.Context,
	_ consentDomain.Consent,
	psu consentDomain.PsuData,
	method *consentDomain.ScaMethod,
) (DecoupledResult, error) {
	c.logger.Info("decoupled authorisation started", slog.String("psu_id", psu.ID))
	if method != nil {
		return DecoupledResult{PsuMessage: "Please confirm the request with " + method.Name}, nil
	}
	return DecoupledResult{PsuMessage: "Please confirm the request in your banking app"}, nil
}

// VerifyScaAuthorisation compares the OTP with the hash stored on the authorisation.
func (c *BuiltinConnector) VerifyScaAuthorisation(
	_ context.Context,
	_ consentDomain.Consent,
	authorisation consentDomain.Authorisation,
	scaAuthenticationData string,
) (Outcome, error) {
	if authorisation.OtpHash == "" {
		return OutcomeFailure, nil
	}
	if !c.otps.Verify(scaAuthenticationData, authorisation.OtpHash) {
		return OutcomeAttemptFailure, nil
	}
	return OutcomeSuccess, nil
}

// CheckConfirmationCode compares code with the hash stored on the authorisation.
func (c *BuiltinConnector) CheckConfirmationCode(
	_ context.Context,
	_ consentDomain.Consent,
	authorisation consentDomain.Authorisation,
	code string,
) (bool, error) {
	return c.otps.Verify(code, authorisation.ConfirmationHash), nil
}

func (c *BuiltinConnector) logOtp(
	_ context.Context,
	psu consentDomain.PsuData,
	method consentDomain.ScaMethod,
	otp string,
) error {
	c.logger.Debug("otp generated",
		slog.String("psu_id", psu.ID),
		slog.String("method_id", method.ID),
		slog.String("otp", otp),
	)
	return nil
}

// oneFactor reports a one-off AIS consent for the list of available accounts,
// which needs no second factor.
func oneFactor(consent consentDomain.Consent) bool {
	access := consent.EffectiveAccess()
	return consent.Type == consentDomain.TypeAIS &&
		!consent.RecurringIndicator &&
		access.IsEmpty() &&
		access.AvailableAccounts != ""
}

func generateOtp() (string, error) {
	limit := big.NewInt(1_000_000)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", apperrors.Wrap(err, "failed to generate otp")
	}
	return fmt.Sprintf("%0*d", otpLength, n.Int64()), nil
}
