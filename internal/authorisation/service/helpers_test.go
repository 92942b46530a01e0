package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	consentDomain "github.com/allisson/consents/internal/consent/domain"
)

var testNow = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// plainHasher is a fast ScaSecretHasher for tests.
type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) { return "h:" + secret, nil }

func (plainHasher) Verify(secret, hash string) bool { return secret != "" && hash == "h:"+secret }

// mockConnector is a testify mock of AspspConnector.
type mockConnector struct {
	mock.Mock
}

func (m *mockConnector) AuthorisePsu(
	ctx context.Context,
	consent consentDomain.Consent,
	psu consentDomain.PsuData,
	password string,
) (PsuAuthorisationResult, error) {
	args := m.Called(ctx, consent, psu, password)
	return args.Get(0).(PsuAuthorisationResult), args.Error(1)
}

func (m *mockConnector) RequestAvailableScaMethods(
	ctx context.Context,
	consent consentDomain.Consent,
	psu consentDomain.PsuData,
) ([]consentDomain.ScaMethod, error) {
	args := m.Called(ctx, consent, psu)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]consentDomain.ScaMethod), args.Error(1)
}

func (m *mockConnector) RequestAuthorisationCode(
	ctx context.Context,
	consent consentDomain.Consent,
	psu consentDomain.PsuData,
	method consentDomain.ScaMethod,
) (AuthorisationCodeResult, error) {
	args := m.Called(ctx, consent, psu, method)
	return args.Get(0).(AuthorisationCodeResult), args.Error(1)
}

func (m *mockConnector) StartDecoupled(
	ctx context.Context,
	consent consentDomain.Consent,
	psu consentDomain.PsuData,
	method *consentDomain.ScaMethod,
) (DecoupledResult, error) {
	args := m.Called(ctx, consent, psu, method)
	return args.Get(0).(DecoupledResult), args.Error(1)
}

func (m *mockConnector) VerifyScaAuthorisation(
	ctx context.Context,
	consent consentDomain.Consent,
	authorisation consentDomain.Authorisation,
	scaAuthenticationData string,
) (Outcome, error) {
	args := m.Called(ctx, consent, authorisation, scaAuthenticationData)
	return args.Get(0).(Outcome), args.Error(1)
}

func (m *mockConnector) CheckConfirmationCode(
	ctx context.Context,
	consent consentDomain.Consent,
	authorisation consentDomain.Authorisation,
	code string,
) (bool, error) {
	args := m.Called(ctx, consent, authorisation, code)
	return args.Bool(0), args.Error(1)
}

func newTestProcessor(t *testing.T, cfg ProcessorConfig) (*Processor, *mockConnector) {
	t.Helper()

	fingerprinter, err := NewRequestFingerprinter([]byte("fingerprint-secret"))
	require.NoError(t, err)

	if cfg.Now == nil {
		cfg.Now = func() time.Time { return testNow }
	}
	connector := &mockConnector{}
	p, err := NewProcessor(
		connector,
		plainHasher{},
		fingerprinter,
		NewLinkBuilder("https://api.example.com", "https://bank.example.com/sca/{redirect-id}"),
		cfg,
		discardLogger(),
	)
	require.NoError(t, err)
	return p, connector
}

func testConsent() consentDomain.Consent {
	return consentDomain.Consent{
		ID:              uuid.New(),
		Type:            consentDomain.TypeAIS,
		Status:          consentDomain.StatusReceived,
		TppID:           "tpp",
		FrequencyPerDay: 4,
		PsuIDDataList:   []consentDomain.PsuData{{ID: "psu-1"}},
		CreatedAt:       testNow,
	}
}

func testAuthorisation(approach consentDomain.ScaApproach, status consentDomain.ScaStatus) consentDomain.Authorisation {
	return consentDomain.Authorisation{
		ID:          uuid.New(),
		Type:        consentDomain.AuthorisationConsent,
		ScaStatus:   status,
		ScaApproach: approach,
		CreatedAt:   testNow,
	}
}

var (
	smsMethod  = consentDomain.ScaMethod{ID: "sms", Type: "SMS_OTP", Name: "SMS"}
	pushMethod = consentDomain.ScaMethod{ID: "push", Type: "PUSH_OTP", Name: "App", Decoupled: true}
)
