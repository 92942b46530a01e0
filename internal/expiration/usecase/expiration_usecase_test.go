package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/allisson/consents/internal/consent/domain"
	"github.com/allisson/consents/internal/consent/repository"
	apperrors "github.com/allisson/consents/internal/errors"
)

type inlineTxManager struct{}

func (inlineTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

func (m *mockBusinessMetrics) RecordStatusTransition(ctx context.Context, domain, from, to string) {
	m.Called(ctx, domain, from, to)
}

var testNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func newTestUseCase(repo ConsentRepository) *ExpirationUseCase {
	return NewExpirationUseCase(
		Config{
			Interval:               10 * time.Millisecond,
			NotConfirmedExpiration: 24 * time.Hour,
			Now:                    func() time.Time { return testNow },
		},
		inlineTxManager{},
		repo,
		nil,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
}

func seed(t *testing.T, repo *repository.InMemoryConsentRepository, mutate func(c *domain.Consent)) domain.Consent {
	t.Helper()
	consent := domain.Consent{
		ID:                 uuid.New(),
		Type:               domain.TypeAIS,
		Status:             domain.StatusValid,
		TppID:              "tpp",
		PsuIDDataList:      []domain.PsuData{{ID: "psu-1"}},
		RecurringIndicator: true,
		FrequencyPerDay:    4,
		Usages:             map[string]int{},
		CreatedAt:          testNow.Add(-2 * time.Hour),
		LastActionDate:     domain.Day(testNow),
	}
	if mutate != nil {
		mutate(&consent)
	}
	require.NoError(t, repo.Create(context.Background(), &consent))
	return consent
}

func usedYesterday(c *domain.Consent) {
	c.RecurringIndicator = false
	c.FrequencyPerDay = 1
	c.Usages = map[string]int{domain.Day(testNow).AddDate(0, 0, -1).Format(domain.DateLayout): 1}
}

func unconfirmed(c *domain.Consent) {
	c.Status = domain.StatusReceived
	c.CreatedAt = testNow.Add(-25 * time.Hour)
	c.Authorisations = []domain.Authorisation{{
		ID:          uuid.New(),
		ConsentID:   c.ID,
		Type:        domain.AuthorisationConsent,
		ScaStatus:   domain.ScaStarted,
		ScaApproach: domain.ScaApproachRedirect,
		PsuData:     domain.PsuData{ID: "psu-1"},
	}}
}

func status(t *testing.T, repo *repository.InMemoryConsentRepository, id uuid.UUID) domain.Status {
	t.Helper()
	c, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	return c.Status
}

func TestExpirationUseCase_ExpireUsedNonRecurring(t *testing.T) {
	repo := repository.NewInMemoryConsentRepository()
	used := seed(t, repo, usedYesterday)
	usedToday := seed(t, repo, func(c *domain.Consent) {
		c.RecurringIndicator = false
		c.Usages = map[string]int{domain.Day(testNow).Format(domain.DateLayout): 1}
	})
	recurring := seed(t, repo, func(c *domain.Consent) {
		c.Usages = map[string]int{domain.Day(testNow).AddDate(0, 0, -1).Format(domain.DateLayout): 3}
	})

	result, err := newTestUseCase(repo).ExpireUsedNonRecurring(context.Background())

	require.NoError(t, err)
	assert.Equal(t, SweepResult{Kind: domain.ExpirableUsedNonRecurring, Candidates: 1, Expired: 1}, result)
	assert.Equal(t, domain.StatusExpired, status(t, repo, used.ID))
	assert.Equal(t, domain.StatusValid, status(t, repo, usedToday.ID))
	assert.Equal(t, domain.StatusValid, status(t, repo, recurring.ID))
}

func TestExpirationUseCase_ExpireUnconfirmed(t *testing.T) {
	repo := repository.NewInMemoryConsentRepository()
	stale := seed(t, repo, unconfirmed)
	fresh := seed(t, repo, func(c *domain.Consent) {
		c.Status = domain.StatusReceived
		c.CreatedAt = testNow.Add(-time.Hour)
	})

	result, err := newTestUseCase(repo).ExpireUnconfirmed(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)

	stored, err := repo.Get(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, stored.Status)
	assert.Equal(t, domain.ScaFailed, stored.Authorisations[0].ScaStatus)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, domain.StatusReceived, status(t, repo, fresh.ID))
}

func TestExpirationUseCase_ExpireUnconfirmedDisabled(t *testing.T) {
	repo := repository.NewInMemoryConsentRepository()
	stale := seed(t, repo, unconfirmed)

	uc := newTestUseCase(repo)
	uc.config.NotConfirmedExpiration = 0

	result, err := uc.ExpireUnconfirmed(context.Background())

	require.NoError(t, err)
	assert.Zero(t, result.Candidates)
	assert.Equal(t, domain.StatusReceived, status(t, repo, stale.ID))
}

func TestExpirationUseCase_BatchSize(t *testing.T) {
	repo := repository.NewInMemoryConsentRepository()
	for range 3 {
		seed(t, repo, usedYesterday)
	}

	uc := newTestUseCase(repo)
	uc.config.BatchSize = 2

	result, err := uc.ExpireUsedNonRecurring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Expired)

	result, err = uc.ExpireUsedNonRecurring(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Expired)
}

func TestExpirationUseCase_SkipsConcurrentlyModified(t *testing.T) {
	repo := repository.NewInMemoryConsentRepository()
	first := seed(t, repo, usedYesterday)
	second := seed(t, repo, func(c *domain.Consent) {
		usedYesterday(c)
		c.CreatedAt = c.CreatedAt.Add(time.Minute)
	})

	// A PSU revokes the first consent between the query and the write.
	repo.BeforeSave = func(ctx context.Context, consent *domain.Consent) error {
		if consent.ID != first.ID || consent.Status != domain.StatusExpired {
			return nil
		}
		current, err := repo.Get(ctx, first.ID)
		require.NoError(t, err)
		revoked := current.WithStatus(domain.StatusRevokedByPsu, testNow)
		repo.BeforeSave = nil
		return repo.Save(ctx, &revoked, current.Version)
	}

	result, err := newTestUseCase(repo).ExpireUsedNonRecurring(context.Background())

	require.NoError(t, err)
	assert.Equal(t, SweepResult{Kind: domain.ExpirableUsedNonRecurring, Candidates: 2, Expired: 1, Skipped: 1}, result)
	assert.Equal(t, domain.StatusRevokedByPsu, status(t, repo, first.ID))
	assert.Equal(t, domain.StatusExpired, status(t, repo, second.ID))
}

func TestExpirationUseCase_StorageErrorKeepsProgress(t *testing.T) {
	repo := repository.NewInMemoryConsentRepository()
	first := seed(t, repo, usedYesterday)
	second := seed(t, repo, func(c *domain.Consent) {
		usedYesterday(c)
		c.CreatedAt = c.CreatedAt.Add(time.Minute)
	})
	third := seed(t, repo, func(c *domain.Consent) {
		usedYesterday(c)
		c.CreatedAt = c.CreatedAt.Add(2 * time.Minute)
	})

	storageErr := errors.New("connection reset")
	repo.BeforeSave = func(_ context.Context, consent *domain.Consent) error {
		if consent.ID == second.ID {
			return storageErr
		}
		return nil
	}

	result, err := newTestUseCase(repo).ExpireUsedNonRecurring(context.Background())

	require.ErrorIs(t, err, storageErr)
	assert.Equal(t, 1, result.Expired)
	assert.Equal(t, domain.StatusExpired, status(t, repo, first.ID))
	assert.Equal(t, domain.StatusValid, status(t, repo, second.ID))
	assert.Equal(t, domain.StatusValid, status(t, repo, third.ID))
}

func TestExpirationUseCase_RunOnce(t *testing.T) {
	repo := repository.NewInMemoryConsentRepository()
	used := seed(t, repo, usedYesterday)
	stale := seed(t, repo, unconfirmed)

	businessMetrics := &mockBusinessMetrics{}
	for _, op := range []string{"expire_used_non_recurring", "expire_unconfirmed"} {
		businessMetrics.On("RecordOperation", mock.Anything, "expiration", op, "success").Once()
		businessMetrics.On("RecordDuration", mock.Anything, "expiration", op, mock.Anything, "success").Once()
	}
	businessMetrics.On("RecordStatusTransition", mock.Anything, "expiration", "VALID", "EXPIRED").Once()
	businessMetrics.On("RecordStatusTransition", mock.Anything, "expiration", "RECEIVED", "EXPIRED").Once()

	uc := newTestUseCase(repo)
	uc.metrics = businessMetrics

	results, err := uc.RunOnce(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Expired)
	assert.Equal(t, 1, results[1].Expired)
	assert.Equal(t, domain.StatusExpired, status(t, repo, used.ID))
	assert.Equal(t, domain.StatusExpired, status(t, repo, stale.ID))
	businessMetrics.AssertExpectations(t)
}

func TestExpirationUseCase_RunOnceContinuesAfterFailedSweep(t *testing.T) {
	repo := repository.NewInMemoryConsentRepository()
	used := seed(t, repo, usedYesterday)
	stale := seed(t, repo, unconfirmed)

	storageErr := errors.New("disk full")
	repo.BeforeSave = func(_ context.Context, consent *domain.Consent) error {
		if consent.ID == used.ID {
			return storageErr
		}
		return nil
	}

	results, err := newTestUseCase(repo).RunOnce(context.Background())

	require.ErrorIs(t, err, storageErr)
	assert.Equal(t, 0, results[0].Expired)
	assert.Equal(t, 1, results[1].Expired)
	assert.Equal(t, domain.StatusExpired, status(t, repo, stale.ID))
}

func TestExpirationUseCase_Preview(t *testing.T) {
	repo := repository.NewInMemoryConsentRepository()
	used := seed(t, repo, usedYesterday)
	stale := seed(t, repo, unconfirmed)

	results, err := newTestUseCase(repo).Preview(context.Background())

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Expired)
	assert.Equal(t, 1, results[1].Expired)
	assert.Equal(t, domain.StatusValid, status(t, repo, used.ID))
	assert.Equal(t, domain.StatusReceived, status(t, repo, stale.ID))
}

func TestExpirationUseCase_Start(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := repository.NewInMemoryConsentRepository()
	used := seed(t, repo, usedYesterday)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- newTestUseCase(repo).Start(ctx)
	}()

	assert.Eventually(t, func() bool {
		c, err := repo.Get(context.Background(), used.ID)
		return err == nil && c.Status == domain.StatusExpired
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancellation")
	}
}

func TestExpirationUseCase_StartRejectsNonPositiveInterval(t *testing.T) {
	defer goleak.VerifyNone(t)

	for _, interval := range []time.Duration{0, -time.Second} {
		uc := newTestUseCase(repository.NewInMemoryConsentRepository())
		uc.config.Interval = interval

		err := uc.Start(context.Background())

		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
}
