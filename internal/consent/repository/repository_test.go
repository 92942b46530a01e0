package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/consents/internal/consent/domain"
	apperrors "github.com/allisson/consents/internal/errors"
)

var (
	consentColumnNames = []string{
		"id", "type", "status", "internal_request_id", "tpp_id", "recurring_indicator",
		"frequency_per_day", "valid_until", "expire_date", "usages", "psu_id_data", "tpp_access",
		"aspsp_access", "data_provider_id", "encrypted_data", "legacy_data", "multilevel_sca_required",
		"signing_basket_blocked", "signing_basket_authorised", "payment", "version", "created_at",
		"last_action_date",
	}
	authorisationColumnNames = []string{
		"id", "consent_id", "type", "sca_status", "sca_approach", "psu_data", "chosen_sca_method",
		"available_sca_methods", "challenge_data", "otp_hash", "confirmation_hash", "failed_attempts",
		"last_request_fingerprint", "redirect_url_expires_at", "created_at", "updated_at",
	}
	createdAt = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
)

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func testConsent() *domain.Consent {
	id := uuid.Must(uuid.NewV7())
	return &domain.Consent{
		ID:              id,
		Type:            domain.TypeAIS,
		Status:          domain.StatusReceived,
		TppID:           "PSDDE-BAFIN-123456",
		FrequencyPerDay: 4,
		ValidUntil:      time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Usages:          map[string]int{"2026-03-10": 1},
		PsuIDDataList:   []domain.PsuData{{ID: "psu-1"}},
		EncryptedData:   domain.EncryptedData{ProviderID: "gcm-v1", Ciphertext: []byte{1, 2, 3}},
		Authorisations: []domain.Authorisation{{
			ID:          uuid.Must(uuid.NewV7()),
			ConsentID:   id,
			Type:        domain.AuthorisationConsent,
			ScaStatus:   domain.ScaReceived,
			ScaApproach: domain.ScaApproachEmbedded,
			CreatedAt:   createdAt,
			UpdatedAt:   createdAt,
		}},
		Version:   3,
		CreatedAt: createdAt,
	}
}

func consentRowValues(c *domain.Consent) []driver.Value {
	return []driver.Value{
		c.ID.String(), string(c.Type), string(c.Status), nil, c.TppID, c.RecurringIndicator,
		int64(c.FrequencyPerDay), c.ValidUntil, nil, []byte(`{"2026-03-10":1}`), []byte(`[{"psuId":"psu-1"}]`),
		[]byte(`{"accounts":["DE89370400440532013000"]}`), []byte(`{}`), c.EncryptedData.ProviderID,
		c.EncryptedData.Ciphertext, nil, false, false, false, nil, c.Version, c.CreatedAt, nil,
	}
}

func authorisationRowValues(a domain.Authorisation) []driver.Value {
	return []driver.Value{
		a.ID.String(), a.ConsentID.String(), string(a.Type), string(a.ScaStatus), string(a.ScaApproach),
		[]byte(`{"psuId":"psu-1"}`), []byte(`{"authenticationMethodId":"sms","authenticationType":"SMS_OTP"}`),
		[]byte(`[{"authenticationMethodId":"sms","authenticationType":"SMS_OTP"}]`), nil, "", "", int64(1), "",
		nil, a.CreatedAt, a.UpdatedAt,
	}
}

func TestPostgreSQLConsentRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLConsentRepository(db)
	consent := testConsent()

	mock.ExpectExec("INSERT INTO consents").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO authorisations").WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), consent))
	assert.Equal(t, int64(1), consent.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLConsentRepository_Save(t *testing.T) {
	t.Run("success advances version", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLConsentRepository(db)
		consent := testConsent()

		mock.ExpectExec("UPDATE consents").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), consent.ID, int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO authorisations (.+) ON CONFLICT").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), consent, 3))
		assert.Equal(t, int64(4), consent.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLConsentRepository(db)
		consent := testConsent()

		mock.ExpectExec("UPDATE consents").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Save(context.Background(), consent, 3)
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
		assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
		assert.Equal(t, int64(3), consent.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLConsentRepository(db)

		mock.ExpectExec("UPDATE consents").WillReturnError(errors.New("connection reset"))

		err := repo.Save(context.Background(), testConsent(), 3)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrConcurrentModification)
		assert.Contains(t, err.Error(), "failed to save consent")
	})
}

func TestPostgreSQLConsentRepository_Get(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLConsentRepository(db)
	consent := testConsent()
	auth := consent.Authorisations[0]

	mock.ExpectQuery("SELECT (.+) FROM consents WHERE id = \\$1").
		WithArgs(consent.ID).
		WillReturnRows(sqlmock.NewRows(consentColumnNames).AddRow(consentRowValues(consent)...))
	mock.ExpectQuery("SELECT (.+) FROM authorisations WHERE consent_id = \\$1").
		WithArgs(consent.ID).
		WillReturnRows(sqlmock.NewRows(authorisationColumnNames).AddRow(authorisationRowValues(auth)...))

	got, err := repo.Get(context.Background(), consent.ID)
	require.NoError(t, err)

	assert.Equal(t, consent.ID, got.ID)
	assert.Equal(t, domain.TypeAIS, got.Type)
	assert.Equal(t, domain.StatusReceived, got.Status)
	assert.Equal(t, map[string]int{"2026-03-10": 1}, got.Usages)
	assert.Equal(t, []domain.PsuData{{ID: "psu-1"}}, got.PsuIDDataList)
	assert.Equal(t, []string{"DE89370400440532013000"}, got.TppAccess.Accounts)
	assert.Equal(t, consent.EncryptedData, got.EncryptedData)
	assert.Nil(t, got.Payment)
	assert.True(t, got.ExpireDate.IsZero())
	assert.Equal(t, int64(3), got.Version)

	require.Len(t, got.Authorisations, 1)
	assert.Equal(t, auth.ID, got.Authorisations[0].ID)
	assert.Equal(t, domain.ScaApproachEmbedded, got.Authorisations[0].ScaApproach)
	require.NotNil(t, got.Authorisations[0].ChosenScaMethod)
	assert.Equal(t, "sms", got.Authorisations[0].ChosenScaMethod.ID)
	assert.Len(t, got.Authorisations[0].AvailableScaMethods, 1)
	assert.Nil(t, got.Authorisations[0].ChallengeData)
	assert.Equal(t, 1, got.Authorisations[0].FailedAttempts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgreSQLConsentRepository_GetNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgreSQLConsentRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM consents").WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrConsentNotFound)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestPostgreSQLConsentRepository_FindExpirable(t *testing.T) {
	ctx := context.Background()
	today := time.Date(2026, 3, 11, 15, 0, 0, 0, time.UTC)

	t.Run("used non recurring with limit", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLConsentRepository(db)

		mock.ExpectQuery("recurring_indicator = FALSE (.+) earliest_usage_date < \\$1 ORDER BY created_at ASC LIMIT 10").
			WithArgs(domain.Day(today)).
			WillReturnRows(sqlmock.NewRows(consentColumnNames))

		consents, err := repo.FindExpirable(ctx, domain.ExpirableCriteria{
			Kind:  domain.ExpirableUsedNonRecurring,
			Today: today,
			Limit: 10,
		})
		require.NoError(t, err)
		assert.Empty(t, consents)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unconfirmed loads authorisations", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewPostgreSQLConsentRepository(db)
		consent := testConsent()
		cutoff := today.Add(-24 * time.Hour)

		mock.ExpectQuery("status = 'RECEIVED' AND created_at < \\$1 ORDER BY created_at ASC$").
			WithArgs(cutoff).
			WillReturnRows(sqlmock.NewRows(consentColumnNames).AddRow(consentRowValues(consent)...))
		mock.ExpectQuery("FROM authorisations").
			WillReturnRows(sqlmock.NewRows(authorisationColumnNames))

		consents, err := repo.FindExpirable(ctx, domain.ExpirableCriteria{
			Kind:          domain.ExpirableUnconfirmed,
			CreatedBefore: cutoff,
		})
		require.NoError(t, err)
		require.Len(t, consents, 1)
		assert.Equal(t, consent.ID, consents[0].ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown kind", func(t *testing.T) {
		db, _ := newMockDB(t)
		_, err := NewPostgreSQLConsentRepository(db).FindExpirable(ctx, domain.ExpirableCriteria{Kind: "nope"})
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})
}

func TestMySQLConsentRepository_Save(t *testing.T) {
	t.Run("binary uuid and upsert", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLConsentRepository(db)
		consent := testConsent()
		id, err := consent.ID.MarshalBinary()
		require.NoError(t, err)

		mock.ExpectExec("UPDATE consents (.+) WHERE id = \\? AND version = \\?").
			WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
				sqlmock.AnyArg(), sqlmock.AnyArg(), id, int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO authorisations (.+) ON DUPLICATE KEY UPDATE").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.Save(context.Background(), consent, 3))
		assert.Equal(t, int64(4), consent.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		db, mock := newMockDB(t)
		repo := NewMySQLConsentRepository(db)

		mock.ExpectExec("UPDATE consents").WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Save(context.Background(), testConsent(), 3)
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMySQLConsentRepository_GetByAuthorisationID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMySQLConsentRepository(db)
	consent := testConsent()
	auth := consent.Authorisations[0]

	authID, err := auth.ID.MarshalBinary()
	require.NoError(t, err)
	consentID, err := consent.ID.MarshalBinary()
	require.NoError(t, err)

	rowValues := consentRowValues(consent)
	rowValues[0] = consentID
	authValues := authorisationRowValues(auth)
	authValues[0], _ = auth.ID.MarshalBinary()
	authValues[1] = consentID

	mock.ExpectQuery("FROM consents WHERE id = \\(SELECT consent_id FROM authorisations WHERE id = \\?\\)").
		WithArgs(authID).
		WillReturnRows(sqlmock.NewRows(consentColumnNames).AddRow(rowValues...))
	mock.ExpectQuery("FROM authorisations WHERE consent_id = \\?").
		WithArgs(consentID).
		WillReturnRows(sqlmock.NewRows(authorisationColumnNames).AddRow(authValues...))

	got, err := repo.GetByAuthorisationID(context.Background(), auth.ID)
	require.NoError(t, err)
	assert.Equal(t, consent.ID, got.ID)
	require.Len(t, got.Authorisations, 1)
	assert.Equal(t, auth.ID, got.Authorisations[0].ID)
	assert.Equal(t, consent.ID, got.Authorisations[0].ConsentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInMemoryConsentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryConsentRepository()
	consent := testConsent()

	require.NoError(t, repo.Create(ctx, consent))
	assert.Equal(t, int64(1), consent.Version)
	assert.ErrorIs(t, repo.Create(ctx, consent), apperrors.ErrConflict)

	loaded, err := repo.GetByAuthorisationID(ctx, consent.Authorisations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, consent.ID, loaded.ID)

	// the stored copy is isolated from the caller
	loaded.Usages["2026-03-10"] = 99
	again, err := repo.Get(ctx, consent.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Usages["2026-03-10"])

	loaded.Status = domain.StatusValid
	require.NoError(t, repo.Save(ctx, loaded, 1))
	assert.Equal(t, int64(2), loaded.Version)

	stale := *again
	stale.Status = domain.StatusRejected
	assert.ErrorIs(t, repo.Save(ctx, &stale, 1), domain.ErrConcurrentModification)

	active, err := repo.FindActiveByTpp(ctx, consent.TppID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, domain.StatusValid, active[0].Status)

	expirable, err := repo.FindExpirable(ctx, domain.ExpirableCriteria{
		Kind:  domain.ExpirableUsedNonRecurring,
		Today: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Len(t, expirable, 1)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrConsentNotFound)
}
