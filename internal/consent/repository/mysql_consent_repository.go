package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/allisson/consents/internal/consent/domain"
	"github.com/allisson/consents/internal/database"
	apperrors "github.com/allisson/consents/internal/errors"
)

// MySQLConsentRepository implements Consent persistence for MySQL.
// Uses BINARY(16) for UUID storage and JSON columns with transaction support
// via database.GetTx().
type MySQLConsentRepository struct {
	db *sql.DB
}

// Create inserts a new Consent and its authorisations at version 1.
func (m *MySQLConsentRepository) Create(ctx context.Context, consent *domain.Consent) error {
	querier := database.GetTx(ctx, m.db)

	row, err := encodeConsent(consent)
	if err != nil {
		return err
	}

	id, err := mysqlUUID(consent.ID)
	if err != nil {
		return err
	}

	query := `INSERT INTO consents (id, type, status, internal_request_id, tpp_id, recurring_indicator,
				frequency_per_day, valid_until, expire_date, usages, earliest_usage_date, psu_id_data,
				tpp_access, aspsp_access, data_provider_id, encrypted_data, legacy_data,
				multilevel_sca_required, signing_basket_blocked, signing_basket_authorised, payment,
				version, created_at, last_action_date)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`

	_, err = querier.ExecContext(
		ctx,
		query,
		id,
		consent.Type,
		consent.Status,
		row.internalRequestID,
		consent.TppID,
		consent.RecurringIndicator,
		consent.FrequencyPerDay,
		row.validUntil,
		row.expireDate,
		row.usages,
		row.earliestUsage,
		row.psuIDData,
		row.tppAccess,
		row.aspspAccess,
		row.dataProviderID,
		consent.EncryptedData.Ciphertext,
		consent.LegacyData,
		consent.MultilevelScaRequired,
		consent.SigningBasketBlocked,
		consent.SigningBasketAuthorised,
		row.payment,
		consent.CreatedAt,
		row.lastActionDate,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create consent")
	}

	if err := m.upsertAuthorisations(ctx, consent.Authorisations); err != nil {
		return err
	}

	consent.Version = 1
	return nil
}

// Save writes consent if the stored version still equals expectedVersion and
// upserts its authorisations. Returns domain.ErrConcurrentModification otherwise.
func (m *MySQLConsentRepository) Save(ctx context.Context, consent *domain.Consent, expectedVersion int64) error {
	querier := database.GetTx(ctx, m.db)

	row, err := encodeConsent(consent)
	if err != nil {
		return err
	}

	id, err := mysqlUUID(consent.ID)
	if err != nil {
		return err
	}

	query := `UPDATE consents
			  SET status = ?,
				  internal_request_id = ?,
				  valid_until = ?,
				  expire_date = ?,
				  usages = ?,
				  earliest_usage_date = ?,
				  psu_id_data = ?,
				  tpp_access = ?,
				  aspsp_access = ?,
				  data_provider_id = ?,
				  encrypted_data = ?,
				  legacy_data = ?,
				  multilevel_sca_required = ?,
				  signing_basket_blocked = ?,
				  signing_basket_authorised = ?,
				  payment = ?,
				  last_action_date = ?,
				  version = version + 1
			  WHERE id = ? AND version = ?`

	result, err := querier.ExecContext(
		ctx,
		query,
		consent.Status,
		row.internalRequestID,
		row.validUntil,
		row.expireDate,
		row.usages,
		row.earliestUsage,
		row.psuIDData,
		row.tppAccess,
		row.aspspAccess,
		row.dataProviderID,
		consent.EncryptedData.Ciphertext,
		consent.LegacyData,
		consent.MultilevelScaRequired,
		consent.SigningBasketBlocked,
		consent.SigningBasketAuthorised,
		row.payment,
		row.lastActionDate,
		id,
		expectedVersion,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to save consent")
	}

	// MySQL reports matched rows only with CLIENT_FOUND_ROWS, but the version
	// bump guarantees a changed row whenever the WHERE clause matched.
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return domain.ErrConcurrentModification
	}

	if err := m.upsertAuthorisations(ctx, consent.Authorisations); err != nil {
		return err
	}

	consent.Version = expectedVersion + 1
	return nil
}

// Get retrieves a Consent with its authorisations.
func (m *MySQLConsentRepository) Get(ctx context.Context, consentID uuid.UUID) (*domain.Consent, error) {
	id, err := mysqlUUID(consentID)
	if err != nil {
		return nil, err
	}
	return m.getOne(ctx, `WHERE id = ?`, id)
}

// GetByAuthorisationID retrieves the Consent owning the given authorisation.
func (m *MySQLConsentRepository) GetByAuthorisationID(
	ctx context.Context,
	authorisationID uuid.UUID,
) (*domain.Consent, error) {
	id, err := mysqlUUID(authorisationID)
	if err != nil {
		return nil, err
	}
	return m.getOne(ctx, `WHERE id = (SELECT consent_id FROM authorisations WHERE id = ?)`, id)
}

// GetByInternalRequestID retrieves a Consent by its internal request id.
func (m *MySQLConsentRepository) GetByInternalRequestID(
	ctx context.Context,
	internalRequestID string,
) (*domain.Consent, error) {
	return m.getOne(ctx, `WHERE internal_request_id = ?`, internalRequestID)
}

// FindExpirable returns the candidates of an expiry sweep, oldest first.
func (m *MySQLConsentRepository) FindExpirable(
	ctx context.Context,
	criteria domain.ExpirableCriteria,
) ([]*domain.Consent, error) {
	var where string
	var arg any
	switch criteria.Kind {
	case domain.ExpirableUsedNonRecurring:
		where = `WHERE recurring_indicator = FALSE AND status IN ('RECEIVED', 'VALID') AND earliest_usage_date < ?`
		arg = domain.Day(criteria.Today)
	case domain.ExpirableUnconfirmed:
		where = `WHERE status = 'RECEIVED' AND created_at < ?`
		arg = criteria.CreatedBefore
	default:
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("unknown expirable kind %q", criteria.Kind))
	}

	where += ` ORDER BY created_at ASC`
	if criteria.Limit > 0 {
		where += fmt.Sprintf(` LIMIT %d`, criteria.Limit)
	}

	return m.getMany(ctx, where, arg)
}

// FindActiveByTpp returns the RECEIVED and VALID AIS consents of a TPP.
func (m *MySQLConsentRepository) FindActiveByTpp(ctx context.Context, tppID string) ([]*domain.Consent, error) {
	return m.getMany(
		ctx,
		`WHERE tpp_id = ? AND type = 'AIS' AND status IN ('RECEIVED', 'VALID') ORDER BY created_at ASC`,
		tppID,
	)
}

func (m *MySQLConsentRepository) getOne(ctx context.Context, where string, arg any) (*domain.Consent, error) {
	querier := database.GetTx(ctx, m.db)

	consent, err := scanConsent(querier.QueryRowContext(ctx, `SELECT `+consentColumns+` FROM consents `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConsentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get consent")
	}

	if consent.Authorisations, err = m.listAuthorisations(ctx, consent.ID); err != nil {
		return nil, err
	}
	return consent, nil
}

func (m *MySQLConsentRepository) getMany(ctx context.Context, where string, arg any) ([]*domain.Consent, error) {
	querier := database.GetTx(ctx, m.db)

	rows, err := querier.QueryContext(ctx, `SELECT `+consentColumns+` FROM consents `+where, arg)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list consents")
	}
	defer func() {
		_ = rows.Close()
	}()

	var consents []*domain.Consent
	for rows.Next() {
		consent, err := scanConsent(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan consent")
		}
		consents = append(consents, consent)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate consents")
	}

	for _, consent := range consents {
		if consent.Authorisations, err = m.listAuthorisations(ctx, consent.ID); err != nil {
			return nil, err
		}
	}
	return consents, nil
}

func (m *MySQLConsentRepository) listAuthorisations(
	ctx context.Context,
	consentID uuid.UUID,
) ([]domain.Authorisation, error) {
	querier := database.GetTx(ctx, m.db)

	id, err := mysqlUUID(consentID)
	if err != nil {
		return nil, err
	}

	rows, err := querier.QueryContext(
		ctx,
		`SELECT `+authorisationColumns+` FROM authorisations WHERE consent_id = ? ORDER BY created_at ASC`,
		id,
	)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list authorisations")
	}
	defer func() {
		_ = rows.Close()
	}()

	var authorisations []domain.Authorisation
	for rows.Next() {
		a, err := scanAuthorisation(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan authorisation")
		}
		authorisations = append(authorisations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate authorisations")
	}
	return authorisations, nil
}

func (m *MySQLConsentRepository) upsertAuthorisations(
	ctx context.Context,
	authorisations []domain.Authorisation,
) error {
	querier := database.GetTx(ctx, m.db)

	query := `INSERT INTO authorisations (id, consent_id, type, sca_status, sca_approach, psu_data,
				chosen_sca_method, available_sca_methods, challenge_data, otp_hash, confirmation_hash,
				failed_attempts, last_request_fingerprint, redirect_url_expires_at, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			  ON DUPLICATE KEY UPDATE
				  sca_status = VALUES(sca_status),
				  sca_approach = VALUES(sca_approach),
				  psu_data = VALUES(psu_data),
				  chosen_sca_method = VALUES(chosen_sca_method),
				  available_sca_methods = VALUES(available_sca_methods),
				  challenge_data = VALUES(challenge_data),
				  otp_hash = VALUES(otp_hash),
				  confirmation_hash = VALUES(confirmation_hash),
				  failed_attempts = VALUES(failed_attempts),
				  last_request_fingerprint = VALUES(last_request_fingerprint),
				  redirect_url_expires_at = VALUES(redirect_url_expires_at),
				  updated_at = VALUES(updated_at)`

	for i := range authorisations {
		a := &authorisations[i]
		row, err := encodeAuthorisation(a)
		if err != nil {
			return err
		}

		id, err := mysqlUUID(a.ID)
		if err != nil {
			return err
		}
		consentID, err := mysqlUUID(a.ConsentID)
		if err != nil {
			return err
		}

		_, err = querier.ExecContext(
			ctx,
			query,
			id,
			consentID,
			a.Type,
			a.ScaStatus,
			a.ScaApproach,
			row.psuData,
			row.chosenScaMethod,
			row.availableScaMethods,
			row.challengeData,
			a.OtpHash,
			a.ConfirmationHash,
			a.FailedAttempts,
			a.LastRequestFingerprint,
			row.redirectURLExpiresAt,
			a.CreatedAt,
			a.UpdatedAt,
		)
		if err != nil {
			return apperrors.Wrap(err, "failed to save authorisation")
		}
	}
	return nil
}

// NewMySQLConsentRepository creates a new MySQL Consent repository.
func NewMySQLConsentRepository(db *sql.DB) *MySQLConsentRepository {
	return &MySQLConsentRepository{db: db}
}
