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

// PostgreSQLConsentRepository implements Consent persistence for PostgreSQL.
// Uses native UUID and JSONB types with transaction support via database.GetTx().
type PostgreSQLConsentRepository struct {
	db *sql.DB
}

// Create inserts a new Consent and its authorisations at version 1.
func (p *PostgreSQLConsentRepository) Create(ctx context.Context, consent *domain.Consent) error {
	querier := database.GetTx(ctx, p.db)

	row, err := encodeConsent(consent)
	if err != nil {
		return err
	}

	query := `INSERT INTO consents (id, type, status, internal_request_id, tpp_id, recurring_indicator,
				frequency_per_day, valid_until, expire_date, usages, earliest_usage_date, psu_id_data,
				tpp_access, aspsp_access, data_provider_id, encrypted_data, legacy_data,
				multilevel_sca_required, signing_basket_blocked, signing_basket_authorised, payment,
				version, created_at, last_action_date)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
				$18, $19, $20, $21, 1, $22, $23)`

	_, err = querier.ExecContext(
		ctx,
		query,
		consent.ID,
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

	if err := p.upsertAuthorisations(ctx, consent.Authorisations); err != nil {
		return err
	}

	consent.Version = 1
	return nil
}

// Save writes consent if the stored version still equals expectedVersion and
// upserts its authorisations. On success consent.Version is advanced.
// Returns domain.ErrConcurrentModification when the version moved on.
func (p *PostgreSQLConsentRepository) Save(
	ctx context.Context,
	consent *domain.Consent,
	expectedVersion int64,
) error {
	querier := database.GetTx(ctx, p.db)

	row, err := encodeConsent(consent)
	if err != nil {
		return err
	}

	query := `UPDATE consents
			  SET status = $1,
				  internal_request_id = $2,
				  valid_until = $3,
				  expire_date = $4,
				  usages = $5,
				  earliest_usage_date = $6,
				  psu_id_data = $7,
				  tpp_access = $8,
				  aspsp_access = $9,
				  data_provider_id = $10,
				  encrypted_data = $11,
				  legacy_data = $12,
				  multilevel_sca_required = $13,
				  signing_basket_blocked = $14,
				  signing_basket_authorised = $15,
				  payment = $16,
				  last_action_date = $17,
				  version = version + 1
			  WHERE id = $18 AND version = $19`

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
		consent.ID,
		expectedVersion,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to save consent")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return domain.ErrConcurrentModification
	}

	if err := p.upsertAuthorisations(ctx, consent.Authorisations); err != nil {
		return err
	}

	consent.Version = expectedVersion + 1
	return nil
}

// Get retrieves a Consent with its authorisations.
func (p *PostgreSQLConsentRepository) Get(ctx context.Context, consentID uuid.UUID) (*domain.Consent, error) {
	return p.getOne(ctx, `WHERE id = $1`, consentID)
}

// GetByAuthorisationID retrieves the Consent owning the given authorisation.
func (p *PostgreSQLConsentRepository) GetByAuthorisationID(
	ctx context.Context,
	authorisationID uuid.UUID,
) (*domain.Consent, error) {
	return p.getOne(ctx, `WHERE id = (SELECT consent_id FROM authorisations WHERE id = $1)`, authorisationID)
}

// GetByInternalRequestID retrieves a Consent by its internal request id.
func (p *PostgreSQLConsentRepository) GetByInternalRequestID(
	ctx context.Context,
	internalRequestID string,
) (*domain.Consent, error) {
	return p.getOne(ctx, `WHERE internal_request_id = $1`, internalRequestID)
}

// FindExpirable returns the candidates of an expiry sweep, oldest first.
func (p *PostgreSQLConsentRepository) FindExpirable(
	ctx context.Context,
	criteria domain.ExpirableCriteria,
) ([]*domain.Consent, error) {
	var where string
	var arg any
	switch criteria.Kind {
	case domain.ExpirableUsedNonRecurring:
		where = `WHERE recurring_indicator = FALSE AND status IN ('RECEIVED', 'VALID') AND earliest_usage_date < $1`
		arg = domain.Day(criteria.Today)
	case domain.ExpirableUnconfirmed:
		where = `WHERE status = 'RECEIVED' AND created_at < $1`
		arg = criteria.CreatedBefore
	default:
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("unknown expirable kind %q", criteria.Kind))
	}

	where += ` ORDER BY created_at ASC`
	if criteria.Limit > 0 {
		where += fmt.Sprintf(` LIMIT %d`, criteria.Limit)
	}

	return p.getMany(ctx, where, arg)
}

// FindActiveByTpp returns the RECEIVED and VALID AIS consents of a TPP.
func (p *PostgreSQLConsentRepository) FindActiveByTpp(ctx context.Context, tppID string) ([]*domain.Consent, error) {
	return p.getMany(
		ctx,
		`WHERE tpp_id = $1 AND type = 'AIS' AND status IN ('RECEIVED', 'VALID') ORDER BY created_at ASC`,
		tppID,
	)
}

func (p *PostgreSQLConsentRepository) getOne(ctx context.Context, where string, arg any) (*domain.Consent, error) {
	querier := database.GetTx(ctx, p.db)

	consent, err := scanConsent(querier.QueryRowContext(ctx, `SELECT `+consentColumns+` FROM consents `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrConsentNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get consent")
	}

	if consent.Authorisations, err = p.listAuthorisations(ctx, consent.ID); err != nil {
		return nil, err
	}
	return consent, nil
}

func (p *PostgreSQLConsentRepository) getMany(ctx context.Context, where string, arg any) ([]*domain.Consent, error) {
	querier := database.GetTx(ctx, p.db)

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
		if consent.Authorisations, err = p.listAuthorisations(ctx, consent.ID); err != nil {
			return nil, err
		}
	}
	return consents, nil
}

func (p *PostgreSQLConsentRepository) listAuthorisations(
	ctx context.Context,
	consentID uuid.UUID,
) ([]domain.Authorisation, error) {
	querier := database.GetTx(ctx, p.db)

	rows, err := querier.QueryContext(
		ctx,
		`SELECT `+authorisationColumns+` FROM authorisations WHERE consent_id = $1 ORDER BY created_at ASC`,
		consentID,
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

func (p *PostgreSQLConsentRepository) upsertAuthorisations(
	ctx context.Context,
	authorisations []domain.Authorisation,
) error {
	querier := database.GetTx(ctx, p.db)

	query := `INSERT INTO authorisations (id, consent_id, type, sca_status, sca_approach, psu_data,
				chosen_sca_method, available_sca_methods, challenge_data, otp_hash, confirmation_hash,
				failed_attempts, last_request_fingerprint, redirect_url_expires_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			  ON CONFLICT (id) DO UPDATE
			  SET sca_status = EXCLUDED.sca_status,
				  sca_approach = EXCLUDED.sca_approach,
				  psu_data = EXCLUDED.psu_data,
				  chosen_sca_method = EXCLUDED.chosen_sca_method,
				  available_sca_methods = EXCLUDED.available_sca_methods,
				  challenge_data = EXCLUDED.challenge_data,
				  otp_hash = EXCLUDED.otp_hash,
				  confirmation_hash = EXCLUDED.confirmation_hash,
				  failed_attempts = EXCLUDED.failed_attempts,
				  last_request_fingerprint = EXCLUDED.last_request_fingerprint,
				  redirect_url_expires_at = EXCLUDED.redirect_url_expires_at,
				  updated_at = EXCLUDED.updated_at`

	for i := range authorisations {
		a := &authorisations[i]
		row, err := encodeAuthorisation(a)
		if err != nil {
			return err
		}

		_, err = querier.ExecContext(
			ctx,
			query,
			a.ID,
			a.ConsentID,
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

// NewPostgreSQLConsentRepository creates a new PostgreSQL Consent repository.
func NewPostgreSQLConsentRepository(db *sql.DB) *PostgreSQLConsentRepository {
	return &PostgreSQLConsentRepository{db: db}
}
