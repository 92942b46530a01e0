// Package repository implements consent persistence.
//
// Provides PostgreSQL and MySQL implementations with transaction support via
// database.GetTx(), plus an in-memory implementation used by tests. Writes are
// optimistic: Save only succeeds when the stored version still matches the
// version the caller loaded.
package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/consents/internal/consent/domain"
	apperrors "github.com/allisson/consents/internal/errors"
)

// consentColumns is the select list shared by every consent query.
const consentColumns = `id, type, status, internal_request_id, tpp_id, recurring_indicator,
	frequency_per_day, valid_until, expire_date, usages, psu_id_data, tpp_access, aspsp_access,
	data_provider_id, encrypted_data, legacy_data, multilevel_sca_required, signing_basket_blocked,
	signing_basket_authorised, payment, version, created_at, last_action_date`

// authorisationColumns is the select list shared by every authorisation query.
const authorisationColumns = `id, consent_id, type, sca_status, sca_approach, psu_data,
	chosen_sca_method, available_sca_methods, challenge_data, otp_hash, confirmation_hash,
	failed_attempts, last_request_fingerprint, redirect_url_expires_at, created_at, updated_at`

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// consentRow is the storage shape of a consent. JSON columns hold the
// collections so both dialects share one mapping.
type consentRow struct {
	internalRequestID sql.NullString
	validUntil        sql.NullTime
	expireDate        sql.NullTime
	earliestUsage     sql.NullTime
	usages            []byte
	psuIDData         []byte
	tppAccess         []byte
	aspspAccess       []byte
	payment           []byte
	dataProviderID    sql.NullString
	lastActionDate    sql.NullTime
}

func encodeConsent(c *domain.Consent) (*consentRow, error) {
	row := &consentRow{
		internalRequestID: sql.NullString{String: c.InternalRequestID, Valid: c.InternalRequestID != ""},
		validUntil:        nullDate(c.ValidUntil),
		expireDate:        nullDate(c.ExpireDate),
		earliestUsage:     nullDate(earliestUsage(c.Usages)),
		dataProviderID:    sql.NullString{String: c.EncryptedData.ProviderID, Valid: c.EncryptedData.ProviderID != ""},
		lastActionDate:    nullDate(c.LastActionDate),
	}

	var err error
	if row.usages, err = marshalJSON(c.Usages, "{}"); err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal consent usages")
	}
	if row.psuIDData, err = marshalJSON(c.PsuIDDataList, "[]"); err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal consent psu data")
	}
	if row.tppAccess, err = json.Marshal(c.TppAccess); err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal tpp access")
	}
	if row.aspspAccess, err = json.Marshal(c.AspspAccess); err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal aspsp access")
	}
	if c.Payment != nil {
		if row.payment, err = json.Marshal(c.Payment); err != nil {
			return nil, apperrors.Wrap(err, "failed to marshal payment")
		}
	}
	return row, nil
}

// scanConsent reads one consentColumns row.
func scanConsent(s scanner) (*domain.Consent, error) {
	var c domain.Consent
	var row consentRow

	err := s.Scan(
		&c.ID,
		&c.Type,
		&c.Status,
		&row.internalRequestID,
		&c.TppID,
		&c.RecurringIndicator,
		&c.FrequencyPerDay,
		&row.validUntil,
		&row.expireDate,
		&row.usages,
		&row.psuIDData,
		&row.tppAccess,
		&row.aspspAccess,
		&row.dataProviderID,
		&c.EncryptedData.Ciphertext,
		&c.LegacyData,
		&c.MultilevelScaRequired,
		&c.SigningBasketBlocked,
		&c.SigningBasketAuthorised,
		&row.payment,
		&c.Version,
		&c.CreatedAt,
		&row.lastActionDate,
	)
	if err != nil {
		return nil, err
	}

	c.InternalRequestID = row.internalRequestID.String
	c.ValidUntil = dateOf(row.validUntil)
	c.ExpireDate = dateOf(row.expireDate)
	c.LastActionDate = dateOf(row.lastActionDate)
	c.EncryptedData.ProviderID = row.dataProviderID.String
	c.CreatedAt = c.CreatedAt.UTC()

	if err := unmarshalJSON(row.usages, &c.Usages); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal consent usages")
	}
	if err := unmarshalJSON(row.psuIDData, &c.PsuIDDataList); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal consent psu data")
	}
	if err := unmarshalJSON(row.tppAccess, &c.TppAccess); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tpp access")
	}
	if err := unmarshalJSON(row.aspspAccess, &c.AspspAccess); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal aspsp access")
	}
	if len(row.payment) > 0 {
		c.Payment = &domain.PaymentDetails{}
		if err := json.Unmarshal(row.payment, c.Payment); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal payment")
		}
	}
	return &c, nil
}

// authorisationRow is the storage shape of an authorisation.
type authorisationRow struct {
	psuData              []byte
	chosenScaMethod      []byte
	availableScaMethods  []byte
	challengeData        []byte
	redirectURLExpiresAt sql.NullTime
}

func encodeAuthorisation(a *domain.Authorisation) (*authorisationRow, error) {
	row := &authorisationRow{
		redirectURLExpiresAt: sql.NullTime{Time: a.RedirectURLExpiresAt, Valid: !a.RedirectURLExpiresAt.IsZero()},
	}

	var err error
	if row.psuData, err = json.Marshal(a.PsuData); err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal authorisation psu data")
	}
	if a.ChosenScaMethod != nil {
		if row.chosenScaMethod, err = json.Marshal(a.ChosenScaMethod); err != nil {
			return nil, apperrors.Wrap(err, "failed to marshal chosen sca method")
		}
	}
	if row.availableScaMethods, err = marshalJSON(a.AvailableScaMethods, "[]"); err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal available sca methods")
	}
	if a.ChallengeData != nil {
		if row.challengeData, err = json.Marshal(a.ChallengeData); err != nil {
			return nil, apperrors.Wrap(err, "failed to marshal challenge data")
		}
	}
	return row, nil
}

// scanAuthorisation reads one authorisationColumns row.
func scanAuthorisation(s scanner) (domain.Authorisation, error) {
	var a domain.Authorisation
	var row authorisationRow

	err := s.Scan(
		&a.ID,
		&a.ConsentID,
		&a.Type,
		&a.ScaStatus,
		&a.ScaApproach,
		&row.psuData,
		&row.chosenScaMethod,
		&row.availableScaMethods,
		&row.challengeData,
		&a.OtpHash,
		&a.ConfirmationHash,
		&a.FailedAttempts,
		&a.LastRequestFingerprint,
		&row.redirectURLExpiresAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return a, err
	}

	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	if row.redirectURLExpiresAt.Valid {
		a.RedirectURLExpiresAt = row.redirectURLExpiresAt.Time.UTC()
	}

	if err := unmarshalJSON(row.psuData, &a.PsuData); err != nil {
		return a, apperrors.Wrap(err, "failed to unmarshal authorisation psu data")
	}
	if len(row.chosenScaMethod) > 0 {
		a.ChosenScaMethod = &domain.ScaMethod{}
		if err := json.Unmarshal(row.chosenScaMethod, a.ChosenScaMethod); err != nil {
			return a, apperrors.Wrap(err, "failed to unmarshal chosen sca method")
		}
	}
	if err := unmarshalJSON(row.availableScaMethods, &a.AvailableScaMethods); err != nil {
		return a, apperrors.Wrap(err, "failed to unmarshal available sca methods")
	}
	if len(row.challengeData) > 0 {
		a.ChallengeData = &domain.ChallengeData{}
		if err := json.Unmarshal(row.challengeData, a.ChallengeData); err != nil {
			return a, apperrors.Wrap(err, "failed to unmarshal challenge data")
		}
	}
	return a, nil
}

// earliestUsage returns the first day with a recorded access.
func earliestUsage(usages map[string]int) time.Time {
	var earliest time.Time
	for day, count := range usages {
		if count <= 0 {
			continue
		}
		t, err := time.Parse(domain.DateLayout, day)
		if err != nil {
			continue
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	return earliest
}

func nullDate(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: domain.Day(t), Valid: true}
}

func dateOf(n sql.NullTime) time.Time {
	if !n.Valid {
		return time.Time{}
	}
	return domain.Day(n.Time)
}

func marshalJSON(v any, empty string) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(b) == "null" {
		return []byte(empty), nil
	}
	return b, nil
}

func unmarshalJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}

// mysqlUUID converts id to its BINARY(16) form.
func mysqlUUID(id uuid.UUID) ([]byte, error) {
	b, err := id.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal uuid")
	}
	return b, nil
}
