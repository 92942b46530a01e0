package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	"github.com/allisson/consents/internal/consent/domain"
	"github.com/allisson/consents/internal/database"
	apperrors "github.com/allisson/consents/internal/errors"
)

// consentUseCase implements ConsentUseCase.
type consentUseCase struct {
	txManager database.TxManager
	repo      ConsentRepository
	protector DataProtector
	cfg       Config
	logger    *slog.Logger
}

// NewConsentUseCase creates a new ConsentUseCase.
func NewConsentUseCase(
	txManager database.TxManager,
	repo ConsentRepository,
	protector DataProtector,
	cfg Config,
	logger *slog.Logger,
) ConsentUseCase {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &consentUseCase{
		txManager: txManager,
		repo:      repo,
		protector: protector,
		cfg:       cfg,
		logger:    logger,
	}
}

// Create validates input and stores a new RECEIVED consent with its payload encrypted.
func (c *consentUseCase) Create(ctx context.Context, input *CreateInput) (*domain.Consent, string, error) {
	now := c.cfg.Now().UTC()
	today := domain.Day(now)

	if err := validateCreateInput(input, today); err != nil {
		return nil, "", err
	}

	consent := &domain.Consent{
		ID:                    uuid.Must(uuid.NewV7()),
		Type:                  input.Type,
		Status:                domain.StatusReceived,
		InternalRequestID:     input.InternalRequestID,
		TppID:                 input.TppID,
		RecurringIndicator:    input.RecurringIndicator,
		FrequencyPerDay:       input.FrequencyPerDay,
		ValidUntil:            dayOrZero(input.ValidUntil),
		Usages:                map[string]int{},
		PsuIDDataList:         append([]domain.PsuData(nil), input.PsuIDDataList...),
		TppAccess:             input.TppAccess,
		MultilevelScaRequired: len(input.PsuIDDataList) > 1,
		CreatedAt:             now,
		LastActionDate:        today,
	}
	consent.ExpireDate = expireDate(consent.ValidUntil, today, c.cfg.MaxLifetimeDays)

	if input.Type == domain.TypePIS {
		payment := domain.PaymentDetails{}
		if input.Payment != nil {
			payment = *input.Payment
		}
		if payment.TransactionStatus == "" {
			payment.TransactionStatus = domain.TransactionReceived
		}
		consent.Payment = &payment
	}

	enc, ok := c.protector.Protect(consent.ID, input.Data)
	if !ok {
		return nil, "", apperrors.Wrap(domain.ErrConsentDataUnavailable, "failed to protect consent data")
	}
	consent.EncryptedData = enc

	externalID, ok := c.protector.ProtectID(consent.ID)
	if !ok {
		return nil, "", apperrors.Wrap(domain.ErrConsentDataUnavailable, "failed to protect consent id")
	}

	if err := c.repo.Create(ctx, consent); err != nil {
		return nil, "", err
	}

	c.logger.Info("consent created",
		slog.String("consent_id", consent.ID.String()),
		slog.String("type", string(consent.Type)),
		slog.String("tpp_id", consent.TppID),
		slog.Bool("multilevel", consent.MultilevelScaRequired),
	)
	return consent, externalID, nil
}

// Get returns the consent after applying the expiry rules and the legacy data migration.
func (c *consentUseCase) Get(ctx context.Context, consentID uuid.UUID) (*domain.Consent, error) {
	consent, err := c.mutate(ctx, consentID, nil)
	if apperrors.Is(err, domain.ErrConcurrentModification) {
		// another writer committed in between; its version already carries the refresh
		return c.mutate(ctx, consentID, nil)
	}
	return consent, err
}

// ResolveExternalID decrypts an external id. Any failure reads as not found.
func (c *consentUseCase) ResolveExternalID(externalID string) (uuid.UUID, error) {
	id, ok := c.protector.UnprotectID(externalID)
	if !ok {
		return uuid.Nil, domain.ErrConsentNotFound
	}
	return id, nil
}

// ExternalID encrypts consentID with the id provider.
func (c *consentUseCase) ExternalID(consentID uuid.UUID) (string, error) {
	externalID, ok := c.protector.ProtectID(consentID)
	if !ok {
		return "", domain.ErrConsentDataUnavailable
	}
	return externalID, nil
}

// GetByInternalRequestID returns the AIS consent correlated with internalRequestID.
func (c *consentUseCase) GetByInternalRequestID(
	ctx context.Context,
	internalRequestID string,
) (*domain.Consent, error) {
	consent, err := c.repo.GetByInternalRequestID(ctx, internalRequestID)
	if err != nil {
		return nil, err
	}
	if consent.Type != domain.TypeAIS {
		return nil, domain.ErrInternalRequestIDNotSupported
	}
	return c.Get(ctx, consent.ID)
}

// RecordAccess increments today's usage counter of a VALID consent.
func (c *consentUseCase) RecordAccess(ctx context.Context, consentID uuid.UUID) (*domain.Consent, error) {
	return c.mutate(ctx, consentID, func(consent domain.Consent, now time.Time) (domain.Consent, bool, error) {
		out, err := consent.RecordUsage(now)
		if err != nil {
			return consent, false, err
		}
		return out, true, nil
	})
}

// GetData returns the decrypted payload. Undecryptable data is reported as
// ErrConsentDataUnavailable without its cause.
func (c *consentUseCase) GetData(ctx context.Context, consentID uuid.UUID) (*domain.Data, error) {
	consent, err := c.Get(ctx, consentID)
	if err != nil {
		return nil, err
	}

	data, ok := c.protector.Unprotect(consent.ID, consent.EncryptedData)
	if !ok {
		return nil, domain.ErrConsentDataUnavailable
	}
	return data, nil
}

// SetData re-encrypts the payload with the current data provider.
func (c *consentUseCase) SetData(ctx context.Context, consentID uuid.UUID, data *domain.Data) error {
	_, err := c.mutate(ctx, consentID, func(consent domain.Consent, now time.Time) (domain.Consent, bool, error) {
		if consent.IsFinalised() {
			return consent, false, domain.ErrConsentFinalised
		}
		enc, ok := c.protector.Protect(consent.ID, data)
		if !ok {
			return consent, false, domain.ErrConsentDataUnavailable
		}
		out := consent.Clone()
		out.EncryptedData = enc
		out.LegacyData = nil
		return out, true, nil
	})
	return err
}

// SetAspspAccess stores the account access confirmed by the ASPSP.
func (c *consentUseCase) SetAspspAccess(
	ctx context.Context,
	consentID uuid.UUID,
	access domain.AccountAccess,
) (*domain.Consent, error) {
	return c.mutate(ctx, consentID, func(consent domain.Consent, now time.Time) (domain.Consent, bool, error) {
		if consent.IsFinalised() {
			return consent, false, domain.ErrConsentFinalised
		}
		out := consent.Clone()
		out.AspspAccess = access
		out.LastActionDate = domain.Day(now)
		return out, true, nil
	})
}

// ListActiveByTpp returns one page of the active consents of tppID, oldest first.
func (c *consentUseCase) ListActiveByTpp(
	ctx context.Context,
	tppID string,
	offset, limit int,
) ([]*domain.Consent, error) {
	consents, err := c.repo.FindActiveByTpp(ctx, tppID)
	if err != nil {
		return nil, err
	}

	now := c.cfg.Now().UTC()
	active := make([]*domain.Consent, 0, len(consents))
	for _, consent := range consents {
		if _, expired := consent.Refresh(now, c.cfg.NotConfirmedExpiration); expired {
			continue
		}
		active = append(active, consent)
	}

	if offset >= len(active) {
		return []*domain.Consent{}, nil
	}
	return active[offset:min(offset+limit, len(active))], nil
}

// UpdateStatus moves a non finalised consent to status.
func (c *consentUseCase) UpdateStatus(
	ctx context.Context,
	consentID uuid.UUID,
	status domain.Status,
) (*domain.Consent, error) {
	if !status.IsValid() {
		return nil, apperrors.Wrap(domain.ErrInvalidConsent, fmt.Sprintf("unknown status %q", status))
	}

	return c.mutate(ctx, consentID, func(consent domain.Consent, now time.Time) (domain.Consent, bool, error) {
		if consent.IsFinalised() {
			return consent, false, domain.ErrConsentFinalised
		}
		if status == domain.StatusValid && !consent.StructurallyValid() {
			return consent, false, domain.ErrInvalidConsent
		}
		if consent.Status == status {
			return consent, false, nil
		}
		return consent.WithStatus(status, now), true, nil
	})
}

// mutateFunc returns the next version of a refreshed consent and whether it changed.
type mutateFunc func(consent domain.Consent, now time.Time) (domain.Consent, bool, error)

// mutate loads the consent inside a transaction, migrates legacy data, applies
// the expiry rules and then fn, and saves the result with an optimistic version
// check when anything changed. Expiry found on the way is persisted even when
// fn fails, since fn sees the expired consent and refuses it.
func (c *consentUseCase) mutate(ctx context.Context, consentID uuid.UUID, fn mutateFunc) (*domain.Consent, error) {
	var result *domain.Consent
	var fnErr error

	err := c.txManager.WithTx(ctx, func(ctx context.Context) error {
		loaded, err := c.repo.Get(ctx, consentID)
		if err != nil {
			return err
		}
		now := c.cfg.Now().UTC()
		version := loaded.Version

		consent, migrated := c.protector.MigrateLegacy(*loaded)
		consent, refreshed := consent.Refresh(now, c.cfg.NotConfirmedExpiration)
		changed := migrated || refreshed

		if fn != nil {
			next, applied, ferr := fn(consent, now)
			if ferr != nil {
				fnErr = ferr
			} else if applied {
				consent, changed = next, true
			}
		}

		if changed {
			if err := c.repo.Save(ctx, &consent, version); err != nil {
				return err
			}
			if refreshed {
				c.logger.Info("consent expired on read",
					slog.String("consent_id", consent.ID.String()),
					slog.String("status", string(consent.Status)),
				)
			}
		}

		result = &consent
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fnErr != nil {
		return nil, fnErr
	}
	return result, nil
}

func validateCreateInput(input *CreateInput, today time.Time) error {
	if input == nil {
		return apperrors.Wrap(domain.ErrInvalidConsent, "missing input")
	}

	err := validation.ValidateStruct(input,
		validation.Field(&input.Type, validation.Required, validation.In(
			domain.TypeAIS, domain.TypePIS, domain.TypePIIS, domain.TypeSigningBasket,
		)),
		validation.Field(&input.TppID, validation.Required, validation.Length(1, 255)),
		validation.Field(&input.PsuIDDataList, validation.Required),
		validation.Field(&input.FrequencyPerDay, validation.When(input.Type == domain.TypeAIS, validation.Required, validation.Min(1))),
		validation.Field(&input.InternalRequestID, validation.Length(0, 255)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConsent, err)
	}

	for _, psu := range input.PsuIDDataList {
		if psu.IsEmpty() {
			return apperrors.Wrap(domain.ErrInvalidConsent, "empty psu identity")
		}
	}
	if !input.ValidUntil.IsZero() && domain.Day(input.ValidUntil).Before(today) {
		return apperrors.Wrap(domain.ErrInvalidConsent, "validUntil is in the past")
	}
	if input.InternalRequestID != "" && input.Type != domain.TypeAIS {
		return domain.ErrInternalRequestIDNotSupported
	}
	return nil
}

// expireDate bounds validUntil by the ASPSP maximum lifetime.
func expireDate(validUntil, today time.Time, maxLifetimeDays int) time.Time {
	if maxLifetimeDays <= 0 {
		return validUntil
	}
	limit := today.AddDate(0, 0, maxLifetimeDays)
	if validUntil.IsZero() || limit.Before(validUntil) {
		return limit
	}
	return validUntil
}

func dayOrZero(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return domain.Day(t)
}
