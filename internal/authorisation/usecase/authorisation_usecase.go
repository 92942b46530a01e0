package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
	"github.com/allisson/consents/internal/database"
	apperrors "github.com/allisson/consents/internal/errors"
)

// authorisationUseCase implements AuthorisationUseCase.
type authorisationUseCase struct {
	txManager database.TxManager
	repo      ConsentRepository
	processor Processor
	ids       IDProtector
	cfg       Config
	logger    *slog.Logger
}

// NewAuthorisationUseCase creates a new AuthorisationUseCase.
func NewAuthorisationUseCase(
	txManager database.TxManager,
	repo ConsentRepository,
	processor Processor,
	ids IDProtector,
	cfg Config,
	logger *slog.Logger,
) AuthorisationUseCase {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultApproach == "" {
		cfg.DefaultApproach = consentDomain.ScaApproachRedirect
	}
	return &authorisationUseCase{
		txManager: txManager,
		repo:      repo,
		processor: processor,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
	}
}

// state is a consent loaded for one operation and the version it was loaded at.
type state struct {
	consent     consentDomain.Consent
	version     int64
	changed     bool
	becameValid bool
	now         time.Time
}

// decideFunc asks the processor for the next snapshot of auth.
type decideFunc func(
	ctx context.Context,
	consent consentDomain.Consent,
	auth consentDomain.Authorisation,
	externalID string,
) *authDomain.ProcessorResponse

// loadFunc loads the consent an operation works on.
type loadFunc func(ctx context.Context) (*consentDomain.Consent, error)

// Create starts an authorisation on a consent or a payment initiation.
func (u *authorisationUseCase) Create(ctx context.Context, consentID uuid.UUID, input CreateInput) (*Result, error) {
	return u.start(ctx, consentID, input, false)
}

// CreateCancellation starts the cancellation authorisation of a payment.
func (u *authorisationUseCase) CreateCancellation(
	ctx context.Context,
	paymentID uuid.UUID,
	input CreateInput,
) (*Result, error) {
	return u.start(ctx, paymentID, input, true)
}

// Update runs a PSU update through the SCA state machine.
func (u *authorisationUseCase) Update(
	ctx context.Context,
	consentID, authorisationID uuid.UUID,
	req authDomain.UpdateRequest,
) (*Result, error) {
	return u.run(ctx, u.byConsentID(consentID), authorisationID, func(
		ctx context.Context,
		consent consentDomain.Consent,
		auth consentDomain.Authorisation,
		externalID string,
	) *authDomain.ProcessorResponse {
		return u.processor.Process(ctx, &authDomain.ProcessorRequest{
			Consent:       consent,
			Authorisation: auth,
			ExternalID:    externalID,
			Update:        req,
		})
	})
}

// Confirm checks the confirmation code of an UNCONFIRMED authorisation.
func (u *authorisationUseCase) Confirm(
	ctx context.Context,
	consentID, authorisationID uuid.UUID,
	code string,
) (*Result, error) {
	return u.run(ctx, u.byConsentID(consentID), authorisationID, func(
		ctx context.Context,
		consent consentDomain.Consent,
		auth consentDomain.Authorisation,
		externalID string,
	) *authDomain.ProcessorResponse {
		return u.processor.Confirm(ctx, &authDomain.ConfirmRequest{
			Consent:          consent,
			Authorisation:    auth,
			ExternalID:       externalID,
			ConfirmationCode: code,
		})
	})
}

// UpdateScaStatusFromAspsp applies a status reported by the ASPSP.
func (u *authorisationUseCase) UpdateScaStatusFromAspsp(
	ctx context.Context,
	authorisationID uuid.UUID,
	status consentDomain.ScaStatus,
	confirmationCode string,
) (*Result, error) {
	load := func(ctx context.Context) (*consentDomain.Consent, error) {
		return u.repo.GetByAuthorisationID(ctx, authorisationID)
	}
	return u.run(ctx, load, authorisationID, func(
		ctx context.Context,
		consent consentDomain.Consent,
		auth consentDomain.Authorisation,
		externalID string,
	) *authDomain.ProcessorResponse {
		return u.processor.ApplyAspspStatus(ctx, &authDomain.AspspStatusRequest{
			Consent:          consent,
			Authorisation:    auth,
			ExternalID:       externalID,
			ScaStatus:        status,
			ConfirmationCode: confirmationCode,
		})
	})
}

// GetScaStatus returns the authorisation. Expiry of the consent found on the
// way is persisted first.
func (u *authorisationUseCase) GetScaStatus(
	ctx context.Context,
	consentID, authorisationID uuid.UUID,
) (*Result, error) {
	return u.run(ctx, u.byConsentID(consentID), authorisationID, func(
		_ context.Context,
		_ consentDomain.Consent,
		auth consentDomain.Authorisation,
		externalID string,
	) *authDomain.ProcessorResponse {
		return &authDomain.ProcessorResponse{
			Authorisation: auth,
			Links:         u.processor.Links(externalID, auth),
		}
	})
}

func (u *authorisationUseCase) byConsentID(consentID uuid.UUID) loadFunc {
	return func(ctx context.Context) (*consentDomain.Consent, error) {
		return u.repo.Get(ctx, consentID)
	}
}

// start creates a RECEIVED authorisation for the PSU of input.
func (u *authorisationUseCase) start(
	ctx context.Context,
	consentID uuid.UUID,
	input CreateInput,
	cancellation bool,
) (*Result, error) {
	approach := input.ScaApproach
	if approach == "" {
		approach = u.cfg.DefaultApproach
	}
	if !approach.IsValid() {
		return nil, authDomain.NewValidationError(authDomain.CodeFormatError, "unknown sca approach "+string(approach))
	}

	var result *Result
	var rejected *authDomain.ProcessorError

	err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
		loaded, err := u.repo.Get(ctx, consentID)
		if err != nil {
			return err
		}
		st := u.refresh(loaded)

		if rejected = checkStartable(st.consent, cancellation); rejected != nil {
			return u.save(ctx, st)
		}

		externalID, err := u.externalID(st.consent.ID)
		if err != nil {
			return err
		}

		auth := consentDomain.Authorisation{
			ID:          uuid.Must(uuid.NewV7()),
			ConsentID:   st.consent.ID,
			Type:        authorisationType(st.consent, cancellation),
			ScaStatus:   consentDomain.ScaReceived,
			ScaApproach: approach,
			PsuData:     input.PsuData,
			CreatedAt:   st.now,
			UpdatedAt:   st.now,
		}
		if approach == consentDomain.ScaApproachRedirect && u.cfg.RedirectURLExpiration > 0 {
			auth.RedirectURLExpiresAt = st.now.Add(u.cfg.RedirectURLExpiration)
		}

		consent := st.consent.Clone()
		if !input.PsuData.IsEmpty() {
			if !consent.HasPsu(input.PsuData) {
				consent.PsuIDDataList = append(consent.PsuIDDataList, input.PsuData)
				consent.MultilevelScaRequired = len(consent.PsuIDDataList) > 1
			}
			failOpenAuthorisations(&consent, auth.Type, input.PsuData, st.now)
		}
		st.consent = consent.WithAuthorisation(auth)
		st.changed = true

		if err := u.save(ctx, st); err != nil {
			return err
		}

		u.logger.Info("authorisation created",
			slog.String("consent_id", st.consent.ID.String()),
			slog.String("authorisation_id", auth.ID.String()),
			slog.String("type", string(auth.Type)),
			slog.String("sca_approach", string(auth.ScaApproach)),
		)
		result = &Result{
			Consent:       &st.consent,
			Authorisation: auth,
			ExternalID:    externalID,
			Links:         u.processor.Links(externalID, auth),
		}
		return nil
	})
	if err != nil {
		return nil, lostSave(err)
	}
	if rejected != nil {
		return nil, rejected
	}
	return result, nil
}

// run loads the consent owning authorisationID, lets decide produce the next
// snapshot and commits it with the consent changes it implies.
func (u *authorisationUseCase) run(
	ctx context.Context,
	load loadFunc,
	authorisationID uuid.UUID,
	decide decideFunc,
) (*Result, error) {
	var result *Result
	var rejected *authDomain.ProcessorError

	err := u.txManager.WithTx(ctx, func(ctx context.Context) error {
		loaded, err := load(ctx)
		if err != nil {
			return err
		}
		st := u.refresh(loaded)

		auth, ok := st.consent.Authorisation(authorisationID)
		if !ok {
			return consentDomain.ErrAuthorisationNotFound
		}

		externalID, err := u.externalID(st.consent.ID)
		if err != nil {
			return err
		}

		resp := decide(ctx, st.consent, auth, externalID)
		u.apply(st, resp)

		if err := u.save(ctx, st); err != nil {
			return err
		}
		if st.becameValid {
			if err := u.terminateSuperseded(ctx, st.consent, st.now); err != nil {
				return err
			}
		}

		if resp.Modified {
			u.logger.Info("authorisation updated",
				slog.String("consent_id", st.consent.ID.String()),
				slog.String("authorisation_id", resp.Authorisation.ID.String()),
				slog.String("sca_status", string(resp.Authorisation.ScaStatus)),
				slog.String("consent_status", string(st.consent.Status)),
			)
		}

		rejected = resp.Err
		result = &Result{
			Consent:       &st.consent,
			Authorisation: resp.Authorisation,
			ExternalID:    externalID,
			Links:         resp.Links,
			PsuMessage:    resp.PsuMessage,
		}
		return nil
	})
	if err != nil {
		return nil, lostSave(err)
	}
	if rejected != nil {
		return result, rejected
	}
	return result, nil
}

// lostSave reports a lost optimistic save with the CONCURRENT_MODIFICATION code.
func lostSave(err error) error {
	if apperrors.Is(err, consentDomain.ErrConcurrentModification) {
		return authDomain.NewStateConflictError(
			authDomain.CodeConcurrentModification, "authorisation was modified concurrently, retry the request",
		)
	}
	return err
}

// apply merges a processor response into the consent of st and re-derives
// the consent status once an authorisation completes.
func (u *authorisationUseCase) apply(st *state, resp *authDomain.ProcessorResponse) {
	consent := st.consent

	if resp.Modified {
		consent = consent.WithAuthorisation(resp.Authorisation)
		st.changed = true
	}

	if resp.ConsentStatus != "" && !consent.IsFinalised() && consent.Status != resp.ConsentStatus {
		consent = consent.WithStatus(resp.ConsentStatus, st.now)
		if resp.ConsentStatus == consentDomain.StatusRejected && consent.Payment != nil {
			consent.Payment.TransactionStatus = consentDomain.TransactionRejected
		}
		st.changed = true
	}

	if resp.Modified && resp.Authorisation.ScaStatus.IsCompleted() {
		if next, ok := consent.EvaluateAuthorisations(resp.Authorisation.Type, st.now); ok {
			st.becameValid = next.Status == consentDomain.StatusValid && consent.Status != consentDomain.StatusValid
			consent = next
			st.changed = true
		}
	}

	st.consent = consent
}

// terminateSuperseded ends the older recurring AIS consents the same PSUs gave
// the same TPP once consent becomes VALID. A consent changed concurrently is skipped.
func (u *authorisationUseCase) terminateSuperseded(
	ctx context.Context,
	consent consentDomain.Consent,
	now time.Time,
) error {
	if consent.Type != consentDomain.TypeAIS || !consent.RecurringIndicator {
		return nil
	}

	candidates, err := u.repo.FindActiveByTpp(ctx, consent.TppID)
	if err != nil {
		return err
	}

	for _, other := range candidates {
		if other.ID == consent.ID || !other.RecurringIndicator ||
			!other.CreatedAt.Before(consent.CreatedAt) || !sharesPsu(*other, consent) {
			continue
		}

		terminated := other.WithStatus(consentDomain.StatusTerminatedByTpp, now)
		if err := u.repo.Save(ctx, &terminated, other.Version); err != nil {
			if apperrors.Is(err, consentDomain.ErrConcurrentModification) {
				u.logger.Warn("superseded consent changed concurrently",
					slog.String("consent_id", other.ID.String()),
				)
				continue
			}
			return err
		}

		u.logger.Info("superseded consent terminated",
			slog.String("consent_id", other.ID.String()),
			slog.String("superseded_by", consent.ID.String()),
		)
	}
	return nil
}

func (u *authorisationUseCase) refresh(loaded *consentDomain.Consent) *state {
	now := u.cfg.Now().UTC()
	consent, refreshed := loaded.Refresh(now, u.cfg.NotConfirmedExpiration)
	if refreshed {
		u.logger.Info("consent expired on read",
			slog.String("consent_id", consent.ID.String()),
			slog.String("status", string(consent.Status)),
		)
	}
	return &state{
		consent: consent,
		version: loaded.Version,
		changed: refreshed,
		now:     now,
	}
}

func (u *authorisationUseCase) save(ctx context.Context, st *state) error {
	if !st.changed {
		return nil
	}
	return u.repo.Save(ctx, &st.consent, st.version)
}

func (u *authorisationUseCase) externalID(consentID uuid.UUID) (string, error) {
	id, ok := u.ids.ProtectID(consentID)
	if !ok {
		return "", apperrors.Wrap(consentDomain.ErrConsentDataUnavailable, "failed to protect consent id")
	}
	return id, nil
}

func checkStartable(consent consentDomain.Consent, cancellation bool) *authDomain.ProcessorError {
	switch {
	case cancellation && consent.Type != consentDomain.TypePIS:
		return authDomain.NewValidationError(authDomain.CodeFormatError, "only payments can be cancelled")
	case consent.IsFinalised():
		return authDomain.NewValidationError(authDomain.CodeConsentInvalid, "consent is "+string(consent.Status))
	case consent.SigningBasketBlocked:
		return authDomain.NewValidationError(
			authDomain.CodeConsentBlockedByBasket, "consent is blocked by a signing basket",
		)
	case cancellation && consent.Payment != nil &&
		(consent.Payment.TransactionStatus == consentDomain.TransactionCancelled ||
			consent.Payment.TransactionStatus == consentDomain.TransactionRejected):
		return authDomain.NewStateConflictError(
			authDomain.CodeStatusInvalid, "payment is "+string(consent.Payment.TransactionStatus),
		)
	}
	return nil
}

func authorisationType(consent consentDomain.Consent, cancellation bool) consentDomain.AuthorisationType {
	switch {
	case cancellation:
		return consentDomain.AuthorisationPisCancellation
	case consent.Type == consentDomain.TypePIS:
		return consentDomain.AuthorisationPisCreation
	default:
		return consentDomain.AuthorisationConsent
	}
}

// failOpenAuthorisations fails the unfinished authorisations of typ started by psu.
func failOpenAuthorisations(
	consent *consentDomain.Consent,
	typ consentDomain.AuthorisationType,
	psu consentDomain.PsuData,
	now time.Time,
) {
	for i := range consent.Authorisations {
		a := &consent.Authorisations[i]
		if a.Type != typ || a.ScaStatus.IsFinalised() || a.PsuData.Key() != psu.Key() {
			continue
		}
		a.ScaStatus = consentDomain.ScaFailed
		a.OtpHash = ""
		a.ConfirmationHash = ""
		a.UpdatedAt = now
	}
}

func sharesPsu(a, b consentDomain.Consent) bool {
	for _, psu := range a.PsuIDDataList {
		if b.HasPsu(psu) {
			return true
		}
	}
	return false
}
