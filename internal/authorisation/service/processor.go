package service

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"slices"
	"time"

	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
)

// ProcessorConfig holds the SCA policy.
type ProcessorConfig struct {
	// MaxFailedAttempts fails the authorisation after that many wrong credentials. 0 disables the limit.
	MaxFailedAttempts int
	// ConfirmationRequired moves redirect and decoupled authorisations reported
	// as FINALISED by the ASPSP to UNCONFIRMED.
	ConfirmationRequired bool
	// ConfirmationCheckByCore compares confirmation codes with the stored hash
	// instead of asking the ASPSP.
	ConfirmationCheckByCore bool
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Processor is the SCA state machine.
type Processor struct {
	connector     AspspConnector
	hasher        ScaSecretHasher
	fingerprinter Fingerprinter
	links         *LinkBuilder
	stages        *StageTable
	cfg           ProcessorConfig
	logger        *slog.Logger
}

// NewProcessor creates a Processor and its stage table.
func NewProcessor(
	connector AspspConnector,
	hasher ScaSecretHasher,
	fingerprinter Fingerprinter,
	links *LinkBuilder,
	cfg ProcessorConfig,
	logger *slog.Logger,
) (*Processor, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	p := &Processor{
		connector:     connector,
		hasher:        hasher,
		fingerprinter: fingerprinter,
		links:         links,
		cfg:           cfg,
		logger:        logger,
	}

	stages, err := NewStageTable(p.stageMap())
	if err != nil {
		return nil, err
	}
	p.stages = stages
	return p, nil
}

// Process applies an update request to the authorisation in req.
//
// A request identical to the last one that changed the authorisation is
// answered with the current snapshot while the authorisation is still at the
// status that request produced, so client retries succeed. Finalised and
// unconfirmed authorisations reject every other update with STATUS_INVALID.
func (p *Processor) Process(ctx context.Context, req *authDomain.ProcessorRequest) *authDomain.ProcessorResponse {
	auth := req.Authorisation

	if auth.LastRequestFingerprint != "" {
		replay := p.fingerprinter.Fingerprint(auth.ID, auth.ScaStatus, req.Update)
		if subtle.ConstantTimeCompare([]byte(auth.LastRequestFingerprint), []byte(replay)) == 1 {
			return p.respond(req, auth.Clone(), false)
		}
	}

	if auth.ScaStatus.IsFinalised() || auth.ScaStatus == consentDomain.ScaUnconfirmed {
		return p.finish(req, p.dispatch(ctx, req))
	}
	if resp := p.guard(req); resp != nil {
		return p.finish(req, resp)
	}

	resp := p.dispatch(ctx, req)
	if resp.Modified && !resp.HasError() {
		resp.Authorisation.LastRequestFingerprint = p.fingerprinter.Fingerprint(
			auth.ID, resp.Authorisation.ScaStatus, req.Update,
		)
	}
	return p.finish(req, resp)
}

// Confirm moves an UNCONFIRMED authorisation to FINALISED when the confirmation code matches.
func (p *Processor) Confirm(ctx context.Context, req *authDomain.ConfirmRequest) *authDomain.ProcessorResponse {
	base := &authDomain.ProcessorRequest{
		Consent:       req.Consent,
		Authorisation: req.Authorisation,
		ExternalID:    req.ExternalID,
	}
	auth := req.Authorisation.Clone()

	if auth.ScaStatus != consentDomain.ScaUnconfirmed {
		return p.finish(base, p.failure(base, auth, false, authDomain.NewStateConflictError(
			authDomain.CodeStatusInvalid, "authorisation does not await confirmation",
		)))
	}
	if req.ConfirmationCode == "" {
		return p.finish(base, p.failure(base, auth, false, authDomain.NewValidationError(
			authDomain.CodeFormatError, "confirmation code is required",
		)))
	}

	var ok bool
	if p.cfg.ConfirmationCheckByCore {
		ok = p.hasher.Verify(req.ConfirmationCode, auth.ConfirmationHash)
	} else {
		var err error
		ok, err = p.connector.CheckConfirmationCode(ctx, req.Consent, auth, req.ConfirmationCode)
		if err != nil {
			return p.finish(base, p.internal(base, err))
		}
	}

	auth.ConfirmationHash = ""
	if !ok {
		auth.ScaStatus = consentDomain.ScaFailed
		resp := p.failure(base, auth, true, authDomain.NewValidationError(
			authDomain.CodeScaConfirmationCodeInvalid, "confirmation code does not match",
		))
		rejectConsent(resp)
		return p.finish(base, resp)
	}

	auth.ScaStatus = consentDomain.ScaFinalised
	return p.finish(base, p.respond(base, auth, true))
}

// ApplyAspspStatus applies the outcome of a redirect or decoupled authorisation
// reported by the ASPSP. Reporting the current status again is a no-op.
func (p *Processor) ApplyAspspStatus(
	ctx context.Context,
	req *authDomain.AspspStatusRequest,
) *authDomain.ProcessorResponse {
	base := &authDomain.ProcessorRequest{
		Consent:       req.Consent,
		Authorisation: req.Authorisation,
		ExternalID:    req.ExternalID,
	}
	auth := req.Authorisation.Clone()
	target := req.ScaStatus

	switch {
	case auth.ScaStatus == target:
		return p.respond(base, auth, false)
	case auth.ScaStatus.IsFinalised() || auth.ScaStatus == consentDomain.ScaUnconfirmed:
		return p.finish(base, p.failure(base, auth, false, authDomain.NewStateConflictError(
			authDomain.CodeStatusInvalid, "authorisation is finalised",
		)))
	case auth.ScaApproach == consentDomain.ScaApproachEmbedded:
		return p.finish(base, p.failure(base, auth, false, authDomain.NewValidationError(
			authDomain.CodeFormatError, "embedded authorisations are not reported by the ASPSP",
		)))
	case !slices.Contains(consentDomain.ScaStatuses, target) ||
		target == consentDomain.ScaReceived || target == consentDomain.ScaUnconfirmed:
		return p.finish(base, p.failure(base, auth, false, authDomain.NewValidationError(
			authDomain.CodeFormatError, "unsupported sca status "+string(target),
		)))
	}

	if resp := p.guard(base); resp != nil {
		return p.finish(base, resp)
	}

	if target == consentDomain.ScaFinalised && p.cfg.ConfirmationRequired {
		switch {
		case req.ConfirmationCode != "":
			hash, err := p.hasher.Hash(req.ConfirmationCode)
			if err != nil {
				return p.finish(base, p.internal(base, err))
			}
			auth.ConfirmationHash = hash
		case p.cfg.ConfirmationCheckByCore:
			return p.finish(base, p.failure(base, auth, false, authDomain.NewValidationError(
				authDomain.CodeFormatError, "confirmation code is required",
			)))
		}
		auth.ScaStatus = consentDomain.ScaUnconfirmed
		return p.finish(base, p.respond(base, auth, true))
	}

	auth.ScaStatus = target
	auth.OtpHash = ""
	return p.finish(base, p.respond(base, auth, true))
}

// Links returns the hyperlinks for auth in its current state.
func (p *Processor) Links(externalID string, auth consentDomain.Authorisation) authDomain.Links {
	return p.links.For(externalID, auth)
}

func (p *Processor) dispatch(ctx context.Context, req *authDomain.ProcessorRequest) *authDomain.ProcessorResponse {
	auth := req.Authorisation
	stage, ok := p.stages.Lookup(auth.ScaApproach, auth.ScaStatus)
	if !ok {
		return p.failure(req, auth.Clone(), false, authDomain.NewStateConflictError(
			authDomain.CodeStatusInvalid, "no stage for "+string(auth.ScaApproach)+"/"+string(auth.ScaStatus),
		))
	}
	return stage(ctx, req)
}

// guard rejects updates the consent or the authorisation lifetime no longer allow.
func (p *Processor) guard(req *authDomain.ProcessorRequest) *authDomain.ProcessorResponse {
	auth := req.Authorisation.Clone()

	switch {
	case req.Consent.IsFinalised():
		return p.failure(req, auth, false, authDomain.NewValidationError(
			authDomain.CodeConsentInvalid, "consent is "+string(req.Consent.Status),
		))
	case req.Consent.SigningBasketBlocked:
		return p.failure(req, auth, false, authDomain.NewValidationError(
			authDomain.CodeConsentBlockedByBasket, "consent is blocked by a signing basket",
		))
	case auth.ScaApproach == consentDomain.ScaApproachRedirect && auth.RedirectExpired(p.cfg.Now()):
		auth.ScaStatus = consentDomain.ScaFailed
		return p.failure(req, auth, true, authDomain.NewValidationError(
			authDomain.CodeAuthorisationExpired, "redirect link expired",
		))
	}

	psu := req.Update.PsuData
	if !psu.IsEmpty() && !auth.PsuData.IsEmpty() && psu.Key() != auth.PsuData.Key() {
		return p.failure(req, auth, false, authDomain.NewValidationError(
			authDomain.CodeFormatError, "psu does not match the authorisation",
		))
	}
	return nil
}

func (p *Processor) respond(
	req *authDomain.ProcessorRequest,
	auth consentDomain.Authorisation,
	modified bool,
) *authDomain.ProcessorResponse {
	return &authDomain.ProcessorResponse{
		Authorisation: auth,
		Modified:      modified,
		Links:         p.links.For(req.ExternalID, auth),
	}
}

func (p *Processor) failure(
	req *authDomain.ProcessorRequest,
	auth consentDomain.Authorisation,
	modified bool,
	err *authDomain.ProcessorError,
) *authDomain.ProcessorResponse {
	resp := p.respond(req, auth, modified)
	resp.Err = err
	return resp
}

// internal hides connector failures behind INTERNAL_ERROR and leaves the authorisation untouched.
func (p *Processor) internal(req *authDomain.ProcessorRequest, err error) *authDomain.ProcessorResponse {
	p.logger.Error("aspsp connector failed",
		slog.String("authorisation_id", req.Authorisation.ID.String()),
		slog.String("consent_id", req.Consent.ID.String()),
		slog.Any("error", err),
	)
	return p.failure(req, req.Authorisation.Clone(), false, authDomain.NewInternalError("aspsp connector failure"))
}

func (p *Processor) finish(
	req *authDomain.ProcessorRequest,
	resp *authDomain.ProcessorResponse,
) *authDomain.ProcessorResponse {
	if resp.Modified {
		resp.Authorisation.UpdatedAt = p.cfg.Now().UTC()
	}
	if resp.HasError() && resp.Err.Kind != authDomain.KindInternal {
		p.logger.Warn("authorisation update rejected",
			slog.String("authorisation_id", req.Authorisation.ID.String()),
			slog.String("consent_id", req.Consent.ID.String()),
			slog.String("sca_approach", string(req.Authorisation.ScaApproach)),
			slog.String("sca_status", string(resp.Authorisation.ScaStatus)),
			slog.String("code", string(resp.Err.Code)),
		)
	}
	return resp
}

// rejectConsent asks for the parent consent to be rejected, except for
// cancellations which never touch the payment they cancel.
func rejectConsent(resp *authDomain.ProcessorResponse) {
	if resp.Authorisation.Type != consentDomain.AuthorisationPisCancellation {
		resp.ConsentStatus = consentDomain.StatusRejected
	}
}
