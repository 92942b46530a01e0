package service

import (
	"context"

	authDomain "github.com/allisson/consents/internal/authorisation/domain"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
)

// stageMap wires every (approach, status) pair to its stage.
func (p *Processor) stageMap() map[StageKey]Stage {
	stages := make(map[StageKey]Stage)
	set := func(approach consentDomain.ScaApproach, stage Stage, statuses ...consentDomain.ScaStatus) {
		for _, status := range statuses {
			stages[StageKey{Approach: approach, Status: status}] = stage
		}
	}

	for _, approach := range consentDomain.ScaApproaches {
		set(approach, p.finalisedStage,
			consentDomain.ScaFinalised, consentDomain.ScaFailed, consentDomain.ScaExempted)
		set(approach, p.unconfirmedStage, consentDomain.ScaUnconfirmed)
	}

	set(consentDomain.ScaApproachEmbedded, p.embeddedStartStage,
		consentDomain.ScaReceived, consentDomain.ScaPsuIdentified, consentDomain.ScaStarted)
	set(consentDomain.ScaApproachEmbedded, p.selectMethodStage, consentDomain.ScaPsuAuthenticated)
	set(consentDomain.ScaApproachEmbedded, p.verifyScaStage, consentDomain.ScaMethodSelected)

	set(consentDomain.ScaApproachDecoupled, p.decoupledStartStage,
		consentDomain.ScaReceived, consentDomain.ScaPsuIdentified, consentDomain.ScaStarted)
	set(consentDomain.ScaApproachDecoupled, p.selectMethodStage, consentDomain.ScaPsuAuthenticated)
	set(consentDomain.ScaApproachDecoupled, p.awaitAspspStage, consentDomain.ScaMethodSelected)

	set(consentDomain.ScaApproachRedirect, p.redirectStage,
		consentDomain.ScaReceived,
		consentDomain.ScaPsuIdentified,
		consentDomain.ScaPsuAuthenticated,
		consentDomain.ScaMethodSelected,
		consentDomain.ScaStarted,
	)

	return stages
}

func (p *Processor) finalisedStage(_ context.Context, req *authDomain.ProcessorRequest) *authDomain.ProcessorResponse {
	return p.failure(req, req.Authorisation.Clone(), false, authDomain.NewStateConflictError(
		authDomain.CodeStatusInvalid, "authorisation is "+string(req.Authorisation.ScaStatus),
	))
}

func (p *Processor) unconfirmedStage(_ context.Context, req *authDomain.ProcessorRequest) *authDomain.ProcessorResponse {
	return p.failure(req, req.Authorisation.Clone(), false, authDomain.NewStateConflictError(
		authDomain.CodeStatusInvalid, "authorisation awaits confirmation",
	))
}

// embeddedStartStage identifies and then authenticates the PSU.
func (p *Processor) embeddedStartStage(
	ctx context.Context,
	req *authDomain.ProcessorRequest,
) *authDomain.ProcessorResponse {
	auth, errResp := p.identify(req)
	if errResp != nil {
		return errResp
	}

	if req.Update.Password == "" {
		if !req.Update.IsIdentificationOnly() {
			return p.failure(req, req.Authorisation.Clone(), false, authDomain.NewValidationError(
				authDomain.CodeFormatError, "psu password is required",
			))
		}
		if auth.ScaStatus != consentDomain.ScaReceived {
			return p.respond(req, auth, false)
		}
		auth.ScaStatus = consentDomain.ScaPsuIdentified
		return p.respond(req, auth, true)
	}

	return p.authenticate(ctx, req, auth)
}

// decoupledStartStage authenticates the PSU when a password is given, otherwise
// hands the whole authorisation to the ASPSP app.
func (p *Processor) decoupledStartStage(
	ctx context.Context,
	req *authDomain.ProcessorRequest,
) *authDomain.ProcessorResponse {
	auth, errResp := p.identify(req)
	if errResp != nil {
		return errResp
	}

	if req.Update.Password != "" {
		return p.authenticate(ctx, req, auth)
	}
	return p.startDecoupled(ctx, req, auth, nil)
}

func (p *Processor) selectMethodStage(
	ctx context.Context,
	req *authDomain.ProcessorRequest,
) *authDomain.ProcessorResponse {
	auth := req.Authorisation.Clone()

	methodID := req.Update.AuthenticationMethodID
	if methodID == "" {
		return p.failure(req, auth, false, authDomain.NewValidationError(
			authDomain.CodeFormatError, "authenticationMethodId is required",
		))
	}

	method, ok := auth.FindScaMethod(methodID)
	if !ok {
		return p.failure(req, auth, false, authDomain.NewValidationError(
			authDomain.CodeScaMethodUnknown, "unknown authentication method "+methodID,
		))
	}
	return p.chooseMethod(ctx, req, auth, method)
}

func (p *Processor) verifyScaStage(
	ctx context.Context,
	req *authDomain.ProcessorRequest,
) *authDomain.ProcessorResponse {
	auth := req.Authorisation.Clone()

	code := req.Update.ScaAuthenticationData
	if code == "" {
		return p.failure(req, auth, false, authDomain.NewValidationError(
			authDomain.CodeFormatError, "scaAuthenticationData is required",
		))
	}

	outcome, err := p.connector.VerifyScaAuthorisation(ctx, req.Consent, auth, code)
	if err != nil {
		return p.internal(req, err)
	}

	switch outcome {
	case OutcomeSuccess:
		auth.ScaStatus = consentDomain.ScaFinalised
		auth.OtpHash = ""
		return p.respond(req, auth, true)
	case OutcomeAttemptFailure:
		return p.attemptFailed(req, auth, authDomain.CodeScaInvalid, "sca authentication data invalid")
	default:
		auth.ScaStatus = consentDomain.ScaFailed
		auth.OtpHash = ""
		return p.failure(req, auth, true, authDomain.NewValidationError(
			authDomain.CodeScaInvalid, "sca authentication data rejected",
		))
	}
}

// awaitAspspStage answers updates while the ASPSP completes a decoupled authorisation.
func (p *Processor) awaitAspspStage(_ context.Context, req *authDomain.ProcessorRequest) *authDomain.ProcessorResponse {
	resp := p.respond(req, req.Authorisation.Clone(), false)
	resp.PsuMessage = "authorisation is pending at the ASPSP"
	return resp
}

// redirectStage only records the PSU identity. Redirect authorisations are
// completed by the ASPSP and reported through ApplyAspspStatus.
func (p *Processor) redirectStage(_ context.Context, req *authDomain.ProcessorRequest) *authDomain.ProcessorResponse {
	auth := req.Authorisation.Clone()
	update := req.Update

	if update.Password != "" || update.AuthenticationMethodID != "" || update.ScaAuthenticationData != "" {
		return p.failure(req, auth, false, authDomain.NewValidationError(
			authDomain.CodeFormatError, "redirect authorisations are completed at the ASPSP",
		))
	}

	if !update.PsuData.IsEmpty() && auth.PsuData.IsEmpty() {
		auth.PsuData = update.PsuData
		if auth.ScaStatus == consentDomain.ScaReceived {
			auth.ScaStatus = consentDomain.ScaPsuIdentified
		}
		return p.respond(req, auth, true)
	}
	return p.respond(req, auth, false)
}

// identify resolves the PSU of the update, falling back to the one stored on the authorisation.
func (p *Processor) identify(
	req *authDomain.ProcessorRequest,
) (consentDomain.Authorisation, *authDomain.ProcessorResponse) {
	auth := req.Authorisation.Clone()

	psu := req.Update.PsuData
	if psu.IsEmpty() {
		psu = auth.PsuData
	}
	if psu.IsEmpty() {
		return auth, p.failure(req, auth, false, authDomain.NewValidationError(
			authDomain.CodeFormatErrorNoPsu, "psu identification is required",
		))
	}

	auth.PsuData = psu
	return auth, nil
}

// authenticate checks the PSU password, then offers or selects the SCA method.
func (p *Processor) authenticate(
	ctx context.Context,
	req *authDomain.ProcessorRequest,
	auth consentDomain.Authorisation,
) *authDomain.ProcessorResponse {
	result, err := p.connector.AuthorisePsu(ctx, req.Consent, auth.PsuData, req.Update.Password)
	if err != nil {
		return p.internal(req, err)
	}

	switch result.Outcome {
	case OutcomeSuccess:
	case OutcomeAttemptFailure:
		return p.attemptFailed(req, auth, authDomain.CodePsuCredentialsInvalid, "psu credentials invalid")
	default:
		auth.ScaStatus = consentDomain.ScaFailed
		return p.failure(req, auth, true, authDomain.NewValidationError(
			authDomain.CodePsuCredentialsInvalid, "psu credentials rejected",
		))
	}

	if result.ScaExempted {
		auth.ScaStatus = consentDomain.ScaExempted
		return p.respond(req, auth, true)
	}

	methods, err := p.connector.RequestAvailableScaMethods(ctx, req.Consent, auth.PsuData)
	if err != nil {
		return p.internal(req, err)
	}

	switch len(methods) {
	case 0:
		auth.ScaStatus = consentDomain.ScaFailed
		resp := p.failure(req, auth, true, authDomain.NewValidationError(
			authDomain.CodeScaMethodUnknown, "psu has no sca methods",
		))
		rejectConsent(resp)
		return resp
	case 1:
		auth.AvailableScaMethods = methods
		return p.chooseMethod(ctx, req, auth, methods[0])
	default:
		auth.AvailableScaMethods = methods
		auth.ScaStatus = consentDomain.ScaPsuAuthenticated
		return p.respond(req, auth, true)
	}
}

// chooseMethod sends the challenge of method, or switches to the decoupled
// approach for a decoupled method.
func (p *Processor) chooseMethod(
	ctx context.Context,
	req *authDomain.ProcessorRequest,
	auth consentDomain.Authorisation,
	method consentDomain.ScaMethod,
) *authDomain.ProcessorResponse {
	if method.Decoupled || auth.ScaApproach == consentDomain.ScaApproachDecoupled {
		auth.ScaApproach = consentDomain.ScaApproachDecoupled
		return p.startDecoupled(ctx, req, auth, &method)
	}

	code, err := p.connector.RequestAuthorisationCode(ctx, req.Consent, auth.PsuData, method)
	if err != nil {
		return p.internal(req, err)
	}

	auth.ChosenScaMethod = &method
	if code.ScaExempted {
		auth.ScaStatus = consentDomain.ScaExempted
		return p.respond(req, auth, true)
	}

	auth.ChallengeData = code.ChallengeData
	auth.OtpHash = code.OtpHash
	auth.ScaStatus = consentDomain.ScaMethodSelected

	resp := p.respond(req, auth, true)
	resp.PsuMessage = code.PsuMessage
	return resp
}

func (p *Processor) startDecoupled(
	ctx context.Context,
	req *authDomain.ProcessorRequest,
	auth consentDomain.Authorisation,
	method *consentDomain.ScaMethod,
) *authDomain.ProcessorResponse {
	result, err := p.connector.StartDecoupled(ctx, req.Consent, auth.PsuData, method)
	if err != nil {
		return p.internal(req, err)
	}

	auth.ChosenScaMethod = method
	auth.ScaStatus = consentDomain.ScaMethodSelected

	resp := p.respond(req, auth, true)
	resp.PsuMessage = result.PsuMessage
	return resp
}

// attemptFailed counts a wrong credential and fails the authorisation once the limit is reached.
func (p *Processor) attemptFailed(
	req *authDomain.ProcessorRequest,
	auth consentDomain.Authorisation,
	code authDomain.ErrorCode,
	message string,
) *authDomain.ProcessorResponse {
	auth.FailedAttempts++
	if p.cfg.MaxFailedAttempts > 0 && auth.FailedAttempts >= p.cfg.MaxFailedAttempts {
		auth.ScaStatus = consentDomain.ScaFailed
		auth.OtpHash = ""
	}
	return p.failure(req, auth, true, authDomain.NewValidationError(code, message))
}
