// Package http provides HTTP handlers for the SCA authorisation endpoints of
// consents and payments.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/consents/internal/authorisation/http/dto"
	authUseCase "github.com/allisson/consents/internal/authorisation/usecase"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
	consentUseCase "github.com/allisson/consents/internal/consent/usecase"
	"github.com/allisson/consents/internal/httputil"
	customValidation "github.com/allisson/consents/internal/validation"
)

// ExternalIDResolver turns the consent ids handed out to TPPs back into consent ids.
type ExternalIDResolver interface {
	ResolveExternalID(externalID string) (uuid.UUID, error)
}

// AuthorisationHandler handles HTTP requests for SCA authorisations.
type AuthorisationHandler struct {
	authorisationUseCase authUseCase.AuthorisationUseCase
	resolver             ExternalIDResolver
	logger               *slog.Logger
}

// NewAuthorisationHandler creates a new authorisation handler.
func NewAuthorisationHandler(
	authorisationUseCase authUseCase.AuthorisationUseCase,
	resolver ExternalIDResolver,
	logger *slog.Logger,
) *AuthorisationHandler {
	return &AuthorisationHandler{
		authorisationUseCase: authorisationUseCase,
		resolver:             resolver,
		logger:               logger,
	}
}

var _ ExternalIDResolver = (consentUseCase.ConsentUseCase)(nil)

// StartHandler starts an authorisation on a consent or payment.
// POST /v1/consents/:consentId/authorisations
func (h *AuthorisationHandler) StartHandler(c *gin.Context) {
	consentID, ok := h.consentID(c, "consentId")
	if !ok {
		return
	}
	input, ok := h.bindStart(c)
	if !ok {
		return
	}

	result, err := h.authorisationUseCase.Create(c.Request.Context(), consentID, input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapResultToResponse(result))
}

// StartCancellationHandler starts the cancellation authorisation of a payment.
// POST /v1/payments/:paymentId/cancellation-authorisations
func (h *AuthorisationHandler) StartCancellationHandler(c *gin.Context) {
	paymentID, ok := h.consentID(c, "paymentId")
	if !ok {
		return
	}
	input, ok := h.bindStart(c)
	if !ok {
		return
	}

	result, err := h.authorisationUseCase.CreateCancellation(c.Request.Context(), paymentID, input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapResultToResponse(result))
}

// UpdateHandler applies one PSU step to an authorisation.
// PUT /v1/consents/:consentId/authorisations/:authorisationId
// PUT /v1/payments/:paymentId/cancellation-authorisations/:authorisationId
func (h *AuthorisationHandler) UpdateHandler(parentParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		consentID, authorisationID, ok := h.ids(c, parentParam)
		if !ok {
			return
		}

		var req dto.UpdateAuthorisationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return
		}
		if err := req.Validate(); err != nil {
			httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
			return
		}

		result, err := h.authorisationUseCase.Update(c.Request.Context(), consentID, authorisationID, req.ToDomain())
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}

		c.JSON(http.StatusOK, dto.MapResultToResponse(result))
	}
}

// GetScaStatusHandler returns the SCA status of an authorisation.
// GET /v1/consents/:consentId/authorisations/:authorisationId
// GET /v1/payments/:paymentId/cancellation-authorisations/:authorisationId
func (h *AuthorisationHandler) GetScaStatusHandler(parentParam string) gin.HandlerFunc {
	return func(c *gin.Context) {
		consentID, authorisationID, ok := h.ids(c, parentParam)
		if !ok {
			return
		}

		result, err := h.authorisationUseCase.GetScaStatus(c.Request.Context(), consentID, authorisationID)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}

		c.JSON(http.StatusOK, dto.ScaStatusResponse{ScaStatus: result.Authorisation.ScaStatus})
	}
}

// ConfirmHandler checks the confirmation code of an UNCONFIRMED authorisation.
// PUT /v1/consents/:consentId/authorisations/:authorisationId/confirmation
func (h *AuthorisationHandler) ConfirmHandler(c *gin.Context) {
	consentID, authorisationID, ok := h.ids(c, "consentId")
	if !ok {
		return
	}

	var req dto.ConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.authorisationUseCase.Confirm(c.Request.Context(), consentID, authorisationID, req.ConfirmationCode)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapResultToResponse(result))
}

// AspspStatusHandler applies the outcome of a redirect or decoupled
// authorisation reported by the ASPSP.
// PUT /v1/aspsp/authorisations/:authorisationId/status
func (h *AuthorisationHandler) AspspStatusHandler(c *gin.Context) {
	authorisationID, err := uuid.Parse(c.Param("authorisationId"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid authorisation id"), h.logger)
		return
	}

	var req dto.AspspStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	result, err := h.authorisationUseCase.UpdateScaStatusFromAspsp(
		c.Request.Context(),
		authorisationID,
		consentDomain.ScaStatus(req.ScaStatus),
		req.ConfirmationCode,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapResultToResponse(result))
}

func (h *AuthorisationHandler) bindStart(c *gin.Context) (authUseCase.CreateInput, bool) {
	var req dto.StartAuthorisationRequest
	// the body is optional when starting an authorisation
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return authUseCase.CreateInput{}, false
		}
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return authUseCase.CreateInput{}, false
	}
	return req.ToInput(), true
}

// consentID resolves the external consent or payment id found in param.
func (h *AuthorisationHandler) consentID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := h.resolver.ResolveExternalID(c.Param(param))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return uuid.Nil, false
	}
	return id, true
}

func (h *AuthorisationHandler) ids(c *gin.Context, parentParam string) (uuid.UUID, uuid.UUID, bool) {
	consentID, ok := h.consentID(c, parentParam)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	authorisationID, err := uuid.Parse(c.Param("authorisationId"))
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid authorisation id"), h.logger)
		return uuid.Nil, uuid.Nil, false
	}
	return consentID, authorisationID, true
}
