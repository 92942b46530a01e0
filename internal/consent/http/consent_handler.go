// Package http provides HTTP handlers for consent lifecycle operations.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/consents/internal/consent/domain"
	"github.com/allisson/consents/internal/consent/http/dto"
	"github.com/allisson/consents/internal/consent/usecase"
	"github.com/allisson/consents/internal/httputil"
	customValidation "github.com/allisson/consents/internal/validation"
)

// ConsentHandler handles HTTP requests for consents. Consents are addressed by
// their external id, never by the stored id.
type ConsentHandler struct {
	consentUseCase usecase.ConsentUseCase
	baseURL        string
	now            func() time.Time
	logger         *slog.Logger
}

// NewConsentHandler creates a new consent handler. baseURL prefixes the links
// returned to TPPs.
func NewConsentHandler(consentUseCase usecase.ConsentUseCase, baseURL string, logger *slog.Logger) *ConsentHandler {
	return &ConsentHandler{
		consentUseCase: consentUseCase,
		baseURL:        baseURL,
		now:            time.Now,
		logger:         logger,
	}
}

// CreateHandler creates a RECEIVED consent.
// POST /v1/consents
func (h *ConsentHandler) CreateHandler(c *gin.Context) {
	var req dto.CreateConsentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	consent, externalID, err := h.consentUseCase.Create(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapConsentToResponse(consent, externalID, h.baseURL, h.now()))
}

// GetHandler returns a consent after applying the expiry rules.
// GET /v1/consents/:consentId
func (h *ConsentHandler) GetHandler(c *gin.Context) {
	consentID, ok := h.consentID(c)
	if !ok {
		return
	}

	consent, err := h.consentUseCase.Get(c.Request.Context(), consentID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapConsentToResponse(consent, c.Param("consentId"), h.baseURL, h.now()))
}

// GetStatusHandler returns the consent status.
// GET /v1/consents/:consentId/status
func (h *ConsentHandler) GetStatusHandler(c *gin.Context) {
	consentID, ok := h.consentID(c)
	if !ok {
		return
	}

	consent, err := h.consentUseCase.Get(c.Request.Context(), consentID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ConsentStatusResponse{ConsentStatus: consent.Status})
}

// ListHandler lists the active consents of a TPP, or looks one up by internal request id.
// GET /v1/consents?tppId=...&offset=0&limit=50
// GET /v1/consents?internalRequestId=...
func (h *ConsentHandler) ListHandler(c *gin.Context) {
	if internalRequestID := c.Query("internalRequestId"); internalRequestID != "" {
		consent, err := h.consentUseCase.GetByInternalRequestID(c.Request.Context(), internalRequestID)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		h.respondList(c, []*domain.Consent{consent})
		return
	}

	tppID := c.Query("tppId")
	if tppID == "" {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("tppId or internalRequestId is required"), h.logger)
		return
	}

	page, err := httputil.ParsePage(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	consents, err := h.consentUseCase.ListActiveByTpp(c.Request.Context(), tppID, page.Offset, page.Limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	h.respondList(c, consents)
}

// DeleteHandler terminates a consent on behalf of its TPP.
// DELETE /v1/consents/:consentId
func (h *ConsentHandler) DeleteHandler(c *gin.Context) {
	consentID, ok := h.consentID(c)
	if !ok {
		return
	}

	if _, err := h.consentUseCase.UpdateStatus(c.Request.Context(), consentID, domain.StatusTerminatedByTpp); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// RecordAccessHandler counts one access by the TPP.
// POST /v1/consents/:consentId/accesses
func (h *ConsentHandler) RecordAccessHandler(c *gin.Context) {
	consentID, ok := h.consentID(c)
	if !ok {
		return
	}

	consent, err := h.consentUseCase.RecordAccess(c.Request.Context(), consentID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapConsentToResponse(consent, c.Param("consentId"), h.baseURL, h.now()))
}

// GetDataHandler returns the decrypted consent payload.
// GET /v1/consents/:consentId/data
func (h *ConsentHandler) GetDataHandler(c *gin.Context) {
	consentID, ok := h.consentID(c)
	if !ok {
		return
	}

	data, err := h.consentUseCase.GetData(c.Request.Context(), consentID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, data)
}

// SetDataHandler replaces the consent payload.
// PUT /v1/consents/:consentId/data
func (h *ConsentHandler) SetDataHandler(c *gin.Context) {
	consentID, ok := h.consentID(c)
	if !ok {
		return
	}

	var data domain.Data
	if err := c.ShouldBindJSON(&data); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := h.consentUseCase.SetData(c.Request.Context(), consentID, &data); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// SetAspspAccessHandler stores the account access confirmed by the ASPSP.
// PUT /v1/aspsp/consents/:consentId/access
func (h *ConsentHandler) SetAspspAccessHandler(c *gin.Context) {
	consentID, ok := h.consentID(c)
	if !ok {
		return
	}

	var req dto.UpdateAspspAccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	consent, err := h.consentUseCase.SetAspspAccess(c.Request.Context(), consentID, req.Access)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapConsentToResponse(consent, c.Param("consentId"), h.baseURL, h.now()))
}

// UpdateStatusHandler applies a status change reported by the ASPSP.
// PUT /v1/aspsp/consents/:consentId/status
func (h *ConsentHandler) UpdateStatusHandler(c *gin.Context) {
	consentID, ok := h.consentID(c)
	if !ok {
		return
	}

	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	consent, err := h.consentUseCase.UpdateStatus(c.Request.Context(), consentID, domain.Status(req.ConsentStatus))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.ConsentStatusResponse{ConsentStatus: consent.Status})
}

func (h *ConsentHandler) respondList(c *gin.Context, consents []*domain.Consent) {
	now := h.now()
	response := dto.ListConsentsResponse{Data: make([]dto.ConsentResponse, 0, len(consents))}
	for _, consent := range consents {
		externalID, err := h.consentUseCase.ExternalID(consent.ID)
		if err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		response.Data = append(response.Data, dto.MapConsentToResponse(consent, externalID, h.baseURL, now))
	}
	c.JSON(http.StatusOK, response)
}

func (h *ConsentHandler) consentID(c *gin.Context) (uuid.UUID, bool) {
	consentID, err := h.consentUseCase.ResolveExternalID(c.Param("consentId"))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return uuid.Nil, false
	}
	return consentID, true
}
