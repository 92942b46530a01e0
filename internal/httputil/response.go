// Package httputil holds the request parsing and error rendering shared by
// the consent and authorisation handlers.
package httputil

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/consents/internal/errors"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// codedError is implemented by errors that carry a stable code for the TPP.
type codedError interface {
	error
	ErrorCode() string
	ErrorMessage() string
}

type errorMapping struct {
	sentinel error
	status   int
	name     string
	// message is the fixed client message; empty means err.Error() is shown.
	message string
}

// errorMappings is checked in order, the first sentinel found in the chain wins.
var errorMappings = []errorMapping{
	{apperrors.ErrNotFound, http.StatusNotFound, "not_found", "The requested resource was not found"},
	{apperrors.ErrConflict, http.StatusConflict, "conflict", "A conflict occurred with existing data"},
	{apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input", ""},
	{apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Authentication is required"},
	{apperrors.ErrForbidden, http.StatusForbidden, "forbidden", "You don't have permission to access this resource"},
}

func mapError(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if !apperrors.Is(err, m.sentinel) {
			continue
		}
		message := m.message
		if message == "" {
			message = err.Error()
		}
		return m.status, ErrorResponse{Error: m.name, Message: message}
	}
	// internal details never reach the client
	return http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "An internal error occurred"}
}

// HandleErrorGin renders err with the status of the first matching domain
// sentinel. Errors carrying a code (authorisation processor errors) keep their
// code and message. Server errors are logged at error level, client errors at
// warn level.
func HandleErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	status, response := mapError(err)
	var coded codedError
	if apperrors.As(err, &coded) {
		response.Code = coded.ErrorCode()
		response.Message = coded.ErrorMessage()
	}

	if logger != nil {
		level := slog.LevelWarn
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.LogAttrs(c.Request.Context(), level, "request failed",
			slog.Int("status_code", status),
			slog.String("error_code", response.Error),
			slog.String("code", response.Code),
			slog.String("request_id", requestid.Get(c)),
			slog.Any("error", err),
		)
	}

	writeError(c, status, response)
}

// HandleBadRequestGin answers 400 for malformed JSON, ids or parameters.
func HandleBadRequestGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("bad request", slog.Any("error", err))
	}
	writeError(c, http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
}

// HandleValidationErrorGin answers 422 for request bodies that fail validation.
func HandleValidationErrorGin(c *gin.Context, err error, logger *slog.Logger) {
	if logger != nil {
		logger.Warn("validation failed", slog.Any("error", err))
	}
	writeError(c, http.StatusUnprocessableEntity, ErrorResponse{Error: "validation_error", Message: err.Error()})
}

func writeError(c *gin.Context, status int, response ErrorResponse) {
	response.RequestID = requestid.Get(c)
	c.JSON(status, response)
}
