package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/consents/internal/errors"
)

type testCodedError struct {
	code    string
	message string
	cause   error
}

func (e *testCodedError) Error() string        { return e.code + ": " + e.message }
func (e *testCodedError) ErrorCode() string    { return e.code }
func (e *testCodedError) ErrorMessage() string { return e.message }
func (e *testCodedError) Unwrap() error        { return e.cause }

func runHandleError(t *testing.T, err error) (*httptest.ResponseRecorder, ErrorResponse) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleErrorGin(c, err, slog.New(slog.NewTextHandler(io.Discard, nil)))

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return w, response
}

func TestHandleErrorGin(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		errorName  string
	}{
		{"not found", apperrors.Wrap(apperrors.ErrNotFound, "consent not found"), http.StatusNotFound, "not_found"},
		{"conflict", apperrors.Wrap(apperrors.ErrConflict, "consent is finalised"), http.StatusConflict, "conflict"},
		{"invalid input", apperrors.ErrInvalidInput, http.StatusUnprocessableEntity, "invalid_input"},
		{"unauthorized", apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", apperrors.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"internal", errors.New("database is down"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, response := runHandleError(t, tt.err)

			assert.Equal(t, tt.statusCode, w.Code)
			assert.Equal(t, tt.errorName, response.Error)
			assert.Empty(t, response.Code)
		})
	}
}

func TestHandleErrorGin_InternalDetailsHidden(t *testing.T) {
	_, response := runHandleError(t, errors.New("pq: password authentication failed"))
	assert.Equal(t, "An internal error occurred", response.Message)
}

func TestHandleErrorGin_CodedError(t *testing.T) {
	err := fmt.Errorf("update failed: %w", &testCodedError{
		code:    "PSU_CREDENTIALS_INVALID",
		message: "psu credentials are invalid",
		cause:   apperrors.ErrUnauthorized,
	})

	w, response := runHandleError(t, err)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "unauthorized", response.Error)
	assert.Equal(t, "PSU_CREDENTIALS_INVALID", response.Code)
	assert.Equal(t, "psu credentials are invalid", response.Message)
}

func TestHandleErrorGin_RequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(requestid.New(requestid.WithGenerator(func() string { return "req-42" })))
	router.GET("/", func(c *gin.Context) {
		HandleErrorGin(c, apperrors.ErrNotFound, nil)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "req-42", response.RequestID)
}

func TestHandleErrorGin_InvalidInputShowsReason(t *testing.T) {
	_, response := runHandleError(t, apperrors.Wrap(apperrors.ErrInvalidInput, "frequencyPerDay must be positive"))
	assert.Equal(t, "frequencyPerDay must be positive: invalid input", response.Message)
}

func TestHandleErrorGin_NilError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	HandleErrorGin(c, nil, nil)

	assert.Empty(t, w.Body.String())
}

func TestHandleValidationErrorGin(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleValidationErrorGin(c, errors.New("scaApproach: must be one of REDIRECT, DECOUPLED or EMBEDDED."), nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")
}

func TestHandleBadRequestGin(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	HandleBadRequestGin(c, errors.New("invalid consent id"), nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "bad_request")
}
