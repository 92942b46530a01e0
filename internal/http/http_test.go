package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authorisationHTTP "github.com/allisson/consents/internal/authorisation/http"
	authorisationMocks "github.com/allisson/consents/internal/authorisation/usecase/mocks"
	"github.com/allisson/consents/internal/config"
	consentDomain "github.com/allisson/consents/internal/consent/domain"
	consentHTTP "github.com/allisson/consents/internal/consent/http"
	consentMocks "github.com/allisson/consents/internal/consent/usecase/mocks"
	"github.com/allisson/consents/internal/metrics"
)

// TestMain sets Gin to test mode for all tests in this package.
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// createTestServer creates a test server without database.
func createTestServer() *Server {
	return NewServer(nil, "localhost", 8080, discardLogger())
}

// createMinimalRouter creates a router with only the health routes registered.
func createMinimalRouter(server *Server) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(server.logger))

	router.GET("/health", server.healthHandler)
	router.GET("/ready", server.readinessHandler)

	return router
}

type apiFixture struct {
	server         *Server
	consentUseCase *consentMocks.MockConsentUseCase
	authUseCase    *authorisationMocks.MockAuthorisationUseCase
}

func setupAPI(t *testing.T, cfg *config.Config) *apiFixture {
	t.Helper()

	logger := discardLogger()
	consentUseCase := &consentMocks.MockConsentUseCase{}
	authUseCase := &authorisationMocks.MockAuthorisationUseCase{}
	t.Cleanup(func() {
		consentUseCase.AssertExpectations(t)
		authUseCase.AssertExpectations(t)
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	server := NewServer(nil, "localhost", 8080, logger)
	server.SetupRouter(
		ctx,
		cfg,
		consentHTTP.NewConsentHandler(consentUseCase, "http://localhost:8080", logger),
		authorisationHTTP.NewAuthorisationHandler(authUseCase, consentUseCase, logger),
		nil,
	)

	return &apiFixture{server: server, consentUseCase: consentUseCase, authUseCase: authUseCase}
}

func (f *apiFixture) do(method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "192.0.2.10:4711"
	f.server.GetHandler().ServeHTTP(w, req)
	return w
}

func TestHealthHandler(t *testing.T) {
	server := createTestServer()

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	server.healthHandler(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, w.Body.String())
}

func TestReadinessHandler(t *testing.T) {
	t.Run("NotReady_NilDB", func(t *testing.T) {
		server := createTestServer()

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

		server.readinessHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "not_ready", response["status"])

		components, ok := response["components"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "error", components["database"])
	})

	t.Run("Ready_DatabaseReachable", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		mock.ExpectPing()

		server := NewServer(db, "localhost", 8080, discardLogger())

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

		server.readinessHandler(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ready","components":{"database":"ok"}}`, w.Body.String())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("NotReady_PingFails", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		mock.ExpectPing().WillReturnError(assert.AnError)

		server := NewServer(db, "localhost", 8080, discardLogger())

		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/ready", nil)

		server.readinessHandler(c)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestCustomLoggerMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"test"}`, w.Body.String())
}

func TestRecoveryMiddleware(t *testing.T) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(CustomLoggerMiddleware(discardLogger()))
	router.GET("/panic", func(c *gin.Context) {
		panic("test panic")
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRouter_HealthChecks(t *testing.T) {
	server := createTestServer()
	router := createMinimalRouter(server)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nonexistent", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRequestIDMiddleware_HeaderPresent(t *testing.T) {
	server := createTestServer()
	router := createMinimalRouter(server)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	requestID := w.Header().Get("X-Request-Id")
	require.NotEmpty(t, requestID)
	parsed, err := uuid.Parse(requestID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
}

func TestServer_StartWithoutRouter(t *testing.T) {
	server := createTestServer()
	assert.Error(t, server.Start(context.Background()))
}

func TestServer_ShutdownGracefully(t *testing.T) {
	server := NewServer(nil, "127.0.0.1", 0, discardLogger())
	server.router = createMinimalRouter(server)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(context.Background())
	}()

	time.Sleep(100 * time.Millisecond)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	require.NoError(t, server.Shutdown(shutdownCtx))

	select {
	case err := <-errChan:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestSetupRouter_ConsentRoutes(t *testing.T) {
	api := setupAPI(t, &config.Config{})
	consentID := uuid.New()

	api.consentUseCase.On("ResolveExternalID", "ext-1").Return(consentID, nil).Once()
	api.consentUseCase.On("Get", mock.Anything, consentID).
		Return(&consentDomain.Consent{ID: consentID, Status: consentDomain.StatusValid}, nil).
		Once()

	w := api.do(http.MethodGet, "/v1/consents/ext-1/status")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"consentStatus":"VALID"}`, w.Body.String())
}

func TestSetupRouter_AuthorisationRateLimit(t *testing.T) {
	api := setupAPI(t, &config.Config{
		RateLimitEnabled:        true,
		RateLimitRequestsPerSec: 0.01,
		RateLimitBurst:          1,
	})

	api.consentUseCase.On("ResolveExternalID", "unknown").Return(uuid.Nil, consentDomain.ErrConsentNotFound).Once()

	first := api.do(http.MethodPost, "/v1/consents/unknown/authorisations")
	assert.Equal(t, http.StatusNotFound, first.Code)

	second := api.do(http.MethodPost, "/v1/consents/unknown/authorisations")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))

	// consent routes are not throttled
	api.consentUseCase.On("ResolveExternalID", "unknown").Return(uuid.Nil, consentDomain.ErrConsentNotFound).Once()
	third := api.do(http.MethodGet, "/v1/consents/unknown")
	assert.Equal(t, http.StatusNotFound, third.Code)
}

func TestSetupRouter_NoMetricsEndpoint(t *testing.T) {
	api := setupAPI(t, &config.Config{})

	w := api.do(http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsServer_Endpoints(t *testing.T) {
	provider, err := metrics.NewProvider("test_app")
	require.NoError(t, err)
	defer func() {
		assert.NoError(t, provider.Shutdown(context.Background()))
	}()

	metricsServer := NewMetricsServer("localhost", 8081, discardLogger(), provider)

	w := httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	w = httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	metricsServer.GetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/consents", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListener_ServeFailure(t *testing.T) {
	l := newListener("metrics server", "127.0.0.1", -1, discardLogger())

	err := l.serve(http.NotFoundHandler())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start metrics server")
}
