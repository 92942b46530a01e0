// Package http provides HTTP server implementation and request handlers.
package http

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authorisationHTTP "github.com/allisson/consents/internal/authorisation/http"
	"github.com/allisson/consents/internal/config"
	consentHTTP "github.com/allisson/consents/internal/consent/http"
	"github.com/allisson/consents/internal/metrics"
)

// Server serves the consent and authorisation API.
type Server struct {
	listener
	db     *sql.DB
	router *gin.Engine
}

// NewServer creates a new HTTP server. The router is built by SetupRouter.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		listener: newListener("http server", host, port, logger),
		db:       db,
	}
}

// SetupRouter registers the middleware chain and every route of the API.
// The rate limiter housekeeping stops when ctx is done.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	consentHandler *consentHTTP.ConsentHandler,
	authorisationHandler *authorisationHTTP.AuthorisationHandler,
	metricsProvider *metrics.Provider,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}
	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	// Authorisation endpoints are reachable by PSU-facing frontends, throttle them per client IP
	var authorisationMiddleware []gin.HandlerFunc
	if cfg.RateLimitEnabled {
		authorisationMiddleware = append(
			authorisationMiddleware,
			RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger),
		)
	}

	v1 := router.Group("/v1")

	consents := v1.Group("/consents")
	{
		consents.POST("", consentHandler.CreateHandler)
		consents.GET("", consentHandler.ListHandler)
		consents.GET("/:consentId", consentHandler.GetHandler)
		consents.DELETE("/:consentId", consentHandler.DeleteHandler)
		consents.GET("/:consentId/status", consentHandler.GetStatusHandler)
		consents.POST("/:consentId/accesses", consentHandler.RecordAccessHandler)
		consents.GET("/:consentId/data", consentHandler.GetDataHandler)
		consents.PUT("/:consentId/data", consentHandler.SetDataHandler)

		authorisations := consents.Group("/:consentId/authorisations", authorisationMiddleware...)
		authorisations.POST("", authorisationHandler.StartHandler)
		authorisations.PUT("/:authorisationId", authorisationHandler.UpdateHandler("consentId"))
		authorisations.GET("/:authorisationId", authorisationHandler.GetScaStatusHandler("consentId"))
		authorisations.PUT("/:authorisationId/confirmation", authorisationHandler.ConfirmHandler)
	}

	cancellations := v1.Group("/payments/:paymentId/cancellation-authorisations", authorisationMiddleware...)
	{
		cancellations.POST("", authorisationHandler.StartCancellationHandler)
		cancellations.PUT("/:authorisationId", authorisationHandler.UpdateHandler("paymentId"))
		cancellations.GET("/:authorisationId", authorisationHandler.GetScaStatusHandler("paymentId"))
	}

	aspsp := v1.Group("/aspsp")
	{
		aspsp.PUT("/consents/:consentId/access", consentHandler.SetAspspAccessHandler)
		aspsp.PUT("/consents/:consentId/status", consentHandler.UpdateStatusHandler)
		aspsp.PUT("/authorisations/:authorisationId/status", authorisationHandler.AspspStatusHandler)
	}

	s.router = router
}

// GetHandler returns the http.Handler for testing purposes.
func (s *Server) GetHandler() http.Handler {
	return s.router
}

// Start serves the router configured by SetupRouter until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return errors.New("router is not configured")
	}
	return s.serve(s.router)
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	database := "ok"
	if s.db == nil {
		database = "error"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("database ping failed", slog.Any("error", err))
			database = "error"
		}
	}

	status, code := "ready", http.StatusOK
	if database != "ok" {
		status, code = "not_ready", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":     status,
		"components": gin.H{"database": database},
	})
}
