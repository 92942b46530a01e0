package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// corsPreflightMaxAge is how long browsers may cache a preflight answer.
const corsPreflightMaxAge = 12 * time.Hour

// createCORSMiddleware returns a CORS middleware for the configured origins,
// or nil when CORS is disabled or no origin is configured.
//
// CORS is disabled by default since TPPs call the API server to server. A
// PSU-facing SCA page hosted on another origin is the usual reason to enable it.
func createCORSMiddleware(enabled bool, allowOrigins string, logger *slog.Logger) gin.HandlerFunc {
	if !enabled {
		return nil
	}

	origins := splitOrigins(allowOrigins)
	if len(origins) == 0 {
		logger.Warn("CORS enabled but no origins configured, CORS will not be applied")
		return nil
	}

	logger.Info("CORS enabled", slog.Any("origins", origins))

	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Content-Type", "X-Request-Id"},
		// Retry-After is set by the authorisation rate limiter.
		ExposeHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:        corsPreflightMaxAge,
	})
}

// splitOrigins splits a comma-separated origin list, dropping blanks.
func splitOrigins(raw string) []string {
	var origins []string
	for origin := range strings.SplitSeq(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
