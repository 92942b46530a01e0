package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/consents/internal/metrics"
)

// MetricsServer exposes /metrics on its own port so scrapes never reach the
// consent API.
type MetricsServer struct {
	listener
	router *gin.Engine
}

func NewMetricsServer(host string, port int, logger *slog.Logger, provider *metrics.Provider) *MetricsServer {
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/metrics", gin.WrapH(provider.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	return &MetricsServer{
		listener: newListener("metrics server", host, port, logger),
		router:   router,
	}
}

func (s *MetricsServer) GetHandler() http.Handler {
	return s.router
}

func (s *MetricsServer) Start(ctx context.Context) error {
	return s.serve(s.router)
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.shutdown(ctx)
}
