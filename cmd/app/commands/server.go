package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/consents/internal/app"
	"github.com/allisson/consents/internal/config"
)

// runnable is a long-running server started and stopped by the server command.
type runnable interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// sweeper runs work on an interval until its context is done.
type sweeper interface {
	Start(ctx context.Context) error
}

// namedServer pairs a runnable with the name used in errors and logs.
type namedServer struct {
	name   string
	server runnable
}

// RunServer starts the API server, the optional metrics server and the
// expiration sweeps. Blocks until receiving SIGINT/SIGTERM or until one of
// them fails, then stops everything within DBConnMaxLifetime.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()
	if cfg.ExpirationSweepEnabled && cfg.ExpirationSweepInterval <= 0 {
		return errors.New("EXPIRATION_SWEEP_INTERVAL_SECONDS must be positive when sweeps are enabled")
	}

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	server, err := container.HTTPServer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	servers := []namedServer{{name: "api server", server: server}}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}
	if metricsServer != nil {
		servers = append(servers, namedServer{name: "metrics server", server: metricsServer})
	}

	var expiration sweeper
	if cfg.ExpirationSweepEnabled {
		useCase, err := container.ExpirationUseCase()
		if err != nil {
			return fmt.Errorf("failed to initialize expiration sweeps: %w", err)
		}
		expiration = useCase
	} else {
		logger.Info("expiration sweeps disabled")
	}

	return serve(ctx, logger, cfg.DBConnMaxLifetime, servers, expiration)
}

// serve runs every server and the sweeper until ctx is done or one of them
// fails. All servers are shut down in both cases.
func serve(
	ctx context.Context,
	logger *slog.Logger,
	shutdownTimeout time.Duration,
	servers []namedServer,
	expiration sweeper,
) error {
	g, gctx := errgroup.WithContext(ctx)

	for _, s := range servers {
		g.Go(func() error {
			if err := s.server.Start(gctx); err != nil {
				return fmt.Errorf("%s error: %w", s.name, err)
			}
			return nil
		})
	}

	if expiration != nil {
		g.Go(func() error {
			err := expiration.Start(gctx)
			if gctx.Err() != nil {
				return nil
			}
			if err != nil {
				return fmt.Errorf("expiration sweeps error: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("shutdown signal received")
		} else {
			logger.Error("server error, initiating shutdown")
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		var shutdownErrors []error
		for _, s := range servers {
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("%s shutdown: %w", s.name, err))
			}
		}
		return errors.Join(shutdownErrors...)
	})

	return g.Wait()
}
