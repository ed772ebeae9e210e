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

	"github.com/careops/scheduling/internal/app"
	"github.com/careops/scheduling/internal/config"
)

const shutdownTimeout = 30 * time.Second

// RunServer starts the HTTP API server together with the metrics server, the
// outbox dispatcher and the idempotency sweeper. Blocks until SIGINT/SIGTERM
// or a fatal error, then shuts everything down gracefully.
func RunServer(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting server", slog.String("version", version))

	defer closeContainer(container, logger)

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	metricsServer, err := container.MetricsServer()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics server: %w", err)
	}

	outboxUseCase, err := container.OutboxUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox use case: %w", err)
	}

	idempotencyUseCase, err := container.IdempotencyUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize idempotency use case: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := server.Start(groupCtx); err != nil {
			return fmt.Errorf("api server error: %w", err)
		}
		return nil
	})

	if metricsServer != nil {
		group.Go(func() error {
			if err := metricsServer.Start(groupCtx); err != nil {
				return fmt.Errorf("metrics server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		return outboxUseCase.Start(groupCtx)
	})

	group.Go(func() error {
		return idempotencyUseCase.StartSweeper(groupCtx)
	})

	// The HTTP servers block on ListenAndServe, so a dedicated goroutine
	// shuts them down when the group context is cancelled.
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		var shutdownErrors []error

		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("api server shutdown: %w", err))
		}

		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}

		return errors.Join(shutdownErrors...)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
