package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/careops/scheduling/internal/app"
	"github.com/careops/scheduling/internal/config"
)

// RunWorker runs the outbox dispatcher and the idempotency sweeper without the
// HTTP server. Useful for deployments that scale the API and the background
// workers independently.
func RunWorker(ctx context.Context) error {
	cfg := config.Load()

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting worker",
		slog.Duration("outbox_interval", cfg.WorkerInterval),
		slog.Duration("sweep_interval", cfg.IdempotencySweepInterval),
	)

	defer closeContainer(container, logger)

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
		return outboxUseCase.Start(groupCtx)
	})

	group.Go(func() error {
		return idempotencyUseCase.StartSweeper(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("worker stopped")
	return nil
}
