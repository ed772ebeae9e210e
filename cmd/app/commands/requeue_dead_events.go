package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/careops/scheduling/internal/app"
	"github.com/careops/scheduling/internal/config"
)

// RunRequeueDeadEvents moves dead-lettered outbox events back to pending with
// their attempt counters reset so the dispatcher picks them up again.
//
// Requirements: Database must be migrated and accessible.
func RunRequeueDeadEvents(ctx context.Context, limit int, format string) error {
	if limit <= 0 {
		return fmt.Errorf("limit must be a positive number, got: %d", limit)
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	cfg := config.Load()

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("requeueing dead-lettered events", slog.Int("limit", limit))

	defer closeContainer(container, logger)

	outboxUseCase, err := container.OutboxUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize outbox use case: %w", err)
	}

	count, err := outboxUseCase.RequeueFailed(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to requeue dead-lettered events: %w", err)
	}

	if format == "json" {
		outputRequeueJSON(count, limit)
	} else {
		fmt.Printf("Requeued %d dead-lettered event(s)\n", count)
	}

	logger.Info("requeue completed", slog.Int64("count", count))
	return nil
}

// outputRequeueJSON outputs the result in JSON format for machine consumption.
func outputRequeueJSON(count int64, limit int) {
	result := map[string]interface{}{
		"count": count,
		"limit": limit,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Println(string(jsonBytes))
}
