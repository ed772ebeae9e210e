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

// RunSweepIdempotency flips pending idempotency records older than the
// configured TTL to failed so the owning clients can retry their requests.
//
// Requirements: Database must be migrated and accessible.
func RunSweepIdempotency(ctx context.Context, format string) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	cfg := config.Load()

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("sweeping stale idempotency records",
		slog.Duration("pending_ttl", cfg.IdempotencyPendingTTL),
	)

	defer closeContainer(container, logger)

	idempotencyUseCase, err := container.IdempotencyUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize idempotency use case: %w", err)
	}

	count, err := idempotencyUseCase.SweepStale(ctx)
	if err != nil {
		return fmt.Errorf("failed to sweep stale records: %w", err)
	}

	if format == "json" {
		outputSweepJSON(count)
	} else {
		fmt.Printf("Swept %d stale idempotency record(s)\n", count)
	}

	logger.Info("sweep completed", slog.Int64("count", count))
	return nil
}

// outputSweepJSON outputs the result in JSON format for machine consumption.
func outputSweepJSON(count int64) {
	result := map[string]interface{}{
		"count": count,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Println(string(jsonBytes))
}
