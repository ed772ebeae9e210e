// Package http provides the idempotency middleware for mutating endpoints.
package http

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/careops/scheduling/internal/httputil"
	"github.com/careops/scheduling/internal/idempotency/usecase"
)

// IdempotencyKeyHeader is the request header clients set to make a mutating
// request safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// ReplayedHeader marks responses served from the ledger instead of a fresh
// handler execution.
const ReplayedHeader = "Idempotency-Replayed"

// responseRecorder captures the response body while passing it through to the
// client, so the ledger can store it for replay.
type responseRecorder struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *responseRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware makes mutating requests carrying an Idempotency-Key
// header safe to retry. The first request with a key claims it and executes
// normally; its response is stored on success (any status below 400) and
// replayed byte for byte to later duplicates with the ReplayedHeader set.
// A 4xx or 5xx outcome means the booking transaction did not commit, so the
// claim is released and a retry with the same key executes again. Duplicates
// arriving while the first is still running get a 409 in_progress response.
// Requests without the header pass through untouched.
func IdempotencyMiddleware(idempotencyUseCase usecase.UseCase, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			c.Next()
			return
		}

		tenantID, ok := httputil.GetTenantID(c.Request.Context())
		if !ok {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			httputil.HandleBadRequestGin(c, fmt.Errorf("failed to read request body: %w", err), logger)
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		result, err := idempotencyUseCase.Begin(
			c.Request.Context(), tenantID, key, c.Request.Method, c.Request.URL.Path, body)
		if err != nil {
			httputil.HandleErrorGin(c, err, logger)
			c.Abort()
			return
		}

		if result.Replay {
			c.Header(ReplayedHeader, "true")
			c.Data(*result.Record.ResponseStatus, "application/json", []byte(*result.Record.ResponseBody))
			c.Abort()
			return
		}

		recorder := &responseRecorder{ResponseWriter: c.Writer}
		c.Writer = recorder

		c.Next()

		status := recorder.Status()
		if status >= http.StatusBadRequest {
			if err := idempotencyUseCase.Fail(c.Request.Context(), result.Record.ID); err != nil {
				logger.Error("failed to release idempotency claim",
					slog.String("record_id", result.Record.ID.String()),
					slog.Any("error", err),
				)
			}
			return
		}

		if err := idempotencyUseCase.Complete(
			c.Request.Context(), result.Record.ID, status, recorder.body.String()); err != nil {
			logger.Error("failed to store idempotent response",
				slog.String("record_id", result.Record.ID.String()),
				slog.Any("error", err),
			)
		}
	}
}
