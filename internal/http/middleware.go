// Package http provides the HTTP API server for the scheduling service.
package http

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/careops/scheduling/internal/httputil"

	apperrors "github.com/careops/scheduling/internal/errors"
)

// CustomLoggerMiddleware logs each request with its request id, method, path,
// status and latency using slog.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("http request",
			slog.String("request_id", requestid.Get(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		)
	}
}

// TenantMiddleware resolves the tenant from the X-Tenant-Id header and places
// it on the request context. Session resolution happens upstream; the header
// is the trust boundary of this service.
func TenantMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(httputil.TenantHeader)
		if header == "" {
			httputil.HandleErrorGin(
				c,
				apperrors.Wrap(apperrors.ErrInvalidInput, "missing X-Tenant-Id header"),
				logger,
			)
			c.Abort()
			return
		}

		tenantID, err := uuid.Parse(header)
		if err != nil {
			httputil.HandleErrorGin(
				c,
				apperrors.Wrap(apperrors.ErrInvalidInput, "invalid X-Tenant-Id header"),
				logger,
			)
			c.Abort()
			return
		}

		ctx := httputil.WithTenantID(c.Request.Context(), tenantID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
