package httputil

import (
	"context"

	"github.com/google/uuid"
)

// TenantHeader is the HTTP header carrying the caller's tenant id. Upstream
// gateways authenticate the caller and stamp this header.
const TenantHeader = "X-Tenant-Id"

// tenantKey is the context key for the tenant id.
type tenantKey struct{}

// WithTenantID returns a context carrying the tenant id.
func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenantID)
}

// GetTenantID retrieves the tenant id from the context.
func GetTenantID(ctx context.Context) (uuid.UUID, bool) {
	tenantID, ok := ctx.Value(tenantKey{}).(uuid.UUID)
	return tenantID, ok
}
