package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/EcommerceGo/pkg/logger"
)

// Tenant headers identify the storefront account and workspace a request is
// served for.
const (
	TenantAccountHeader   = "X-Tenant-Account"
	TenantWorkspaceHeader = "X-Tenant-Workspace"
)

// RequestLogger builds a request-scoped logger carrying correlation_id,
// tenant, trace_id and span_id and stores it with logger.NewContext.
//
// Mount it after RequestLogging and Tracing.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if account := r.Header.Get(TenantAccountHeader); account != "" {
				ctx = logger.WithTenant(ctx, account)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
