package httpx

import (
	"context"
	"net/http"
)

const (
	TenantHeader = "X-Tenant-ID"
	UserHeader   = "X-User-ID"
)

type ctxKey int

const (
	tenantKey ctxKey = iota
	userKey
)

// Identity is set by the gateway in front of this service, which has already
// authenticated the caller.
type Identity struct {
	TenantID string
	UserID   string
}

// RequireTenant rejects requests without a tenant header. When requireUser is
// set the user header is mandatory too.
func RequireTenant(requireUser bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := r.Header.Get(TenantHeader)
			if tenantID == "" {
				Error(w, http.StatusUnauthorized, "missing "+TenantHeader)
				return
			}
			userID := r.Header.Get(UserHeader)
			if requireUser && userID == "" {
				Error(w, http.StatusUnauthorized, "missing "+UserHeader)
				return
			}
			ctx := context.WithValue(r.Context(), tenantKey, tenantID)
			ctx = context.WithValue(ctx, userKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func FromContext(ctx context.Context) Identity {
	tenantID, _ := ctx.Value(tenantKey).(string)
	userID, _ := ctx.Value(userKey).(string)
	return Identity{TenantID: tenantID, UserID: userID}
}
