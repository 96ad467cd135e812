package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	wrap "github.com/olzhas-a/dispatch-core/pkg/logger/wrapper"
)

// --- base auth middleware ---

// Auth validates the bearer token and injects the identity into context.
// Requests without an Authorization header pass through as anonymous;
// protected endpoints reject them in RequireRoles.
func (h *Middleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		header := r.Header.Get("Authorization")
		if header == "" {
			r = r.WithContext(models.WithIdentity(ctx, models.Anonymous()))
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(header)
		if err != nil {
			errorResponse(w, http.StatusUnauthorized, err.Error())
			return
		}

		identity, err := h.verifier.Verify(ctx, token)
		if err != nil || identity == nil {
			h.log.Error(wrap.ErrorCtx(ctx, err), "failed to authenticate user", err)
			errorResponse(w, http.StatusUnauthorized, "invalid credentials")
			return
		}

		ctx = wrap.WithUserID(ctx, identity.UserID.String())
		next.ServeHTTP(w, r.WithContext(models.WithIdentity(ctx, identity)))
	})
}

// RequireRoles wraps a handler and allows only identities with one of the given roles.
func (h *Middleware) RequireRoles(next http.HandlerFunc, allowedRoles ...types.UserRole) http.Handler {
	allowed := make(map[types.UserRole]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := models.IdentityFromContext(r.Context())
		if identity == nil || identity.IsAnonymous() {
			errorResponse(w, http.StatusUnauthorized, "authorization required")
			return
		}
		if len(allowed) > 0 {
			if _, ok := allowed[identity.Role]; !ok {
				errorResponse(w, http.StatusForbidden, "forbidden: insufficient role")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// --- header parser ---
func extractBearerToken(header string) (string, error) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", fmt.Errorf("invalid Authorization header format")
	}
	return parts[1], nil
}
