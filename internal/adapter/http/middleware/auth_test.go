package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

type stubVerifier struct {
	identity *models.Identity
	err      error
}

func (s *stubVerifier) Verify(ctx context.Context, token string) (*models.Identity, error) {
	return s.identity, s.err
}

func newTestMiddleware(v TokenVerifier) *Middleware {
	return NewMiddleware(v, logger.InitLogger("middleware-test", logger.LevelError))
}

func TestAuth_NoHeaderIsAnonymous(t *testing.T) {
	m := newTestMiddleware(&stubVerifier{err: errors.New("should not be called")})

	var got *models.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = models.IdentityFromContext(r.Context())
	})

	rec := httptest.NewRecorder()
	m.Auth(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/requests", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got status %d", rec.Code)
	}
	if got == nil || !got.IsAnonymous() {
		t.Fatalf("expected anonymous identity in context, got %+v", got)
	}
}

func TestAuth_ValidTokenInjectsIdentity(t *testing.T) {
	identity := &models.Identity{UserID: uuid.New(), Role: types.RoleUser}
	m := newTestMiddleware(&stubVerifier{identity: identity})

	var got *models.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = models.IdentityFromContext(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/requests", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	m.Auth(next).ServeHTTP(rec, req)

	if got == nil || got.UserID != identity.UserID {
		t.Fatalf("expected injected identity, got %+v", got)
	}
}

func TestAuth_RejectsBadHeaderAndBadToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		verifier *stubVerifier
	}{
		{"malformed header", "Token abc", &stubVerifier{}},
		{"empty bearer", "Bearer ", &stubVerifier{}},
		{"verifier rejects", "Bearer bad", &stubVerifier{err: types.ErrInvalidToken}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := newTestMiddleware(tc.verifier)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be reached")
			})

			req := httptest.NewRequest(http.MethodGet, "/requests", nil)
			req.Header.Set("Authorization", tc.header)
			rec := httptest.NewRecorder()
			m.Auth(next).ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	m := newTestMiddleware(&stubVerifier{})

	handler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}

	tests := []struct {
		name       string
		identity   *models.Identity
		roles      []types.UserRole
		wantStatus int
	}{
		{"anonymous rejected", models.Anonymous(), []types.UserRole{types.RoleUser}, http.StatusUnauthorized},
		{"missing identity rejected", nil, []types.UserRole{types.RoleUser}, http.StatusUnauthorized},
		{"wrong role forbidden", &models.Identity{UserID: uuid.New(), Role: types.RoleDriver}, []types.UserRole{types.RoleAdmin}, http.StatusForbidden},
		{"matching role allowed", &models.Identity{UserID: uuid.New(), Role: types.RoleAdmin}, []types.UserRole{types.RoleAdmin, types.RoleSuperAdmin}, http.StatusOK},
		{"no role filter allows any authenticated", &models.Identity{UserID: uuid.New(), Role: types.RoleUser}, nil, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/requests", nil)
			if tc.identity != nil {
				req = req.WithContext(models.WithIdentity(req.Context(), tc.identity))
			}

			rec := httptest.NewRecorder()
			m.RequireRoles(handler, tc.roles...).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
		})
	}
}
