package middleware

import (
	"net/http"

	wrap "github.com/olzhas-a/dispatch-core/pkg/logger/wrapper"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags every request with an ID so log lines from one request can
// be correlated. An incoming header is trusted, otherwise a new ID is minted.
func (h *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		w.Header().Set(requestIDHeader, id)

		ctx := wrap.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
