package handler

import (
	"errors"
	"net/http"
	"testing"

	"github.com/olzhas-a/dispatch-core/internal/domain/types"
)

func TestGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", types.NewValidation("bad input"), http.StatusUnprocessableEntity},
		{"not found", types.ErrRequestNotFound, http.StatusNotFound},
		{"precondition", types.ErrCancelCompleted, http.StatusConflict},
		{"unauthorized", types.ErrInvalidToken, http.StatusUnauthorized},
		{"rate limited", types.ErrRateLimited, http.StatusTooManyRequests},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := GetCode(tc.err); got != tc.want {
				t.Errorf("expected %d, got %d", tc.want, got)
			}
		})
	}
}
