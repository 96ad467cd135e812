package middleware

import (
	"context"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
)

type (
	TokenVerifier interface {
		Verify(ctx context.Context, token string) (*models.Identity, error)
	}

	Middleware struct {
		verifier TokenVerifier
		log      logger.Logger
	}
)

func NewMiddleware(verifier TokenVerifier, log logger.Logger) *Middleware {
	return &Middleware{
		verifier: verifier,
		log:      log,
	}
}
