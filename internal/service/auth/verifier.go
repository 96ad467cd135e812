// Package auth verifies bearer tokens issued by the identity service.
// Token issuance and refresh live outside this core; we only check
// signatures and map claims onto an Identity.
package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/olzhas-a/dispatch-core/internal/domain/models"
	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	wrap "github.com/olzhas-a/dispatch-core/pkg/logger/wrapper"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

type Verifier struct {
	secret string
	log    logger.Logger
}

func NewVerifier(secret string, log logger.Logger) *Verifier {
	return &Verifier{secret: secret, log: log}
}

// Verify validates the token signature and expiry, then maps claims onto an
// Identity. Claims: user_id (required), role (required), driver_id (driver
// accounts only).
func (v *Verifier) Verify(ctx context.Context, token string) (*models.Identity, error) {
	ctx = wrap.WithAction(ctx, "verify_token")

	parsedToken, err := jwt.ParseWithClaims(token, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, types.ErrInvalidToken
		}
		return []byte(v.secret), nil
	})
	if err != nil || !parsedToken.Valid {
		return nil, wrap.Error(ctx, types.ErrInvalidToken)
	}

	mc, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok {
		return nil, wrap.Error(ctx, types.ErrInvalidToken)
	}

	userIDStr, _ := mc["user_id"].(string)
	if userIDStr == "" {
		return nil, wrap.Error(ctx, fmt.Errorf("missing 'user_id' in token claims: %w", types.ErrInvalidToken))
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("invalid 'user_id' in token claims: %w", types.ErrInvalidToken))
	}

	roleStr, _ := mc["role"].(string)
	role := types.UserRole(roleStr)
	if !role.IsValid() {
		return nil, wrap.Error(ctx, fmt.Errorf("invalid 'role' in token claims: %w", types.ErrInvalidToken))
	}

	identity := &models.Identity{
		UserID: userID,
		Role:   role,
	}

	if driverIDStr, _ := mc["driver_id"].(string); driverIDStr != "" {
		driverID, err := uuid.Parse(driverIDStr)
		if err != nil {
			return nil, wrap.Error(ctx, fmt.Errorf("invalid 'driver_id' in token claims: %w", types.ErrInvalidToken))
		}
		identity.DriverID = &driverID
	}

	return identity, nil
}
