package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/pkg/logger"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, method jwt.SigningMethod, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func newVerifier() *Verifier {
	return NewVerifier(testSecret, logger.InitLogger("auth-test", logger.LevelError))
}

func TestVerify_UserToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"role":    "USER",
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	id, err := newVerifier().Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.UserID != userID {
		t.Errorf("wrong user id")
	}
	if id.Role != types.RoleUser {
		t.Errorf("wrong role: %s", id.Role)
	}
	if id.IsDriver() {
		t.Error("plain user must not be a driver")
	}
}

func TestVerify_DriverToken(t *testing.T) {
	driverID := uuid.New()
	token := signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":   uuid.New().String(),
		"role":      "DRIVER",
		"driver_id": driverID.String(),
		"exp":       time.Now().Add(time.Hour).Unix(),
	})

	id, err := newVerifier().Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !id.IsDriver() || *id.DriverID != driverID {
		t.Errorf("driver id not mapped")
	}
}

func TestVerify_Rejections(t *testing.T) {
	valid := jwt.MapClaims{
		"user_id": uuid.New().String(),
		"role":    "USER",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}

	cases := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", signToken(t, "other-secret", jwt.SigningMethodHS256, valid)},
		{"expired", signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": uuid.New().String(),
			"role":    "USER",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		})},
		{"missing user_id", signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
			"role": "USER",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})},
		{"unknown role", signToken(t, testSecret, jwt.SigningMethodHS256, jwt.MapClaims{
			"user_id": uuid.New().String(),
			"role":    "ROOT",
			"exp":     time.Now().Add(time.Hour).Unix(),
		})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := newVerifier().Verify(context.Background(), tc.token)
			if !errors.Is(err, types.ErrInvalidToken) {
				t.Fatalf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}
