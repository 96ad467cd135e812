package models

import (
	"context"

	"github.com/olzhas-a/dispatch-core/internal/domain/types"
	"github.com/olzhas-a/dispatch-core/pkg/uuid"
)

// Identity is the authenticated principal behind an HTTP request or a
// realtime connection. DriverID is set only for driver identities.
type Identity struct {
	UserID   uuid.UUID
	Role     types.UserRole
	DriverID *uuid.UUID
}

// IsDriver reports whether the identity belongs to a driver account.
func (i *Identity) IsDriver() bool {
	return i.DriverID != nil && !i.DriverID.IsNil()
}

// IsAnonymous reports whether the identity is the shared unauthenticated one.
func (i *Identity) IsAnonymous() bool {
	return i == anonymous
}

var anonymous = &Identity{}

// Anonymous returns the shared unauthenticated identity.
func Anonymous() *Identity {
	return anonymous
}

type identityCtxKey struct{}

// WithIdentity stores the identity in the context.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey{}, id)
}

// IdentityFromContext extracts the identity from the context, nil when absent.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityCtxKey{}).(*Identity)
	return id
}
