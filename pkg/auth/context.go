package auth

import (
	"context"

	"github.com/talentforge/talentforge-api/pkg/models"
)

// Unexported key types prevent context collisions with other packages.
type identityContextKey struct{}
type userContextKey struct{}

// WithIdentity returns a context carrying the verified identity.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFrom extracts the verified identity, if any.
func IdentityFrom(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}

// WithUser returns a context carrying the loaded user record.
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFrom extracts the loaded user record, if any. Absence is normal
// on routes that never asked for the record to be loaded.
func UserFrom(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userContextKey{}).(*models.User)
	return user, ok && user != nil
}
