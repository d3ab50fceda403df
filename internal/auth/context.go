package auth

import (
	"context"

	"cryptotracker/internal/models"
)

type identityKey struct{}
type tokenKey struct{}

// WithIdentity returns a copy of ctx carrying the signed-in identity and the
// session token it was resolved from.
func WithIdentity(ctx context.Context, ident models.Identity, token string) context.Context {
	ctx = context.WithValue(ctx, identityKey{}, ident)
	return context.WithValue(ctx, tokenKey{}, token)
}

// FromContext reports the identity attached by WithIdentity.
func FromContext(ctx context.Context) (models.Identity, bool) {
	ident, ok := ctx.Value(identityKey{}).(models.Identity)
	if !ok || ident.ID == "" {
		return models.Identity{}, false
	}
	return ident, true
}

// TokenFromContext returns the session token attached by WithIdentity.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
