package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// ContextKeyClaims is the context key for the authenticated token claims
const ContextKeyClaims contextKey = "claims"

// Claims are the token claims accepted by the API
type Claims struct {
	jwt.RegisteredClaims
	// Scope is a space separated list of granted scopes
	Scope string `json:"scope,omitempty"`
}

// WithClaims adds the claims to the context
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ContextKeyClaims, claims)
}

// ClaimsFromContext retrieves the claims from the context
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ContextKeyClaims).(*Claims)
	return claims, ok && claims != nil
}

// SubjectFromContext returns the sub claim of the caller, or "" for anonymous requests
func SubjectFromContext(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Subject
	}
	return ""
}
