// pkg/middleware/claims.go
package middleware

import (
	"context"

	"searchgate/pkg/tokens"
)

// local context key type (unique to this file)
type claimsCtxKey string

const ctxClaimsKey claimsCtxKey = "claims"

// WithClaims stores verified token claims in context.
func WithClaims(ctx context.Context, c tokens.Claims) context.Context {
	return context.WithValue(ctx, ctxClaimsKey, c)
}

// ClaimsFrom extracts verified claims from context. The second return is
// false when no authenticated principal is attached.
func ClaimsFrom(ctx context.Context) (tokens.Claims, bool) {
	if v := ctx.Value(ctxClaimsKey); v != nil {
		if c, ok := v.(tokens.Claims); ok {
			return c, true
		}
	}
	return tokens.Claims{}, false
}

// ScopesFrom extracts the authenticated principal's scopes from context.
func ScopesFrom(ctx context.Context) []string {
	if c, ok := ClaimsFrom(ctx); ok {
		return c.Scopes
	}
	return nil
}
