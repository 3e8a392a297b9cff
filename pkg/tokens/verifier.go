// pkg/tokens/verifier.go
package tokens

import (
	"context"
	"errors"
)

// ErrNoVerifier is returned when no verifier is configured at all.
var ErrNoVerifier = errors.New("no token verifier configured")

// Verifier validates a raw bearer token and returns the claims it carries.
type Verifier interface {
	Verify(ctx context.Context, raw string) (Claims, error)
}

// Chain tries each verifier in order and returns the first success. Every
// verifier must fail for the token to be rejected.
type Chain []Verifier

func (c Chain) Verify(ctx context.Context, raw string) (Claims, error) {
	if len(c) == 0 {
		return Claims{}, ErrNoVerifier
	}
	var last error
	for _, v := range c {
		claims, err := v.Verify(ctx, raw)
		if err == nil {
			return claims, nil
		}
		last = err
	}
	return Claims{}, last
}
