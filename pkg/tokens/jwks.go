// pkg/tokens/jwks.go
package tokens

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const jwksTTL = 6 * time.Hour

// jwksCache caches the fetched key set until its TTL expires.
type jwksCache struct {
	mu      sync.RWMutex
	set     jwk.Set
	expires time.Time
}

func (c *jwksCache) get(ctx context.Context, url string, ttl time.Duration) (jwk.Set, error) {
	c.mu.RLock()
	if c.set != nil && time.Now().Before(c.expires) {
		set := c.set
		c.mu.RUnlock()
		return set, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set != nil && time.Now().Before(c.expires) {
		return c.set, nil
	}
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.set = set
	c.expires = time.Now().Add(ttl)
	return set, nil
}

// JWKSVerifier validates tokens issued by the identity provider against its
// published JWKS. Issuer and JWKSURL are required; Audience is enforced only
// when set.
type JWKSVerifier struct {
	Issuer   string
	JWKSURL  string
	Audience string
	Skew     time.Duration

	cache jwksCache
}

func (v *JWKSVerifier) Verify(ctx context.Context, raw string) (Claims, error) {
	if v.Issuer == "" || v.JWKSURL == "" {
		return Claims{}, fmt.Errorf("jwks verifier not configured")
	}
	set, err := v.cache.get(ctx, v.JWKSURL, jwksTTL)
	if err != nil {
		return Claims{}, fmt.Errorf("jwks fetch failed: %w", err)
	}
	opts := []jwt.ParseOption{
		jwt.WithKeySet(set),
		jwt.WithIssuer(strings.TrimRight(v.Issuer, "/")),
		jwt.WithValidate(true),
		jwt.WithVerify(true),
		jwt.WithAcceptableSkew(v.Skew),
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	jt, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("invalid token: %w", err)
	}
	return claimsFromToken(jt), nil
}
