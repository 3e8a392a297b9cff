// pkg/tokens/cache.go
package tokens

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const maxCacheTTL = 5 * time.Minute

// CachedVerifier memoizes successful verifications in Redis so repeated
// requests with the same bearer token skip signature checks and JWKS
// fetches. Cache errors fall through to the wrapped verifier; a nil client
// disables caching entirely.
type CachedVerifier struct {
	Next Verifier
	RDB  *redis.Client
	TTL  time.Duration
}

type cachedClaims struct {
	Subject   string    `json:"sub"`
	Email     string    `json:"email,omitempty"`
	Scopes    []string  `json:"scopes"`
	ExpiresAt time.Time `json:"exp"`
}

func (v *CachedVerifier) Verify(ctx context.Context, raw string) (Claims, error) {
	if v.RDB == nil {
		return v.Next.Verify(ctx, raw)
	}
	key := "token:" + hashToken(raw)
	if b, err := v.RDB.Get(ctx, key).Bytes(); err == nil {
		var cc cachedClaims
		if json.Unmarshal(b, &cc) == nil && time.Now().Before(cc.ExpiresAt) {
			return Claims{Subject: cc.Subject, Email: cc.Email, Scopes: cc.Scopes, ExpiresAt: cc.ExpiresAt}, nil
		}
	}
	claims, err := v.Next.Verify(ctx, raw)
	if err != nil {
		return Claims{}, err
	}
	ttl := v.TTL
	if ttl <= 0 {
		ttl = maxCacheTTL
	}
	// Never cache past the token's own expiry.
	if remain := time.Until(claims.ExpiresAt); remain > 0 && remain < ttl {
		ttl = remain
	}
	if ttl > 0 {
		if b, merr := json.Marshal(cachedClaims{Subject: claims.Subject, Email: claims.Email, Scopes: claims.Scopes, ExpiresAt: claims.ExpiresAt}); merr == nil {
			_ = v.RDB.Set(ctx, key, b, ttl).Err()
		}
	}
	return claims, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
