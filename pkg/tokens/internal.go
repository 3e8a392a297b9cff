// pkg/tokens/internal.go
package tokens

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// InternalVerifier validates HS256 tokens minted by the exchange endpoint.
type InternalVerifier struct {
	Secret []byte
	Issuer string
	Skew   time.Duration
}

func (v *InternalVerifier) Verify(ctx context.Context, raw string) (Claims, error) {
	if len(v.Secret) == 0 {
		return Claims{}, fmt.Errorf("internal verifier not configured")
	}
	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, v.Secret),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.Skew),
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	jt, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return Claims{}, fmt.Errorf("invalid token: %w", err)
	}
	return claimsFromToken(jt), nil
}

// Issuer mints internal HS256 access tokens carrying exchanged claims.
type Issuer struct {
	Secret []byte
	Iss    string
	TTL    time.Duration
}

// Enabled reports whether a signing secret is configured.
func (i *Issuer) Enabled() bool { return i != nil && len(i.Secret) > 0 }

// Mint signs a token for the given claims and returns it alongside its TTL.
func (i *Issuer) Mint(claims Claims) (string, time.Duration, error) {
	if !i.Enabled() {
		return "", 0, fmt.Errorf("token issuer not configured")
	}
	scopes := claims.Scopes
	if scopes == nil {
		scopes = []string{}
	}
	now := time.Now()
	b := jwt.NewBuilder().
		Subject(claims.Subject).
		Issuer(i.Iss).
		IssuedAt(now).
		Expiration(now.Add(i.TTL)).
		Claim("permissions", scopes)
	if claims.Email != "" {
		b = b.Claim("email", claims.Email)
	}
	tok, err := b.Build()
	if err != nil {
		return "", 0, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, i.Secret))
	if err != nil {
		return "", 0, err
	}
	return string(signed), i.TTL, nil
}
