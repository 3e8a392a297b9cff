// pkg/tokens/claims.go
package tokens

import (
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Claims is the subset of token claims the gateway acts on.
type Claims struct {
	Subject   string
	Email     string
	Scopes    []string
	ExpiresAt time.Time
}

// HasScope reports whether the claims carry the exact scope string.
func (c Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// Missing returns the required scopes absent from the claims, preserving
// the order in which they were required.
func (c Claims) Missing(required []string) []string {
	var missing []string
	for _, want := range required {
		if !c.HasScope(want) {
			missing = append(missing, want)
		}
	}
	return missing
}

// claimsFromToken extracts gateway claims from a parsed token. Scopes come
// from the "permissions" array claim when present, else the space-delimited
// "scope" claim, else the "scp" array.
func claimsFromToken(jt jwt.Token) Claims {
	c := Claims{Subject: jt.Subject(), ExpiresAt: jt.Expiration()}
	if v, ok := jt.Get("email"); ok {
		c.Email, _ = v.(string)
	}
	if v, ok := jt.Get("permissions"); ok {
		c.Scopes = stringList(v)
	}
	if len(c.Scopes) == 0 {
		if v, ok := jt.Get("scope"); ok {
			c.Scopes = stringList(v)
		}
	}
	if len(c.Scopes) == 0 {
		if v, ok := jt.Get("scp"); ok {
			c.Scopes = stringList(v)
		}
	}
	return c
}

// stringList coerces a claim value into a slice of scope strings. JSON
// decoding hands back []interface{}, and some issuers use a single
// space-delimited string.
func stringList(v interface{}) []string {
	switch t := v.(type) {
	case []string:
		return t
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		return strings.Fields(t)
	}
	return nil
}
