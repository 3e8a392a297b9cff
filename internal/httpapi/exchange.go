// internal/httpapi/exchange.go
package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"searchgate/pkg/problems"
)

// exchangeRequest carries the upstream identity token to trade for an
// internal access token. The endpoint itself is unauthenticated; the
// credential travels in the body.
type exchangeRequest struct {
	DescopeToken string `json:"descope_token"`
}

type exchangeResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (a *API) exchange(w http.ResponseWriter, r *http.Request) {
	if !a.Issuer.Enabled() || a.Upstream == nil {
		problems.Render(w, http.StatusServiceUnavailable,
			problems.New("token-exchange-disabled", "Token exchange disabled", "exchange is not configured on this deployment"))
		return
	}
	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.DescopeToken) == "" {
		problems.Render(w, http.StatusBadRequest,
			problems.New("validation-error", "Invalid request", "descope_token is required").With("field", "descope_token"))
		return
	}
	claims, err := a.Upstream.Verify(r.Context(), req.DescopeToken)
	if err != nil {
		a.Log.Debugw("token exchange rejected", "err", err)
		problems.Render(w, http.StatusUnauthorized,
			problems.New("invalid-token", "Invalid token", "the presented credential could not be verified"))
		return
	}
	signed, ttl, err := a.Issuer.Mint(claims)
	if err != nil {
		a.Log.Errorw("token mint failed", "err", err)
		problems.Render(w, http.StatusInternalServerError,
			problems.New("internal-error", "Internal server error", ""))
		return
	}
	writeJSON(w, http.StatusOK, exchangeResponse{
		AccessToken: signed,
		TokenType:   "bearer",
		ExpiresIn:   int64(ttl / time.Second),
	})
}
