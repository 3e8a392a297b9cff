// internal/httpapi/handlers.go
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"searchgate/internal/dispatcher"
	"searchgate/pkg/config"
	"searchgate/pkg/middleware"
	"searchgate/pkg/problems"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        config.ServerName,
		"version":     config.ServerVersion,
		"description": "AI-powered Workplace Search with OAuth security",
		"capabilities": map[string]bool{
			"tools":     true,
			"resources": false,
			"prompts":   false,
		},
	})
}

// toolInfo mirrors the MCP tool description shape.
type toolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// listTools returns the tools visible to the caller. The search tool is
// listed only for callers holding at least one workplace read scope; which
// sources they may actually search is decided per call.
func (a *API) listTools(w http.ResponseWriter, r *http.Request) {
	tools := []toolInfo{}
	if canSearch(middleware.ScopesFrom(r.Context())) {
		props, required := dispatcher.SchemaProperties(a.Service.Sources(), a.Cfg.DefaultSources, a.Cfg.MaxResults)
		tools = append(tools, toolInfo{
			Name:        dispatcher.ToolName,
			Description: dispatcher.ToolDescription,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		})
	}
	writeJSON(w, http.StatusOK, tools)
}

func canSearch(scopes []string) bool {
	for _, s := range scopes {
		if strings.HasPrefix(s, "workplace:read:") {
			return true
		}
	}
	return false
}

// callBody is the tool call request body. Name is optional; when present it
// must agree with the path.
type callBody struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (a *API) callTool(w http.ResponseWriter, r *http.Request) {
	toolName := chi.URLParam(r, "tool_name")
	var body callBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		problems.Render(w, http.StatusBadRequest,
			problems.New("validation-error", "Invalid request", "request body must be a JSON object"))
		return
	}
	if body.Name != "" && body.Name != toolName {
		problems.Render(w, http.StatusBadRequest,
			problems.New("validation-error", "Invalid request", "tool name in body does not match path").With("field", "name"))
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	resp, err := a.Service.Dispatch(r.Context(), claims, dispatcher.ToolCall{Name: toolName, Arguments: body.Arguments})
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// search is the direct REST surface over the same dispatcher: bare
// aggregate out, no envelope.
func (a *API) search(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		problems.Render(w, http.StatusBadRequest,
			problems.New("validation-error", "Invalid request", "unreadable request body"))
		return
	}
	claims, _ := middleware.ClaimsFrom(r.Context())
	resp, err := a.Service.Search(r.Context(), claims, raw)
	if err != nil {
		a.renderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// renderError maps dispatcher errors onto problem+json responses.
func (a *API) renderError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *dispatcher.ValidationError
	var aerr *dispatcher.AuthorizationError
	var nferr *dispatcher.NotFoundError
	switch {
	case errors.As(err, &verr):
		problems.Render(w, http.StatusBadRequest,
			problems.New("validation-error", "Invalid request", verr.Error()).With("field", verr.Field))
	case errors.As(err, &aerr):
		p := problems.New("insufficient-scope", "Insufficient permissions", aerr.Error())
		if len(aerr.MissingScopes) > 0 {
			p = p.With("missing_scopes", aerr.MissingScopes)
		}
		if len(aerr.Reasons) > 0 {
			p = problems.New("request-blocked", "Request blocked by policy", aerr.Error()).With("reasons", aerr.Reasons)
		}
		problems.Render(w, http.StatusForbidden, p)
	case errors.As(err, &nferr):
		problems.Render(w, http.StatusNotFound,
			problems.New("tool-not-found", "Unknown tool", nferr.Error()))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		problems.Render(w, http.StatusServiceUnavailable,
			problems.New("request-cancelled", "Request cancelled", "the request ended before all sources completed"))
	default:
		a.Log.Errorw("dispatch failed", "err", err, "request_id", middleware.RequestIDFrom(r.Context()))
		problems.Render(w, http.StatusInternalServerError,
			problems.New("internal-error", "Internal server error", ""))
	}
}
