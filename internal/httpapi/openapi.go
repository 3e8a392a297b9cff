// internal/httpapi/openapi.go
package httpapi

import (
	"net/http"

	"searchgate/internal/dispatcher"
	"searchgate/pkg/config"
	"searchgate/pkg/openapi"
)

func jsonBody(schema map[string]any) map[string]any {
	return map[string]any{
		"content": map[string]any{
			"application/json": map[string]any{"schema": schema},
		},
	}
}

// openapiDoc serves the REST surface as OpenAPI. Built per request so the
// source enum tracks registry reloads.
func (a *API) openapiDoc(w http.ResponseWriter, r *http.Request) {
	props, required := dispatcher.SchemaProperties(a.Service.Sources(), a.Cfg.DefaultSources, a.Cfg.MaxResults)
	argsSchema := map[string]any{"type": "object", "properties": props, "required": required}
	ok := map[string]any{"200": map[string]any{"description": "OK"}}

	reg := openapi.NewRegistry()
	reg.Register(openapi.Operation{
		Method: "GET", Path: "/health",
		Summary: "Liveness probe", Tags: []string{"meta"}, Responses: ok,
	})
	reg.Register(openapi.Operation{
		Method: "GET", Path: "/mcp/info",
		Summary: "Server metadata and capabilities", Tags: []string{"mcp"}, Responses: ok,
	})
	reg.Register(openapi.Operation{
		Method: "GET", Path: "/mcp/tools",
		Summary: "List tools visible to the caller", Tags: []string{"mcp"}, Responses: ok,
	})
	reg.Register(openapi.Operation{
		Method: "POST", Path: "/mcp/tools/{tool_name}/call",
		Summary:     "Invoke a tool",
		Description: "Requires workplace:read:<source> for every requested source.",
		Tags:        []string{"mcp"},
		RequestBody: jsonBody(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":      map[string]any{"type": "string"},
				"arguments": argsSchema,
			},
		}),
		Responses: ok,
	})
	reg.Register(openapi.Operation{
		Method: "POST", Path: "/api/v1/workplace/search",
		Summary:     "Search workplace sources directly",
		Description: "Requires workplace:read:<source> for every requested source.",
		Tags:        []string{"search"},
		RequestBody: jsonBody(argsSchema),
		Responses:   ok,
	})
	reg.Register(openapi.Operation{
		Method: "POST", Path: "/auth/token/exchange",
		Summary: "Exchange an upstream identity token for an internal one",
		Tags:    []string{"auth"},
		RequestBody: jsonBody(map[string]any{
			"type":       "object",
			"properties": map[string]any{"descope_token": map[string]any{"type": "string"}},
			"required":   []string{"descope_token"},
		}),
		Responses: ok,
	})
	reg.ServeHandler(config.ServerName, config.ServerVersion)(w, r)
}
