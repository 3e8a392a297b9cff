// internal/httpapi/router.go
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"searchgate/internal/dispatcher"
	"searchgate/pkg/config"
	"searchgate/pkg/middleware"
	"searchgate/pkg/tokens"
)

// API bundles the gateway's HTTP surface: the MCP-style tool endpoints, the
// direct search API, token exchange and the usual probes.
type API struct {
	Cfg      config.Config
	Service  *dispatcher.Service
	Verifier tokens.Verifier // bearer verification for protected routes
	Upstream tokens.Verifier // verifies credentials presented for exchange
	Issuer   *tokens.Issuer  // mints internal tokens on exchange
	MCP      http.Handler    // streamable MCP transport, served at /mcp
	Log      *zap.SugaredLogger
}

// Router assembles the middleware chain and all routes. Everything except
// the probe, metadata and exchange endpoints sits behind bearer auth.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.Log))
	r.Use(middleware.TrustedHost(a.Cfg.TrustedHosts))
	r.Use(middleware.CORS(a.Cfg.AllowedOrigins))
	r.Use(middleware.Tracing(a.Cfg))
	r.Use(middleware.Auth(a.Cfg, a.Verifier, a.Log))

	r.Get("/health", a.health)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	r.Get("/.well-known/openapi.json", a.openapiDoc)
	r.Post("/auth/token/exchange", a.exchange)

	r.Get("/mcp/info", a.info)
	r.Get("/mcp/tools", a.listTools)
	r.Post("/mcp/tools/{tool_name}/call", a.callTool)
	if a.MCP != nil {
		r.Handle("/mcp", a.MCP)
	}

	r.Post("/api/v1/workplace/search", a.search)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	return r
}
