// internal/telemetry/telemetry.go
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"searchgate/pkg/config"
)

const emitTimeout = 5 * time.Second

// RequestEvent describes an inbound tool call.
type RequestEvent struct {
	UserID      string
	ToolName    string
	RequestData map[string]any
}

// ResponseEvent describes the outcome of a tool call.
type ResponseEvent struct {
	UserID          string
	ToolName        string
	ResponseData    map[string]any
	ExecutionTimeMS int64
	Success         bool
}

// Emitter ships request/response events to the observability gateway.
// Emission is fire-and-forget: failures are logged, never propagated, and
// never delay or fail the tool call itself.
type Emitter interface {
	EmitRequest(ctx context.Context, ev RequestEvent)
	EmitResponse(ctx context.Context, ev ResponseEvent)
}

// Nop drops all events.
type Nop struct{}

func (Nop) EmitRequest(context.Context, RequestEvent)   {}
func (Nop) EmitResponse(context.Context, ResponseEvent) {}

// Gateway posts events to an AI gateway's MCP telemetry endpoints.
type Gateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     *zap.SugaredLogger
}

// NewGateway builds the emitter from config. Without a gateway URL and API
// key it degrades to Nop.
func NewGateway(cfg config.Config, log *zap.SugaredLogger) Emitter {
	if cfg.GatewayURL == "" || cfg.GatewayAPIKey == "" {
		return Nop{}
	}
	return &Gateway{
		baseURL: strings.TrimRight(cfg.GatewayURL, "/"),
		apiKey:  cfg.GatewayAPIKey,
		client:  &http.Client{Timeout: emitTimeout},
		log:     log,
	}
}

func (g *Gateway) EmitRequest(ctx context.Context, ev RequestEvent) {
	g.post("/api/v1/mcp/requests", map[string]any{
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"user_id":        ev.UserID,
		"tool_name":      ev.ToolName,
		"request_data":   ev.RequestData,
		"server_name":    config.ServerName,
		"server_version": config.ServerVersion,
	})
}

func (g *Gateway) EmitResponse(ctx context.Context, ev ResponseEvent) {
	g.post("/api/v1/mcp/responses", map[string]any{
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
		"user_id":           ev.UserID,
		"tool_name":         ev.ToolName,
		"response_data":     ev.ResponseData,
		"execution_time_ms": ev.ExecutionTimeMS,
		"success":           ev.Success,
		"server_name":       config.ServerName,
		"server_version":    config.ServerVersion,
	})
}

// post ships one event in the background. The request runs on a detached
// context so client cancellation does not lose telemetry.
func (g *Gateway) post(path string, payload map[string]any) {
	body, err := json.Marshal(payload)
	if err != nil {
		g.log.Warnw("telemetry marshal failed", "path", path, "err", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
		if err != nil {
			g.log.Warnw("telemetry request build failed", "path", path, "err", err)
			return
		}
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
		req.Header.Set("Content-Type", "application/json")
		resp, err := g.client.Do(req)
		if err != nil {
			g.log.Warnw("telemetry emit failed", "path", path, "err", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			g.log.Warnw("telemetry emit rejected", "path", path, "status", resp.StatusCode)
		}
	}()
}
