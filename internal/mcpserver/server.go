// internal/mcpserver/server.go
package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"searchgate/internal/dispatcher"
	"searchgate/pkg/config"
	"searchgate/pkg/middleware"
)

// Server exposes the dispatcher over the MCP streamable-http transport. It
// is mounted behind the bearer auth middleware, so verified claims arrive
// on the request context.
type Server struct {
	mcp *server.MCPServer
	svc *dispatcher.Service
	log *zap.SugaredLogger
}

func New(cfg config.Config, svc *dispatcher.Service, log *zap.SugaredLogger) *Server {
	s := &Server{
		mcp: server.NewMCPServer(
			config.ServerName,
			config.ServerVersion,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithPromptCapabilities(false),
		),
		svc: svc,
		log: log,
	}
	props, required := dispatcher.SchemaProperties(svc.Sources(), cfg.DefaultSources, cfg.MaxResults)
	s.mcp.AddTool(mcp.Tool{
		Name:        dispatcher.ToolName,
		Description: dispatcher.ToolDescription,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
	}, s.handleSearch)
	return s
}

// Handler returns the streamable HTTP transport, ready to mount.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp)
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	claims, ok := middleware.ClaimsFrom(ctx)
	if !ok {
		return mcp.NewToolResultError("not authenticated"), nil
	}
	raw, err := json.Marshal(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError("arguments must be a JSON object"), nil
	}
	resp, err := s.svc.Dispatch(ctx, claims, dispatcher.ToolCall{Name: dispatcher.ToolName, Arguments: raw})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	return toCallResult(resp), nil
}

// toCallResult maps the dispatcher envelope onto protocol content. An
// all-failed response stays an error result with no content.
func toCallResult(resp *dispatcher.ToolResponse) *mcp.CallToolResult {
	out := &mcp.CallToolResult{IsError: resp.IsError}
	for _, item := range resp.Content {
		switch item.Type {
		case "text":
			out.Content = append(out.Content, mcp.TextContent{Type: "text", Text: item.Text})
		case "resource":
			if item.Resource == nil {
				continue
			}
			out.Content = append(out.Content, mcp.EmbeddedResource{
				Type: "resource",
				Resource: mcp.TextResourceContents{
					URI:      item.Resource.URI,
					MIMEType: item.Resource.MIMEType,
					Text:     item.Resource.Text,
				},
			})
		}
	}
	return out
}
