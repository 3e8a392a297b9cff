// internal/dispatcher/request.go
package dispatcher

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolName is the single tool this gateway exposes.
const ToolName = "workplace_search"

const defaultMaxResults = 10

// ToolCall is the wire form of a tool invocation.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// SearchRequest is a parsed, validated, defaulted search. Sources is always
// non-empty and every entry is a known connector name.
type SearchRequest struct {
	Query          string   `json:"query"`
	Sources        []string `json:"sources"`
	MaxResults     int      `json:"max_results"`
	IncludeContent bool     `json:"include_content"`
}

// searchArgs is the raw argument shape. Pointer fields distinguish absent
// (defaulted) from explicitly supplied values.
type searchArgs struct {
	Query          *string  `json:"query"`
	Sources        []string `json:"sources"`
	MaxResults     *int     `json:"max_results"`
	IncludeContent *bool    `json:"include_content"`
}

// parseRequest validates tool arguments and applies defaults. It runs
// before any authorization: every bound violation and unknown name is
// rejected here with the offending field.
func (s *Service) parseRequest(raw json.RawMessage) (SearchRequest, *ValidationError) {
	var req SearchRequest
	args := searchArgs{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return req, &ValidationError{Field: "arguments", Reason: "must be a JSON object"}
		}
	}

	if args.Query == nil || strings.TrimSpace(*args.Query) == "" {
		return req, &ValidationError{Field: "query", Reason: "required"}
	}
	if len(*args.Query) > s.opts.MaxQueryLen {
		return req, &ValidationError{Field: "query", Reason: fmt.Sprintf("must be at most %d characters", s.opts.MaxQueryLen)}
	}
	req.Query = *args.Query

	sources := args.Sources
	if sources == nil {
		sources = s.opts.DefaultSources
	}
	if len(sources) == 0 {
		return req, &ValidationError{Field: "sources", Reason: "must name at least one source"}
	}
	if len(sources) > s.opts.MaxSources {
		return req, &ValidationError{Field: "sources", Reason: fmt.Sprintf("must name at most %d sources", s.opts.MaxSources)}
	}
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if !s.registry.Has(src) {
			return req, &ValidationError{Field: "sources", Reason: fmt.Sprintf("unknown source %q", src)}
		}
		if _, dup := seen[src]; dup {
			return req, &ValidationError{Field: "sources", Reason: fmt.Sprintf("duplicate source %q", src)}
		}
		seen[src] = struct{}{}
	}
	req.Sources = sources

	req.MaxResults = defaultMaxResults
	if args.MaxResults != nil {
		req.MaxResults = *args.MaxResults
	}
	if req.MaxResults < 1 || req.MaxResults > s.opts.MaxResults {
		return req, &ValidationError{Field: "max_results", Reason: fmt.Sprintf("must be between 1 and %d", s.opts.MaxResults)}
	}

	req.IncludeContent = true
	if args.IncludeContent != nil {
		req.IncludeContent = *args.IncludeContent
	}
	return req, nil
}

// RequiredScopes derives the scope set a request needs: one read scope per
// named source, in request order.
func RequiredScopes(sources []string) []string {
	out := make([]string, 0, len(sources))
	for _, src := range sources {
		out = append(out, "workplace:read:"+src)
	}
	return out
}
