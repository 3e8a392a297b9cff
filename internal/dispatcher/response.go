// internal/dispatcher/response.go
package dispatcher

import (
	"encoding/json"
	"fmt"

	"searchgate/pkg/connectors"
)

// SearchResponse is the aggregate of a fan-out. Results preserve request
// source order, then each connector's own ranking. FailedSources lists the
// sources that contributed nothing.
type SearchResponse struct {
	Results         []connectors.Result `json:"results"`
	TotalCount      int                 `json:"total_count"`
	Query           string              `json:"query"`
	Sources         []string            `json:"sources"`
	FailedSources   []string            `json:"failed_sources,omitempty"`
	ExecutionTimeMS int64               `json:"execution_time_ms"`
}

// Resource is an embedded structured payload inside a tool response.
type Resource struct {
	URI      string `json:"uri"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Text     string `json:"text"`
}

// ContentItem is one entry in a tool response envelope. Type "text" carries
// Text; type "resource" carries Resource.
type ContentItem struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	Resource *Resource `json:"resource,omitempty"`
}

// ResponseMeta surfaces partial-failure detail alongside the content.
type ResponseMeta struct {
	Errors        int      `json:"errors"`
	FailedSources []string `json:"failed_sources"`
}

// ToolResponse is the {content, isError} envelope returned for tool calls.
type ToolResponse struct {
	Content []ContentItem `json:"content"`
	IsError bool          `json:"isError"`
	Meta    *ResponseMeta `json:"meta,omitempty"`
}

// Envelope shapes a search aggregate into the tool response contract: a
// text summary plus the full response as an embedded JSON resource. When
// every source failed the envelope is an error with no content.
func Envelope(resp *SearchResponse) *ToolResponse {
	out := &ToolResponse{Content: []ContentItem{}}
	if len(resp.FailedSources) > 0 {
		out.Meta = &ResponseMeta{Errors: len(resp.FailedSources), FailedSources: resp.FailedSources}
	}
	if len(resp.Sources) > 0 && len(resp.FailedSources) == len(resp.Sources) {
		out.IsError = true
		return out
	}
	body, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		out.IsError = true
		out.Meta = &ResponseMeta{Errors: len(resp.Sources), FailedSources: resp.Sources}
		return out
	}
	out.Content = []ContentItem{
		{
			Type: "text",
			Text: fmt.Sprintf("Found %d results for '%s'", resp.TotalCount, resp.Query),
		},
		{
			Type: "resource",
			Resource: &Resource{
				URI:      "workplace://search/" + resp.Query,
				Name:     "Search Results",
				MIMEType: "application/json",
				Text:     string(body),
			},
		},
	}
	return out
}
