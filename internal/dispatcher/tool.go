// internal/dispatcher/tool.go
package dispatcher

// ToolDescription is the summary shown in tool listings.
const ToolDescription = "Search across workplace documents (Google Drive, Notion) with permission controls"

// SchemaProperties returns the JSON schema for the search tool's arguments,
// as a properties map plus the required field names. sources feeds the enum
// of searchable connectors, defaults the preselected subset.
func SchemaProperties(sources, defaults []string, maxResults int) (map[string]any, []string) {
	if maxResults <= 0 {
		maxResults = 50
	}
	props := map[string]any{
		"query": map[string]any{
			"type":        "string",
			"description": "Search query to find relevant documents",
		},
		"sources": map[string]any{
			"type":        "array",
			"items":       map[string]any{"type": "string", "enum": sources},
			"description": "Sources to search in",
			"default":     defaults,
		},
		"max_results": map[string]any{
			"type":        "integer",
			"minimum":     1,
			"maximum":     maxResults,
			"default":     defaultMaxResults,
			"description": "Maximum number of results to return",
		},
		"include_content": map[string]any{
			"type":        "boolean",
			"default":     true,
			"description": "Include full document content in results",
		},
	}
	return props, []string{"query"}
}
