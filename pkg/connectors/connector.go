// pkg/connectors/connector.go
package connectors

import (
	"context"
	"time"
)

// Query is the per-source search request. MaxResults bounds how many items
// a single connector may return; IncludeContent asks the upstream for full
// document bodies in addition to snippets.
type Query struct {
	Text           string
	MaxResults     int
	IncludeContent bool
}

// Result is one ranked item returned by a source connector.
type Result struct {
	Title        string     `json:"title"`
	Source       string     `json:"source"`
	URL          string     `json:"url"`
	Snippet      string     `json:"snippet"`
	Score        float64    `json:"score"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	Content      string     `json:"content,omitempty"`
}

// Connector searches one workplace source. Implementations must honor the
// context deadline and return results in their own ranking order.
type Connector interface {
	Name() string
	Search(ctx context.Context, q Query) ([]Result, error)
}
