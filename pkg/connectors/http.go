// pkg/connectors/http.go
package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	jmes "github.com/jmespath/go-jmespath"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthConfig selects how a connector authenticates against its upstream.
// Modes: "" (none), "api_key" (static header), "bearer" (static token),
// "oauth2" (client credentials grant).
type AuthConfig struct {
	Mode         string   `json:"mode" yaml:"mode"`
	Header       string   `json:"header" yaml:"header"`
	APIKey       string   `json:"api_key" yaml:"api_key"`
	Token        string   `json:"token" yaml:"token"`
	TokenURL     string   `json:"token_url" yaml:"token_url"`
	ClientID     string   `json:"client_id" yaml:"client_id"`
	ClientSecret string   `json:"client_secret" yaml:"client_secret"`
	Scopes       []string `json:"scopes" yaml:"scopes"`
}

// MappingConfig lists JMESPath expressions used to pull result fields out
// of the upstream response. Items selects the result list; the rest are
// evaluated relative to each item. Empty expressions take defaults matching
// the gateway's own result shape.
type MappingConfig struct {
	Items        string `json:"items" yaml:"items"`
	Title        string `json:"title" yaml:"title"`
	URL          string `json:"url" yaml:"url"`
	Snippet      string `json:"snippet" yaml:"snippet"`
	Score        string `json:"score" yaml:"score"`
	LastModified string `json:"last_modified" yaml:"last_modified"`
	Content      string `json:"content" yaml:"content"`
}

func (m MappingConfig) withDefaults() MappingConfig {
	def := func(v *string, d string) {
		if *v == "" {
			*v = d
		}
	}
	def(&m.Items, "results")
	def(&m.Title, "title")
	def(&m.URL, "url")
	def(&m.Snippet, "snippet")
	def(&m.Score, "score")
	def(&m.LastModified, "last_modified")
	def(&m.Content, "content")
	return m
}

// HTTPConnector proxies searches to an upstream HTTP service. It POSTs
// {query, max_results, include_content} and maps the JSON response to
// Results via the configured JMESPath expressions.
type HTTPConnector struct {
	name    string
	url     string
	mapping MappingConfig
	headers map[string]string
	client  *http.Client
}

// NewHTTP builds a connector from a source spec. The oauth2 mode wires a
// client-credentials token source into the HTTP client.
func NewHTTP(spec SourceSpec) (*HTTPConnector, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("connector requires a name")
	}
	if spec.URL == "" {
		return nil, fmt.Errorf("connector %s requires a url", spec.Name)
	}
	c := &HTTPConnector{
		name:    spec.Name,
		url:     spec.URL,
		mapping: spec.Mapping.withDefaults(),
		headers: map[string]string{},
		client:  &http.Client{},
	}
	switch spec.Auth.Mode {
	case "", "none":
	case "api_key":
		header := spec.Auth.Header
		if header == "" {
			header = "X-Api-Key"
		}
		c.headers[header] = spec.Auth.APIKey
	case "bearer":
		c.headers["Authorization"] = "Bearer " + spec.Auth.Token
	case "oauth2":
		cc := &clientcredentials.Config{
			ClientID:     spec.Auth.ClientID,
			ClientSecret: spec.Auth.ClientSecret,
			TokenURL:     spec.Auth.TokenURL,
			Scopes:       spec.Auth.Scopes,
		}
		c.client = cc.Client(context.Background())
	default:
		return nil, fmt.Errorf("connector %s: unknown auth mode %q", spec.Name, spec.Auth.Mode)
	}
	if spec.TimeoutSec > 0 {
		c.client.Timeout = time.Duration(spec.TimeoutSec) * time.Second
	}
	return c, nil
}

func (c *HTTPConnector) Name() string { return c.name }

func (c *HTTPConnector) Search(ctx context.Context, q Query) ([]Result, error) {
	payload, err := json.Marshal(map[string]any{
		"query":           q.Text,
		"max_results":     q.MaxResults,
		"include_content": q.IncludeContent,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%s: upstream status %d", c.name, resp.StatusCode)
	}
	var doc any
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", c.name, err)
	}
	return c.mapResults(doc, q)
}

func (c *HTTPConnector) mapResults(doc any, q Query) ([]Result, error) {
	items, err := jmes.Search(c.mapping.Items, doc)
	if err != nil {
		return nil, fmt.Errorf("%s: items mapping: %w", c.name, err)
	}
	if items == nil {
		return nil, nil
	}
	list, ok := items.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: items mapping must select a list", c.name)
	}
	out := make([]Result, 0, len(list))
	for _, item := range list {
		r := Result{
			Source:  c.name,
			Title:   searchString(c.mapping.Title, item),
			URL:     searchString(c.mapping.URL, item),
			Snippet: searchString(c.mapping.Snippet, item),
			Score:   searchFloat(c.mapping.Score, item),
		}
		if ts := searchString(c.mapping.LastModified, item); ts != "" {
			if t, perr := time.Parse(time.RFC3339, ts); perr == nil {
				r.LastModified = &t
			}
		}
		if q.IncludeContent {
			r.Content = searchString(c.mapping.Content, item)
		}
		out = append(out, r)
	}
	if q.MaxResults > 0 && len(out) > q.MaxResults {
		out = out[:q.MaxResults]
	}
	return out, nil
}

func searchString(expr string, doc any) string {
	v, err := jmes.Search(expr, doc)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func searchFloat(expr string, doc any) float64 {
	v, err := jmes.Search(expr, doc)
	if err != nil {
		return 0
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	}
	return 0
}
