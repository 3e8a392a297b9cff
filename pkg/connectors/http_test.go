// pkg/connectors/http_test.go
package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testLogger() *zap.SugaredLogger { return zap.NewNop().Sugar() }

func TestHTTPConnectorSearch(t *testing.T) {
	var gotBody map[string]any
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotKey = r.Header.Get("X-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hits": [
				{"name": "Q3 plan", "link": "https://drive.example/1", "preview": "about the plan", "relevance": 0.9, "modified": "2024-06-01T10:00:00Z", "body": "full text"},
				{"name": "Q2 recap", "link": "https://drive.example/2", "preview": "recap", "relevance": 0.4, "modified": "not-a-date", "body": "more text"}
			]
		}`))
	}))
	defer srv.Close()

	c, err := NewHTTP(SourceSpec{
		Name: "google_drive",
		URL:  srv.URL,
		Auth: AuthConfig{Mode: "api_key", APIKey: "secret"},
		Mapping: MappingConfig{
			Items:        "hits",
			Title:        "name",
			URL:          "link",
			Snippet:      "preview",
			Score:        "relevance",
			LastModified: "modified",
			Content:      "body",
		},
	})
	require.NoError(t, err)

	results, err := c.Search(context.Background(), Query{Text: "plan", MaxResults: 10, IncludeContent: true})
	require.NoError(t, err)

	assert.Equal(t, "secret", gotKey)
	assert.Equal(t, "plan", gotBody["query"])
	assert.Equal(t, float64(10), gotBody["max_results"])
	assert.Equal(t, true, gotBody["include_content"])

	require.Len(t, results, 2)
	assert.Equal(t, "Q3 plan", results[0].Title)
	assert.Equal(t, "google_drive", results[0].Source)
	assert.Equal(t, "https://drive.example/1", results[0].URL)
	assert.Equal(t, 0.9, results[0].Score)
	assert.Equal(t, "full text", results[0].Content)
	require.NotNil(t, results[0].LastModified)
	assert.Equal(t, "2024-06-01T10:00:00Z", results[0].LastModified.Format("2006-01-02T15:04:05Z"))
	assert.Nil(t, results[1].LastModified, "unparseable timestamps are dropped")
}

func TestHTTPConnectorDefaultMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"title": "Doc", "url": "https://x", "snippet": "s", "score": 0.7, "content": "c"}]}`))
	}))
	defer srv.Close()

	c, err := NewHTTP(SourceSpec{Name: "notion", URL: srv.URL})
	require.NoError(t, err)

	results, err := c.Search(context.Background(), Query{Text: "q", MaxResults: 5, IncludeContent: false})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Doc", results[0].Title)
	assert.Empty(t, results[0].Content, "content is not extracted when include_content is false")
}

func TestHTTPConnectorBearerAuth(t *testing.T) {
	var gotAuthz string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthz = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	c, err := NewHTTP(SourceSpec{Name: "sharepoint", URL: srv.URL, Auth: AuthConfig{Mode: "bearer", Token: "tok"}})
	require.NoError(t, err)

	results, err := c.Search(context.Background(), Query{Text: "q", MaxResults: 5})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, "Bearer tok", gotAuthz)
}

func TestHTTPConnectorUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c, err := NewHTTP(SourceSpec{Name: "notion", URL: srv.URL})
	require.NoError(t, err)

	_, err = c.Search(context.Background(), Query{Text: "q", MaxResults: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream status 502")
}

func TestHTTPConnectorTruncatesToMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": [{"title":"a"},{"title":"b"},{"title":"c"}]}`))
	}))
	defer srv.Close()

	c, err := NewHTTP(SourceSpec{Name: "notion", URL: srv.URL})
	require.NoError(t, err)

	results, err := c.Search(context.Background(), Query{Text: "q", MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestNewHTTPValidation(t *testing.T) {
	_, err := NewHTTP(SourceSpec{URL: "https://x"})
	assert.Error(t, err)

	_, err = NewHTTP(SourceSpec{Name: "x"})
	assert.Error(t, err)

	_, err = NewHTTP(SourceSpec{Name: "x", URL: "https://x", Auth: AuthConfig{Mode: "kerberos"}})
	assert.Error(t, err)
}
