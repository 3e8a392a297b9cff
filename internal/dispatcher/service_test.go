// internal/dispatcher/service_test.go
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"searchgate/internal/guard"
	"searchgate/internal/telemetry"
	"searchgate/pkg/connectors"
	"searchgate/pkg/tokens"
)

// countingConnector records how often Search was invoked. The dispatcher
// must never reach it on a denied or invalid request.
type countingConnector struct {
	connectors.StubConnector
	calls atomic.Int32
}

func (c *countingConnector) Search(ctx context.Context, q connectors.Query) ([]connectors.Result, error) {
	c.calls.Add(1)
	return c.StubConnector.Search(ctx, q)
}

func testService(t *testing.T, g *guard.Guard, conns ...connectors.Connector) *Service {
	t.Helper()
	reg := connectors.NewRegistry(conns...)
	return New(reg, g, telemetry.Nop{}, nil, NewMetrics(prometheus.NewRegistry()), zap.NewNop().Sugar(), Options{
		ConnectorTimeout: 2 * time.Second,
	})
}

func searchClaims(scopes ...string) tokens.Claims {
	return tokens.Claims{Subject: "user-1", Scopes: scopes}
}

func callFor(t *testing.T, args map[string]any) ToolCall {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	return ToolCall{Name: ToolName, Arguments: raw}
}

func decodeResource(t *testing.T, resp *ToolResponse) SearchResponse {
	t.Helper()
	require.Len(t, resp.Content, 2)
	require.Equal(t, "text", resp.Content[0].Type)
	require.Equal(t, "resource", resp.Content[1].Type)
	require.NotNil(t, resp.Content[1].Resource)
	var out SearchResponse
	require.NoError(t, json.Unmarshal([]byte(resp.Content[1].Resource.Text), &out))
	return out
}

func resultSources(results []connectors.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Source)
	}
	return out
}

func TestDispatchDeniesOnAnyMissingScope(t *testing.T) {
	gd := &countingConnector{StubConnector: connectors.StubConnector{Source: "google_drive"}}
	nt := &countingConnector{StubConnector: connectors.StubConnector{Source: "notion"}}
	svc := testService(t, nil, gd, nt)

	// One scope granted, two required. The whole request is rejected; the
	// source list is never narrowed to the authorized subset.
	resp, err := svc.Dispatch(context.Background(), searchClaims("workplace:read:google_drive"),
		callFor(t, map[string]any{"query": "roadmap", "sources": []string{"google_drive", "notion"}}))
	require.Error(t, err)
	assert.Nil(t, resp)

	var aerr *AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, []string{"workplace:read:notion"}, aerr.MissingScopes)

	assert.Zero(t, gd.calls.Load(), "denied request must not reach connectors")
	assert.Zero(t, nt.calls.Load(), "denied request must not reach connectors")
}

func TestDispatchValidatesBeforeAuthorizing(t *testing.T) {
	gd := &countingConnector{StubConnector: connectors.StubConnector{Source: "google_drive"}}
	svc := testService(t, nil, gd)

	// No query and no scopes: the validation failure wins because a
	// malformed request has no scope requirements to evaluate.
	_, err := svc.Dispatch(context.Background(), searchClaims(),
		callFor(t, map[string]any{"sources": []string{"google_drive"}}))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "query", verr.Field)
	assert.Zero(t, gd.calls.Load())
}

func TestDispatchUnknownTool(t *testing.T) {
	svc := testService(t, nil, &connectors.StubConnector{Source: "google_drive"})

	_, err := svc.Dispatch(context.Background(), searchClaims("workplace:read:google_drive"),
		ToolCall{Name: "send_email", Arguments: json.RawMessage(`{}`)})
	var nferr *NotFoundError
	require.ErrorAs(t, err, &nferr)
	assert.Equal(t, "send_email", nferr.Tool)
}

func TestDispatchAggregatesInRequestOrder(t *testing.T) {
	// google_drive is slower than notion, so notion finishes first. The
	// aggregate must still list google_drive's results first.
	gd := &connectors.StubConnector{Source: "google_drive", Delay: 60 * time.Millisecond}
	nt := &connectors.StubConnector{Source: "notion"}
	svc := testService(t, nil, gd, nt)

	resp, err := svc.Dispatch(context.Background(),
		searchClaims("workplace:read:google_drive", "workplace:read:notion"),
		callFor(t, map[string]any{"query": "Q4 planning", "sources": []string{"google_drive", "notion"}}))
	require.NoError(t, err)
	require.False(t, resp.IsError)
	assert.Nil(t, resp.Meta)

	out := decodeResource(t, resp)
	assert.Equal(t, []string{"google_drive", "google_drive", "notion", "notion"}, resultSources(out.Results))
	assert.Equal(t, 4, out.TotalCount)
	assert.Equal(t, "Found 4 results for 'Q4 planning'", resp.Content[0].Text)
	assert.Equal(t, "workplace://search/Q4 planning", resp.Content[1].Resource.URI)
}

func TestDispatchPartialFailure(t *testing.T) {
	gd := &connectors.StubConnector{Source: "google_drive"}
	nt := &connectors.StubConnector{Source: "notion", Fail: errors.New("upstream 500")}
	svc := testService(t, nil, gd, nt)

	resp, err := svc.Dispatch(context.Background(),
		searchClaims("workplace:read:google_drive", "workplace:read:notion"),
		callFor(t, map[string]any{"query": "budget", "sources": []string{"google_drive", "notion"}}))
	require.NoError(t, err)

	// One source down degrades the result set, not the request.
	assert.False(t, resp.IsError)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 1, resp.Meta.Errors)
	assert.Equal(t, []string{"notion"}, resp.Meta.FailedSources)

	out := decodeResource(t, resp)
	assert.Equal(t, []string{"google_drive", "google_drive"}, resultSources(out.Results))
	assert.Equal(t, []string{"notion"}, out.FailedSources)
}

func TestDispatchAllSourcesFailed(t *testing.T) {
	gd := &connectors.StubConnector{Source: "google_drive", Fail: errors.New("boom")}
	nt := &connectors.StubConnector{Source: "notion", Fail: errors.New("boom")}
	svc := testService(t, nil, gd, nt)

	resp, err := svc.Dispatch(context.Background(),
		searchClaims("workplace:read:google_drive", "workplace:read:notion"),
		callFor(t, map[string]any{"query": "budget", "sources": []string{"google_drive", "notion"}}))
	require.NoError(t, err)

	assert.True(t, resp.IsError)
	assert.Empty(t, resp.Content)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, 2, resp.Meta.Errors)
	assert.Equal(t, []string{"google_drive", "notion"}, resp.Meta.FailedSources)
}

func TestDispatchConnectorTimeoutIsPartialFailure(t *testing.T) {
	gd := &connectors.StubConnector{Source: "google_drive"}
	slow := &connectors.StubConnector{Source: "notion", Delay: time.Second}
	svc := New(connectors.NewRegistry(gd, slow), nil, telemetry.Nop{}, nil,
		NewMetrics(prometheus.NewRegistry()), zap.NewNop().Sugar(), Options{
			ConnectorTimeout: 50 * time.Millisecond,
		})

	resp, err := svc.Dispatch(context.Background(),
		searchClaims("workplace:read:google_drive", "workplace:read:notion"),
		callFor(t, map[string]any{"query": "budget", "sources": []string{"google_drive", "notion"}}))
	require.NoError(t, err)

	assert.False(t, resp.IsError)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, []string{"notion"}, resp.Meta.FailedSources)
}

func TestDispatchCancellationDropsPartialResults(t *testing.T) {
	fast := &connectors.StubConnector{Source: "google_drive"}
	slow := &connectors.StubConnector{Source: "notion", Delay: time.Second}
	svc := testService(t, nil, fast, slow)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// google_drive completes before the deadline, but a cancelled request
	// returns no partial aggregate at all.
	resp, err := svc.Dispatch(ctx,
		searchClaims("workplace:read:google_drive", "workplace:read:notion"),
		callFor(t, map[string]any{"query": "budget", "sources": []string{"google_drive", "notion"}}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Nil(t, resp)
}

func TestDispatchIsDeterministic(t *testing.T) {
	svc := testService(t, nil,
		&connectors.StubConnector{Source: "google_drive"},
		&connectors.StubConnector{Source: "notion"})
	claims := searchClaims("workplace:read:google_drive", "workplace:read:notion")
	call := callFor(t, map[string]any{"query": "roadmap", "sources": []string{"google_drive", "notion"}})

	first, err := svc.Dispatch(context.Background(), claims, call)
	require.NoError(t, err)
	second, err := svc.Dispatch(context.Background(), claims, call)
	require.NoError(t, err)

	assert.Equal(t, first.Content[0], second.Content[0])
	a, b := decodeResource(t, first), decodeResource(t, second)
	assert.Equal(t, resultSources(a.Results), resultSources(b.Results))
	assert.Equal(t, a.TotalCount, b.TotalCount)
	assert.Equal(t, a.FailedSources, b.FailedSources)
}

func TestDispatchAppliesDefaults(t *testing.T) {
	svc := testService(t, nil,
		&connectors.StubConnector{Source: "google_drive"},
		&connectors.StubConnector{Source: "notion"},
		&connectors.StubConnector{Source: "sharepoint"})

	// No sources named: the configured defaults apply, not every
	// registered connector. sharepoint needs no scope here.
	resp, err := svc.Dispatch(context.Background(),
		searchClaims("workplace:read:google_drive", "workplace:read:notion"),
		callFor(t, map[string]any{"query": "roadmap"}))
	require.NoError(t, err)

	out := decodeResource(t, resp)
	assert.Equal(t, []string{"google_drive", "notion"}, out.Sources)
	require.NotEmpty(t, out.Results)
	assert.NotEmpty(t, out.Results[0].Content, "include_content defaults to true")
}

func TestDispatchTruncatesAcrossSources(t *testing.T) {
	svc := testService(t, nil,
		&connectors.StubConnector{Source: "google_drive"},
		&connectors.StubConnector{Source: "notion"})

	resp, err := svc.Dispatch(context.Background(),
		searchClaims("workplace:read:google_drive", "workplace:read:notion"),
		callFor(t, map[string]any{
			"query":       "roadmap",
			"sources":     []string{"google_drive", "notion"},
			"max_results": 3,
		}))
	require.NoError(t, err)

	out := decodeResource(t, resp)
	assert.Equal(t, 3, out.TotalCount)
	assert.Equal(t, []string{"google_drive", "google_drive", "notion"}, resultSources(out.Results))
}

func TestDispatchGuardDenies(t *testing.T) {
	policy := `package searchgate

default decide = {"allow": true}

decide = {"allow": false, "reasons": ["query_blocked"]} {
	input.arguments.query == "*"
}
`
	path := filepath.Join(t.TempDir(), "guard.rego")
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o644))
	g, err := guard.New(context.Background(), path, zap.NewNop().Sugar())
	require.NoError(t, err)

	gd := &countingConnector{StubConnector: connectors.StubConnector{Source: "google_drive"}}
	svc := testService(t, g, gd)

	_, err = svc.Dispatch(context.Background(), searchClaims("workplace:read:google_drive"),
		callFor(t, map[string]any{"query": "*", "sources": []string{"google_drive"}}))
	var aerr *AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Empty(t, aerr.MissingScopes)
	assert.Equal(t, []string{"query_blocked"}, aerr.Reasons)
	assert.Zero(t, gd.calls.Load())

	// The same caller with an ordinary query passes the guard.
	resp, err := svc.Dispatch(context.Background(), searchClaims("workplace:read:google_drive"),
		callFor(t, map[string]any{"query": "roadmap", "sources": []string{"google_drive"}}))
	require.NoError(t, err)
	assert.False(t, resp.IsError)
}

func TestSearchDirect(t *testing.T) {
	svc := testService(t, nil,
		&connectors.StubConnector{Source: "google_drive"},
		&connectors.StubConnector{Source: "notion", Fail: errors.New("down")})

	raw := json.RawMessage(`{"query": "budget", "sources": ["google_drive", "notion"]}`)
	resp, err := svc.Search(context.Background(),
		searchClaims("workplace:read:google_drive", "workplace:read:notion"), raw)
	require.NoError(t, err)
	assert.Equal(t, "budget", resp.Query)
	assert.Equal(t, []string{"notion"}, resp.FailedSources)
	assert.Equal(t, []string{"google_drive", "google_drive"}, resultSources(resp.Results))
	assert.Equal(t, 2, resp.TotalCount)

	_, err = svc.Search(context.Background(), searchClaims(), raw)
	var aerr *AuthorizationError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, []string{"workplace:read:google_drive", "workplace:read:notion"}, aerr.MissingScopes)
}

func TestParseRequestValidation(t *testing.T) {
	svc := testService(t, nil,
		&connectors.StubConnector{Source: "google_drive"},
		&connectors.StubConnector{Source: "notion"})

	cases := []struct {
		name  string
		raw   string
		field string
	}{
		{"malformed json", `{"query": "q"`, "arguments"},
		{"array not object", `[1, 2]`, "arguments"},
		{"missing query", `{}`, "query"},
		{"blank query", `{"query": "   "}`, "query"},
		{"query too long", `{"query": "` + strings.Repeat("a", 501) + `"}`, "query"},
		{"empty sources", `{"query": "q", "sources": []}`, "sources"},
		{"too many sources", `{"query": "q", "sources": ["a", "b", "c", "d", "e", "f"]}`, "sources"},
		{"unknown source", `{"query": "q", "sources": ["github"]}`, "sources"},
		{"duplicate source", `{"query": "q", "sources": ["google_drive", "google_drive"]}`, "sources"},
		{"max_results too small", `{"query": "q", "max_results": 0}`, "max_results"},
		{"max_results too large", `{"query": "q", "max_results": 51}`, "max_results"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, verr := svc.parseRequest(json.RawMessage(tc.raw))
			require.NotNil(t, verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}

	req, verr := svc.parseRequest(json.RawMessage(`{"query": "q"}`))
	require.Nil(t, verr)
	assert.Equal(t, []string{"google_drive", "notion"}, req.Sources)
	assert.Equal(t, 10, req.MaxResults)
	assert.True(t, req.IncludeContent)
}

func TestRequiredScopesPreserveOrder(t *testing.T) {
	assert.Equal(t,
		[]string{"workplace:read:notion", "workplace:read:google_drive"},
		RequiredScopes([]string{"notion", "google_drive"}))
	assert.Empty(t, RequiredScopes(nil))
}
