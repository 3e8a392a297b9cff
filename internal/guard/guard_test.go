// internal/guard/guard_test.go
package guard

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writePolicy(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "guard.rego")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func TestGuardWithoutPolicyAllows(t *testing.T) {
	g, err := New(context.Background(), "", zap.NewNop().Sugar())
	require.NoError(t, err)
	dec := g.Evaluate(context.Background(), Input{Tool: "workplace_search"})
	assert.True(t, dec.Allowed)
}

func TestGuardObjectDecision(t *testing.T) {
	path := writePolicy(t, `
package searchgate

default decide = {"allow": true}

decide = {"allow": false, "reasons": ["query_blocked"]} {
	input.arguments.query == "*"
}
`)
	g, err := New(context.Background(), path, zap.NewNop().Sugar())
	require.NoError(t, err)

	dec := g.Evaluate(context.Background(), Input{
		Tool:      "workplace_search",
		Arguments: map[string]any{"query": "quarterly roadmap"},
	})
	assert.True(t, dec.Allowed)

	dec = g.Evaluate(context.Background(), Input{
		Tool:      "workplace_search",
		Arguments: map[string]any{"query": "*"},
	})
	assert.False(t, dec.Allowed)
	assert.Equal(t, []string{"query_blocked"}, dec.Reasons)
}

func TestGuardBooleanDecision(t *testing.T) {
	path := writePolicy(t, `
package searchgate

default decide = false

decide = true {
	input.subject != ""
}
`)
	g, err := New(context.Background(), path, zap.NewNop().Sugar())
	require.NoError(t, err)

	assert.True(t, g.Evaluate(context.Background(), Input{Subject: "user-1"}).Allowed)

	dec := g.Evaluate(context.Background(), Input{})
	assert.False(t, dec.Allowed)
	assert.Equal(t, []string{"policy_denied"}, dec.Reasons)
}

func TestGuardUndefinedResultDenies(t *testing.T) {
	// No default rule: decide is undefined unless the body matches.
	path := writePolicy(t, `
package searchgate

decide = {"allow": true} {
	input.tool == "other_tool"
}
`)
	g, err := New(context.Background(), path, zap.NewNop().Sugar())
	require.NoError(t, err)

	dec := g.Evaluate(context.Background(), Input{Tool: "workplace_search"})
	assert.False(t, dec.Allowed)
	assert.Equal(t, []string{"policy_error"}, dec.Reasons)
}

func TestGuardRejectsBrokenPolicy(t *testing.T) {
	path := writePolicy(t, "package searchgate\n\ndecide {")
	_, err := New(context.Background(), path, zap.NewNop().Sugar())
	assert.Error(t, err)

	_, err = New(context.Background(), filepath.Join(t.TempDir(), "missing.rego"), zap.NewNop().Sugar())
	assert.Error(t, err)
}
