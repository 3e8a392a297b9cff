// internal/guard/guard.go
package guard

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"
)

// Input is the document handed to the policy for each tool call. Scope
// enforcement has already happened by the time the guard runs; the policy
// adds deployment-specific deny rules on top (query filters, per-subject
// limits and the like).
type Input struct {
	Subject   string         `json:"subject"`
	Email     string         `json:"email"`
	Scopes    []string       `json:"scopes"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Decision is the policy outcome. A failed evaluation is a deny.
type Decision struct {
	Allowed bool
	Reasons []string
}

// Guard evaluates the optional rego policy at data.searchgate.decide.
// Without a policy file every call is allowed.
type Guard struct {
	pq  *rego.PreparedEvalQuery
	log *zap.SugaredLogger
}

// New loads and prepares the policy from path. An empty path yields a
// pass-through guard.
func New(ctx context.Context, path string, log *zap.SugaredLogger) (*Guard, error) {
	g := &Guard{log: log}
	if path == "" {
		return g, nil
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("guard policy read: %w", err)
	}
	pq, err := rego.New(
		rego.Query("data.searchgate.decide"),
		rego.Module("guard.rego", string(src)),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("guard policy prepare: %w", err)
	}
	g.pq = &pq
	log.Infow("guard policy loaded", "path", path)
	return g, nil
}

// Evaluate runs the policy for one tool call. The decide rule may return a
// bare boolean or an object {"allow": bool, "reasons": [...]}. Evaluation
// errors and undefined results deny.
func (g *Guard) Evaluate(ctx context.Context, in Input) Decision {
	if g == nil || g.pq == nil {
		return Decision{Allowed: true}
	}
	input := map[string]any{
		"subject":   in.Subject,
		"email":     in.Email,
		"scopes":    in.Scopes,
		"tool":      in.Tool,
		"arguments": in.Arguments,
	}
	rs, err := g.pq.Eval(ctx, rego.EvalInput(input))
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		if err != nil {
			g.log.Warnw("guard policy eval failed", "err", err)
		}
		return Decision{Allowed: false, Reasons: []string{"policy_error"}}
	}
	switch out := rs[0].Expressions[0].Value.(type) {
	case bool:
		if out {
			return Decision{Allowed: true}
		}
		return Decision{Allowed: false, Reasons: []string{"policy_denied"}}
	case map[string]any:
		dec := Decision{}
		dec.Allowed, _ = out["allow"].(bool)
		if rs, ok := out["reasons"].([]any); ok {
			for _, r := range rs {
				if s, ok := r.(string); ok {
					dec.Reasons = append(dec.Reasons, s)
				}
			}
		}
		if !dec.Allowed && len(dec.Reasons) == 0 {
			dec.Reasons = []string{"policy_denied"}
		}
		return dec
	}
	return Decision{Allowed: false, Reasons: []string{"policy_error"}}
}
