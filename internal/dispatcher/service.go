// internal/dispatcher/service.go
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"searchgate/internal/audit"
	"searchgate/internal/guard"
	"searchgate/internal/telemetry"
	"searchgate/pkg/connectors"
	"searchgate/pkg/middleware"
	"searchgate/pkg/tokens"
)

// Options are the dispatcher's configured bounds.
type Options struct {
	ConnectorTimeout time.Duration
	MaxSources       int
	MaxResults       int
	MaxQueryLen      int
	DefaultSources   []string
}

func (o Options) withDefaults() Options {
	if o.ConnectorTimeout <= 0 {
		o.ConnectorTimeout = 15 * time.Second
	}
	if o.MaxSources <= 0 {
		o.MaxSources = 5
	}
	if o.MaxResults <= 0 {
		o.MaxResults = 50
	}
	if o.MaxQueryLen <= 0 {
		o.MaxQueryLen = 500
	}
	if len(o.DefaultSources) == 0 {
		o.DefaultSources = []string{"google_drive", "notion"}
	}
	return o
}

// Service is the scope-gated dispatcher. It owns request validation and
// the authorization decision, fans authorized searches out to the source
// connectors and aggregates the results. It keeps no state across
// invocations.
type Service struct {
	registry *connectors.Registry
	guard    *guard.Guard
	emitter  telemetry.Emitter
	recorder *audit.Recorder
	metrics  *Metrics
	log      *zap.SugaredLogger
	opts     Options
}

func New(reg *connectors.Registry, g *guard.Guard, em telemetry.Emitter, rec *audit.Recorder, m *Metrics, log *zap.SugaredLogger, opts Options) *Service {
	if em == nil {
		em = telemetry.Nop{}
	}
	return &Service{
		registry: reg,
		guard:    g,
		emitter:  em,
		recorder: rec,
		metrics:  m,
		log:      log,
		opts:     opts.withDefaults(),
	}
}

// Dispatch executes one tool call end to end: validation first, then the
// conjunctive scope gate, then concurrent fan-out and aggregation. The
// returned error is one of *NotFoundError, *ValidationError,
// *AuthorizationError or the context's error on cancellation.
func (s *Service) Dispatch(ctx context.Context, claims tokens.Claims, call ToolCall) (*ToolResponse, error) {
	start := time.Now()
	s.emitter.EmitRequest(ctx, telemetry.RequestEvent{
		UserID:      claims.Subject,
		ToolName:    call.Name,
		RequestData: map[string]any{"arguments": rawMap(call.Arguments)},
	})

	var req SearchRequest
	finish := func(outcome string, resp *SearchResponse, status int) {
		took := time.Since(start)
		s.metrics.ToolCall(outcome)
		ev := audit.Event{
			RequestID:  middleware.RequestIDFrom(ctx),
			ActorSub:   claims.Subject,
			ActorEmail: claims.Email,
			Tool:       call.Name,
			QueryLen:   len(req.Query),
			MaxResults: req.MaxResults,
			Outcome:    outcome,
			StatusCode: status,
			Duration:   took,
			StartedAt:  start.UTC(),
		}
		var data map[string]any
		if resp != nil {
			ev.Sources = resp.Sources
			ev.ResultCount = resp.TotalCount
			ev.FailedSources = resp.FailedSources
			data = map[string]any{
				"total_count":    resp.TotalCount,
				"failed_sources": resp.FailedSources,
			}
		}
		s.recorder.Record(ctx, ev)
		s.emitter.EmitResponse(ctx, telemetry.ResponseEvent{
			UserID:          claims.Subject,
			ToolName:        call.Name,
			ResponseData:    data,
			ExecutionTimeMS: took.Milliseconds(),
			Success:         outcome == OutcomeOK || outcome == OutcomePartial,
		})
	}

	if call.Name != ToolName {
		finish(OutcomeNotFound, nil, http.StatusNotFound)
		return nil, &NotFoundError{Tool: call.Name}
	}
	parsed, verr := s.parseRequest(call.Arguments)
	req = parsed
	if verr != nil {
		finish(OutcomeInvalid, nil, http.StatusBadRequest)
		return nil, verr
	}
	if aerr := s.authorize(ctx, claims, req); aerr != nil {
		finish(OutcomeDenied, nil, http.StatusForbidden)
		return nil, aerr
	}
	resp, err := s.fanout(ctx, req)
	if err != nil {
		finish(OutcomeCancelled, nil, http.StatusServiceUnavailable)
		return nil, err
	}
	out := Envelope(resp)
	switch {
	case out.IsError:
		finish(OutcomeError, resp, http.StatusOK)
	case len(resp.FailedSources) > 0:
		finish(OutcomePartial, resp, http.StatusOK)
	default:
		finish(OutcomeOK, resp, http.StatusOK)
	}
	return out, nil
}

// Search serves the direct REST endpoint: the same validation, scope gate
// and fan-out as a tool call, returning the bare aggregate.
func (s *Service) Search(ctx context.Context, claims tokens.Claims, raw json.RawMessage) (*SearchResponse, error) {
	start := time.Now()
	req, verr := s.parseRequest(raw)
	if verr != nil {
		s.metrics.ToolCall(OutcomeInvalid)
		return nil, verr
	}
	if aerr := s.authorize(ctx, claims, req); aerr != nil {
		s.metrics.ToolCall(OutcomeDenied)
		return nil, aerr
	}
	resp, err := s.fanout(ctx, req)
	if err != nil {
		s.metrics.ToolCall(OutcomeCancelled)
		return nil, err
	}
	outcome := OutcomeOK
	switch {
	case len(resp.FailedSources) == len(resp.Sources):
		outcome = OutcomeError
	case len(resp.FailedSources) > 0:
		outcome = OutcomePartial
	}
	s.metrics.ToolCall(outcome)
	s.recorder.Record(ctx, audit.Event{
		RequestID:     middleware.RequestIDFrom(ctx),
		ActorSub:      claims.Subject,
		ActorEmail:    claims.Email,
		Tool:          ToolName,
		Sources:       resp.Sources,
		QueryLen:      len(req.Query),
		MaxResults:    req.MaxResults,
		Outcome:       outcome,
		ResultCount:   resp.TotalCount,
		FailedSources: resp.FailedSources,
		StatusCode:    http.StatusOK,
		Duration:      time.Since(start),
		StartedAt:     start.UTC(),
	})
	return resp, nil
}

// RequiredFor reports the scopes a caller would need for the given sources.
// Used by the tool listing to filter visibility.
func (s *Service) RequiredFor(sources []string) []string {
	return RequiredScopes(sources)
}

// Sources returns the currently registered source names in order.
func (s *Service) Sources() []string { return s.registry.Names() }

// authorize enforces the conjunctive scope gate and the optional guard
// policy. Absence of any one required scope rejects the whole request; the
// source list is never silently narrowed.
func (s *Service) authorize(ctx context.Context, claims tokens.Claims, req SearchRequest) *AuthorizationError {
	required := RequiredScopes(req.Sources)
	if missing := claims.Missing(required); len(missing) > 0 {
		s.metrics.AuthzDenied()
		s.log.Infow("authorization denied", "subject", claims.Subject, "missing_scopes", missing)
		return &AuthorizationError{MissingScopes: missing}
	}
	dec := s.guard.Evaluate(ctx, guard.Input{
		Subject: claims.Subject,
		Email:   claims.Email,
		Scopes:  claims.Scopes,
		Tool:    ToolName,
		Arguments: map[string]any{
			"query":           req.Query,
			"sources":         req.Sources,
			"max_results":     req.MaxResults,
			"include_content": req.IncludeContent,
		},
	})
	if !dec.Allowed {
		s.metrics.AuthzDenied()
		s.log.Infow("guard denied", "subject", claims.Subject, "reasons", dec.Reasons)
		return &AuthorizationError{Reasons: dec.Reasons}
	}
	return nil
}

type slot struct {
	results []connectors.Result
	err     error
}

// fanout searches every requested source concurrently, each bounded by the
// per-connector timeout. A slow or failing source never aborts its
// siblings; its failure is recorded in the aggregate instead. If the parent
// context is cancelled no aggregation is attempted.
func (s *Service) fanout(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()
	slots := make([]slot, len(req.Sources))
	eg, egctx := errgroup.WithContext(ctx)
	for i, name := range req.Sources {
		i, name := i, name
		eg.Go(func() error {
			conn, ok := s.registry.Lookup(name)
			if !ok {
				// registry hot-swapped since validation
				slots[i].err = fmt.Errorf("%s: unknown source", name)
				return nil
			}
			cctx, cancel := context.WithTimeout(egctx, s.opts.ConnectorTimeout)
			defer cancel()
			t0 := time.Now()
			results, err := conn.Search(cctx, connectors.Query{
				Text:           req.Query,
				MaxResults:     req.MaxResults,
				IncludeContent: req.IncludeContent,
			})
			slots[i] = slot{results: results, err: err}
			s.metrics.Connector(name, connectorOutcome(err), time.Since(t0))
			return nil
		})
	}
	_ = eg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp := &SearchResponse{
		Results: []connectors.Result{},
		Query:   req.Query,
		Sources: req.Sources,
	}
	for i, name := range req.Sources {
		if slots[i].err != nil {
			resp.FailedSources = append(resp.FailedSources, name)
			s.log.Warnw("connector failed", "source", name, "err", slots[i].err)
			continue
		}
		resp.Results = append(resp.Results, slots[i].results...)
	}
	if req.MaxResults > 0 && len(resp.Results) > req.MaxResults {
		resp.Results = resp.Results[:req.MaxResults]
	}
	resp.TotalCount = len(resp.Results)
	resp.ExecutionTimeMS = time.Since(start).Milliseconds()
	return resp, nil
}

func connectorOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func rawMap(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return map[string]any{"_raw": string(raw)}
	}
	return m
}
