// internal/audit/audit.go
package audit

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Event is one completed tool call or direct search. QueryLen stands in
// for the query itself so no search content lands in the audit store.
type Event struct {
	RequestID     string
	ActorSub      string
	ActorEmail    string
	Tool          string
	Sources       []string
	QueryLen      int
	MaxResults    int
	Outcome       string
	ResultCount   int
	FailedSources []string
	StatusCode    int
	Duration      time.Duration
	StartedAt     time.Time
}

// EnsureSchema creates the usage_events table. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return nil
	}
	_, err := pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS usage_events (
	id BIGSERIAL PRIMARY KEY,
	request_id text,
	actor_sub text,
	actor_email text,
	tool text,
	sources text[] DEFAULT '{}',
	query_len int,
	max_results int,
	outcome text,
	result_count int,
	failed_sources text[] DEFAULT '{}',
	status_code int,
	duration_ms int,
	started_at timestamptz NOT NULL DEFAULT NOW(),
	finished_at timestamptz
);
CREATE INDEX IF NOT EXISTS usage_events_started_at_idx ON usage_events (started_at);
CREATE INDEX IF NOT EXISTS usage_events_actor_idx ON usage_events (actor_sub);
`)
	return err
}

// Recorder writes usage events. With no database configured it is a no-op,
// and insert failures never surface to the request path.
type Recorder struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

func NewRecorder(pool *pgxpool.Pool, log *zap.SugaredLogger) *Recorder {
	return &Recorder{pool: pool, log: log}
}

func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil || r.pool == nil {
		return
	}
	sources := ev.Sources
	if sources == nil {
		sources = []string{}
	}
	failed := ev.FailedSources
	if failed == nil {
		failed = []string{}
	}
	started := ev.StartedAt
	if started.IsZero() {
		started = time.Now().UTC().Add(-ev.Duration)
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO usage_events(request_id, actor_sub, actor_email, tool, sources, query_len, max_results, outcome, result_count, failed_sources, status_code, duration_ms, started_at, finished_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, ev.RequestID, ev.ActorSub, ev.ActorEmail, ev.Tool, sources, ev.QueryLen, ev.MaxResults, ev.Outcome, ev.ResultCount, failed, ev.StatusCode, int(ev.Duration.Milliseconds()), started, time.Now().UTC())
	if err != nil {
		r.log.Warnw("usage event insert failed", "err", err)
	}
}
