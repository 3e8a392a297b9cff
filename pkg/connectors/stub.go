// pkg/connectors/stub.go
package connectors

import (
	"context"
	"fmt"
	"time"
)

// StubConnector returns canned results so the gateway can run without any
// upstream integrations. It is the dev fallback when no registry file is
// configured, and doubles as the failure/latency fake in tests.
type StubConnector struct {
	Source string
	// Fail forces every Search to return this error.
	Fail error
	// Delay simulates upstream latency before responding.
	Delay time.Duration
}

func (s *StubConnector) Name() string { return s.Source }

func (s *StubConnector) Search(ctx context.Context, q Query) ([]Result, error) {
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.Delay):
		}
	}
	if s.Fail != nil {
		return nil, s.Fail
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := cannedResults(s.Source, q.Text)
	if q.MaxResults > 0 && len(results) > q.MaxResults {
		results = results[:q.MaxResults]
	}
	if !q.IncludeContent {
		for i := range results {
			results[i].Content = ""
		}
	}
	return results, nil
}

func cannedResults(source, query string) []Result {
	days := func(n int) *time.Time {
		t := time.Now().UTC().AddDate(0, 0, -n)
		return &t
	}
	switch source {
	case "google_drive":
		return []Result{
			{
				Title:        fmt.Sprintf("Document about %s", query),
				Source:       source,
				URL:          "https://drive.google.com/doc/mock",
				Snippet:      fmt.Sprintf("This document contains information about %s...", query),
				Score:        0.95,
				LastModified: days(1),
				Content:      fmt.Sprintf("Full content about %s would be here...", query),
			},
			{
				Title:        fmt.Sprintf("Meeting notes: %s", query),
				Source:       source,
				URL:          "https://drive.google.com/doc/mock-2",
				Snippet:      fmt.Sprintf("Notes from the weekly sync covering %s...", query),
				Score:        0.79,
				LastModified: days(3),
				Content:      fmt.Sprintf("Full meeting notes about %s...", query),
			},
		}
	case "notion":
		return []Result{
			{
				Title:        fmt.Sprintf("Notion page: %s", query),
				Source:       source,
				URL:          "https://notion.so/mock-page",
				Snippet:      fmt.Sprintf("Notion content about %s...", query),
				Score:        0.88,
				LastModified: days(2),
				Content:      fmt.Sprintf("Full Notion content about %s...", query),
			},
			{
				Title:        fmt.Sprintf("Notion database: %s", query),
				Source:       source,
				URL:          "https://notion.so/mock-db",
				Snippet:      fmt.Sprintf("Database entries matching %s...", query),
				Score:        0.71,
				LastModified: days(5),
				Content:      fmt.Sprintf("Database rows about %s...", query),
			},
		}
	case "sharepoint":
		return []Result{
			{
				Title:        fmt.Sprintf("SharePoint file: %s", query),
				Source:       source,
				URL:          "https://example.sharepoint.com/sites/docs/mock",
				Snippet:      fmt.Sprintf("SharePoint material about %s...", query),
				Score:        0.82,
				LastModified: days(4),
				Content:      fmt.Sprintf("Full SharePoint document about %s...", query),
			},
		}
	}
	return []Result{
		{
			Title:   fmt.Sprintf("%s result for %s", source, query),
			Source:  source,
			URL:     fmt.Sprintf("https://%s.example/mock", source),
			Snippet: fmt.Sprintf("Content about %s...", query),
			Score:   0.5,
		},
	}
}
