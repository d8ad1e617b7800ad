// Package usage records one row per completion call and keeps per-provider
// daily counters for the admin dashboard.
package usage

import (
	"context"
	"time"
)

// Record describes a single completion call. Error is already redacted.
type Record struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"requestId"`
	Provider         string    `json:"provider"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"promptTokens"`
	CompletionTokens int       `json:"completionTokens"`
	LatencyMs        int64     `json:"latencyMs"`
	Success          bool      `json:"success"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (r *Record) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

type Store interface {
	Log(ctx context.Context, rec *Record) error
	List(ctx context.Context, from, to time.Time, limit int) ([]*Record, error)
}

// ProviderStats is one provider's tally for a day.
type ProviderStats struct {
	Requests int64 `json:"requests"`
	Errors   int64 `json:"errors"`
	Tokens   int64 `json:"tokens"`
}

type Counter interface {
	Increment(ctx context.Context, rec *Record) error
	Summary(ctx context.Context, day time.Time) (map[string]ProviderStats, error)
}
