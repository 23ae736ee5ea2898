// Package metrics records pipeline activity: Prometheus collectors for
// scraping, and an in-memory history of recent generations for the API.
package metrics

import "time"

// Generation outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomePartial    = "partial"
	OutcomeValidation = "validation_error"
	OutcomeTransport  = "transport_error"
	OutcomeNoImages   = "no_images"
	OutcomeCancelled  = "cancelled"
)

// GenerationRecord summarizes one finished generation.
type GenerationRecord struct {
	ID        string        `json:"id"`
	Outcome   string        `json:"outcome"`
	Requested int           `json:"requested"`
	Delivered int           `json:"delivered"`
	Duration  time.Duration `json:"duration"`
	EndTime   time.Time     `json:"end_time"`
}

// Summary aggregates every generation recorded since start.
type Summary struct {
	Total       int64            `json:"total"`
	ByOutcome   map[string]int64 `json:"by_outcome"`
	AvgDuration time.Duration    `json:"avg_duration"`
	Uptime      time.Duration    `json:"uptime"`
}
