package model

import (
	"database/sql"
	"time"
)

// Request modes as they appear in request_logs.mode.
const (
	ModeChat       = "chat"
	ModeAgent      = "agent"
	ModeStructured = "structured"
	ModeProbe      = "probe"
)

// RequestLog captures the detail of one completed request. The API key that
// authorized the upstream call is deliberately absent from this record.
type RequestLog struct {
	ID         string `db:"id" json:"id"`
	Provider   string `db:"provider" json:"provider"`
	Model      string `db:"model" json:"model"`
	Mode       string `db:"mode" json:"mode"`
	StatusCode int    `db:"status_code" json:"status_code"`

	InputTokens  int `db:"input_tokens" json:"input_tokens"`
	OutputTokens int `db:"output_tokens" json:"output_tokens"`

	LatencyMS int64         `db:"latency_ms" json:"latency_ms"`
	TTFTMS    sql.NullInt64 `db:"ttft_ms" json:"ttft_ms,omitempty"`

	IsStreamed bool      `db:"is_streamed" json:"is_streamed"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DailyStats is aggregated usage for one day.
type DailyStats struct {
	Date           string  `db:"date" json:"date"`
	TotalRequests  int     `db:"total_requests" json:"total_requests"`
	TotalTokens    int     `db:"total_tokens" json:"total_tokens"`
	AverageLatency float64 `db:"avg_latency" json:"avg_latency"`
}
