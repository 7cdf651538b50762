package store

import (
	"context"

	"github.com/nulzo/polly/internal/store/model"
)

// Repository is the contract for the data layer. Only request analytics are
// persisted; credentials never touch storage.
type Repository interface {
	Requests() RequestRepository

	Close() error
}

type RequestRepository interface {
	// Log stores a completed request.
	Log(ctx context.Context, log *model.RequestLog) error
	// GetRecent returns the last N logs.
	GetRecent(ctx context.Context, limit int) ([]model.RequestLog, error)
	// GetDailyStats returns aggregated stats grouped by day.
	GetDailyStats(ctx context.Context, days int) ([]model.DailyStats, error)
}
