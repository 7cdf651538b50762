package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nulzo/polly/internal/store"
	"github.com/nulzo/polly/internal/store/cache"
	"github.com/nulzo/polly/internal/store/model"
)

type stubRepo struct {
	stats []model.DailyStats
	calls int
}

func (s *stubRepo) Requests() store.RequestRepository { return s }
func (s *stubRepo) Close() error                      { return nil }

func (s *stubRepo) Log(context.Context, *model.RequestLog) error { return nil }
func (s *stubRepo) GetRecent(context.Context, int) ([]model.RequestLog, error) {
	return nil, nil
}
func (s *stubRepo) GetDailyStats(context.Context, int) ([]model.DailyStats, error) {
	s.calls++
	return s.stats, nil
}

func TestGetUsageOverviewCachesResults(t *testing.T) {
	repo := &stubRepo{stats: []model.DailyStats{{Date: "2026-09-01", TotalRequests: 3}}}
	svc := NewService(repo, cache.NewMemoryCache())
	ctx := context.Background()

	first, err := svc.GetUsageOverview(ctx, 7)
	require.NoError(t, err)
	second, err := svc.GetUsageOverview(ctx, 7)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.calls, "second read should come from cache")
}

func TestGetUsageOverviewDefaultsToSevenDays(t *testing.T) {
	repo := &stubRepo{}
	svc := NewService(repo, cache.NewMemoryCache())

	_, err := svc.GetUsageOverview(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
}
