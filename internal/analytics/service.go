package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/nulzo/polly/internal/store"
	"github.com/nulzo/polly/internal/store/cache"
	"github.com/nulzo/polly/internal/store/model"
)

const usageCacheTTL = time.Minute

// Service aggregates request analytics for the usage endpoint.
type Service interface {
	GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error)
}

type service struct {
	repo  store.Repository
	cache cache.CacheService
}

func NewService(repo store.Repository, c cache.CacheService) Service {
	return &service{
		repo:  repo,
		cache: c,
	}
}

func (s *service) GetUsageOverview(ctx context.Context, days int) ([]model.DailyStats, error) {
	if days <= 0 {
		days = 7 // default to last week
	}

	key := fmt.Sprintf("usage:daily:%d", days)
	var cached []model.DailyStats
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	stats, err := s.repo.Requests().GetDailyStats(ctx, days)
	if err != nil {
		return nil, err
	}

	_ = s.cache.Set(ctx, key, stats, usageCacheTTL)
	return stats, nil
}
