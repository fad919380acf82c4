package analytics

import (
	"context"
	"time"
)

const defaultTrendMonths = 12

// RepositoryPort exposes the aggregate queries the dashboard relies on.
type RepositoryPort interface {
	KPISummary(ctx context.Context) (KPISummary, error)
	InvoiceAging(ctx context.Context, asOf time.Time) ([]AgingBucket, error)
	MonthlyRevenue(ctx context.Context, months int) ([]RevenuePoint, error)
}

// Service coordinates analytics query execution with the cache layer.
type Service struct {
	repo  RepositoryPort
	cache *Cache
	now   func() time.Time
}

// NewService wires a RepositoryPort with a Cache helper.
func NewService(repo RepositoryPort, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// GetKPISummary resolves the dashboard KPI card using cache-aware lookups.
func (s *Service) GetKPISummary(ctx context.Context) (KPISummary, error) {
	loader := func(ctx context.Context) (interface{}, error) {
		return s.repo.KPISummary(ctx)
	}

	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return KPISummary{}, err
		}
		return value.(KPISummary), nil
	}

	key, err := s.cache.BuildKey(ctx, keyDashboard())
	if err != nil {
		return KPISummary{}, err
	}
	var summary KPISummary
	if err := s.cache.FetchJSON(ctx, key, &summary, loader); err != nil {
		return KPISummary{}, err
	}
	return summary, nil
}

// GetInvoiceAging fetches receivable aging buckets.
func (s *Service) GetInvoiceAging(ctx context.Context, filter AgingFilter) ([]AgingBucket, error) {
	if filter.AsOf.IsZero() {
		filter.AsOf = s.now().UTC().Truncate(24 * time.Hour)
	}
	loader := func(ctx context.Context) (interface{}, error) {
		return s.repo.InvoiceAging(ctx, filter.AsOf)
	}

	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return value.([]AgingBucket), nil
	}

	key, err := s.cache.BuildKey(ctx, keyAging(filter.AsOf))
	if err != nil {
		return nil, err
	}
	var buckets []AgingBucket
	if err := s.cache.FetchJSON(ctx, key, &buckets, loader); err != nil {
		return nil, err
	}
	return buckets, nil
}

// GetRevenueTrend fetches the monthly collected revenue series.
func (s *Service) GetRevenueTrend(ctx context.Context, filter TrendFilter) ([]RevenuePoint, error) {
	if filter.Months <= 0 || filter.Months > 36 {
		filter.Months = defaultTrendMonths
	}
	loader := func(ctx context.Context) (interface{}, error) {
		return s.repo.MonthlyRevenue(ctx, filter.Months)
	}

	if s.cache == nil {
		value, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		return value.([]RevenuePoint), nil
	}

	key, err := s.cache.BuildKey(ctx, keyRevenueTrend(filter.Months))
	if err != nil {
		return nil, err
	}
	var points []RevenuePoint
	if err := s.cache.FetchJSON(ctx, key, &points, loader); err != nil {
		return nil, err
	}
	return points, nil
}

// Invalidate bumps the cache version after a write that changes dashboard data.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// Warm preloads the dashboard aggregates into the cache. Used by the cron
// warmup job so first morning request hits warm keys.
func (s *Service) Warm(ctx context.Context) error {
	if _, err := s.GetKPISummary(ctx); err != nil {
		return err
	}
	if _, err := s.GetInvoiceAging(ctx, AgingFilter{}); err != nil {
		return err
	}
	_, err := s.GetRevenueTrend(ctx, TrendFilter{})
	return err
}
