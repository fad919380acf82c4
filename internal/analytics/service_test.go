package analytics

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	kpi        KPISummary
	kpiErr     error
	kpiCalls   int
	aging      []AgingBucket
	agingCalls int
	agingAsOf  time.Time
	trend      []RevenuePoint
	trendCalls int
	trendArg   int
}

func (m *mockRepo) KPISummary(ctx context.Context) (KPISummary, error) {
	m.kpiCalls++
	return m.kpi, m.kpiErr
}

func (m *mockRepo) InvoiceAging(ctx context.Context, asOf time.Time) ([]AgingBucket, error) {
	m.agingCalls++
	m.agingAsOf = asOf
	return m.aging, nil
}

func (m *mockRepo) MonthlyRevenue(ctx context.Context, months int) ([]RevenuePoint, error) {
	m.trendCalls++
	m.trendArg = months
	return m.trend, nil
}

func newTestService(t *testing.T, repo RepositoryPort) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	return NewService(repo, cache)
}

func TestGetKPISummaryCaches(t *testing.T) {
	repo := &mockRepo{
		kpi: KPISummary{
			RevenueCollected:   4200,
			OutstandingBalance: 2200,
			InvoiceCounts:      map[string]int{"pending": 3, "paid": 7},
			OpenTickets:        5,
			PipelineValue:      15000,
			ActiveClients:      12,
		},
	}
	svc := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.GetKPISummary(ctx)
	require.NoError(t, err)
	require.Equal(t, float64(4200), first.RevenueCollected)
	require.Equal(t, 3, first.InvoiceCounts["pending"])

	second, err := svc.GetKPISummary(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.kpiCalls, "second call served from cache")
}

func TestInvalidateBumpsVersion(t *testing.T) {
	repo := &mockRepo{kpi: KPISummary{RevenueCollected: 100}}
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.GetKPISummary(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.kpiCalls)

	require.NoError(t, svc.Invalidate(ctx))

	repo.kpi.RevenueCollected = 250
	refreshed, err := svc.GetKPISummary(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, repo.kpiCalls, "bump forces a reload")
	require.Equal(t, float64(250), refreshed.RevenueCollected)
}

func TestGetInvoiceAgingDefaultsAsOf(t *testing.T) {
	repo := &mockRepo{aging: []AgingBucket{{Bucket: "current", Count: 2, Amount: 500}}}
	svc := newTestService(t, repo)
	svc.WithNow(func() time.Time {
		return time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)
	})

	buckets, err := svc.GetInvoiceAging(context.Background(), AgingFilter{})
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	require.Equal(t, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), repo.agingAsOf)
}

func TestGetRevenueTrendClampsMonths(t *testing.T) {
	repo := &mockRepo{trend: []RevenuePoint{{Month: "2025-05", Amount: 900}}}
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.GetRevenueTrend(ctx, TrendFilter{Months: 0})
	require.NoError(t, err)
	require.Equal(t, defaultTrendMonths, repo.trendArg)

	_, err = svc.GetRevenueTrend(ctx, TrendFilter{Months: 100})
	require.NoError(t, err)
	require.Equal(t, defaultTrendMonths, repo.trendArg)

	_, err = svc.GetRevenueTrend(ctx, TrendFilter{Months: 6})
	require.NoError(t, err)
	require.Equal(t, 6, repo.trendArg)
}

func TestWarmPreloadsAllSections(t *testing.T) {
	repo := &mockRepo{
		kpi:   KPISummary{InvoiceCounts: map[string]int{}},
		aging: []AgingBucket{},
		trend: []RevenuePoint{},
	}
	svc := newTestService(t, repo)
	ctx := context.Background()

	require.NoError(t, svc.Warm(ctx))
	require.Equal(t, 1, repo.kpiCalls)
	require.Equal(t, 1, repo.agingCalls)
	require.Equal(t, 1, repo.trendCalls)

	// Subsequent reads hit the warmed cache.
	_, err := svc.GetKPISummary(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, repo.kpiCalls)
}

func TestNilCachePassesThrough(t *testing.T) {
	repo := &mockRepo{kpi: KPISummary{OpenTickets: 4}}
	svc := NewService(repo, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		got, err := svc.GetKPISummary(ctx)
		require.NoError(t, err)
		require.Equal(t, 4, got.OpenTickets)
	}
	require.Equal(t, 2, repo.kpiCalls)
	require.NoError(t, svc.Invalidate(ctx), "nil cache bump is a no-op")
}
