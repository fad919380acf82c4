package analytichttp

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridian-crm/meridian/internal/analytics"
	"github.com/meridian-crm/meridian/internal/platform/httpx"
)

const requestTimeout = 2 * time.Second

// AnalyticsService defines the dashboard data contract used by the handler.
type AnalyticsService interface {
	GetKPISummary(ctx context.Context) (analytics.KPISummary, error)
	GetInvoiceAging(ctx context.Context, filter analytics.AgingFilter) ([]analytics.AgingBucket, error)
	GetRevenueTrend(ctx context.Context, filter analytics.TrendFilter) ([]analytics.RevenuePoint, error)
}

// Handler coordinates HTTP requests for the dashboard endpoints.
type Handler struct {
	logger  *slog.Logger
	service AnalyticsService
}

// NewHandler constructs the analytics HTTP handler.
func NewHandler(logger *slog.Logger, service AnalyticsService) *Handler {
	return &Handler{logger: logger, service: service}
}

type dashboardResponse struct {
	KPI    analytics.KPISummary     `json:"kpi"`
	Aging  []analytics.AgingBucket  `json:"aging"`
	Trend  []analytics.RevenuePoint `json:"revenue_trend"`
	Loaded time.Time                `json:"loaded_at"`
}

// handleDashboard loads all dashboard sections in parallel.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	var resp dashboardResponse
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		kpi, err := h.service.GetKPISummary(gctx)
		if err != nil {
			return err
		}
		resp.KPI = kpi
		return nil
	})
	g.Go(func() error {
		aging, err := h.service.GetInvoiceAging(gctx, analytics.AgingFilter{})
		if err != nil {
			return err
		}
		resp.Aging = aging
		return nil
	})
	g.Go(func() error {
		trend, err := h.service.GetRevenueTrend(gctx, analytics.TrendFilter{})
		if err != nil {
			return err
		}
		resp.Trend = trend
		return nil
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("load dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	resp.Loaded = time.Now().UTC()
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	filter := analytics.AgingFilter{}
	if v := r.URL.Query().Get("as_of"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "as_of must be YYYY-MM-DD")
			return
		}
		filter.AsOf = t
	}

	buckets, err := h.service.GetInvoiceAging(r.Context(), filter)
	if err != nil {
		h.logger.Error("load invoice aging", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"buckets": buckets})
}

func (h *Handler) handleRevenueTrend(w http.ResponseWriter, r *http.Request) {
	filter := analytics.TrendFilter{}
	if v := r.URL.Query().Get("months"); v != "" {
		months, err := strconv.Atoi(v)
		if err != nil || months <= 0 || months > 36 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "months must be between 1 and 36")
			return
		}
		filter.Months = months
	}

	points, err := h.service.GetRevenueTrend(r.Context(), filter)
	if err != nil {
		h.logger.Error("load revenue trend", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"points": points})
}
