package api

import (
	"clarity/internal/models"
	"context"
	"errors"
	"net/http"
	"net/url"

	json "github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"
)

// AdaptMetric reads a metric total and its trend. The trend is taken as the
// backend computed it; a missing trend is neutral.
func AdaptMetric(metric models.Metric, timeRange models.TimeRange) func(json.RawMessage) (models.MetricSummary, error) {
	return func(raw json.RawMessage) (models.MetricSummary, error) {
		summary := models.MetricSummary{Metric: metric, TimeRange: timeRange, Trend: models.NeutralTrend}

		var scalar float64
		if err := json.Unmarshal(raw, &scalar); err == nil {
			summary.Total = int(scalar)
			return summary, nil
		}

		obj, err := decodeObject(raw)
		if err != nil {
			return summary, err
		}
		if total, ok := pickNumber(obj, "total", "count", "value", string(metric)); ok {
			summary.Total = int(total)
		}

		switch t := obj["trend"].(type) {
		case map[string]any:
			if v, ok := pickNumber(t, "value", "percent", "change"); ok {
				summary.Trend.Value = v
				summary.Trend.IsPositive = v >= 0
			}
			if pos, ok := pickBool(t, "isPositive", "positive"); ok {
				summary.Trend.IsPositive = pos
			}
		case float64:
			summary.Trend = models.Trend{Value: t, IsPositive: t >= 0}
		}
		return summary, nil
	}
}

func (c *Client) GetMetric(ctx context.Context, metric models.Metric, timeRange models.TimeRange) models.Result[models.MetricSummary] {
	return fetch(ctx, c, request{
		method:   http.MethodGet,
		path:     "/v1/institutions/metrics",
		query:    url.Values{"metric": {string(metric)}, "range": {string(timeRange)}},
		endpoint: "metric_" + string(metric),
	}, AdaptMetric(metric, timeRange))
}

// GetDashboardStats fetches the three metric totals concurrently. Any failed
// metric fails the whole snapshot.
func (c *Client) GetDashboardStats(ctx context.Context, timeRange models.TimeRange, institutionID string) models.Result[models.DashboardStatsSnapshot] {
	results := make([]models.Result[models.MetricSummary], len(models.Metrics))

	g, gctx := errgroup.WithContext(ctx)
	for i, metric := range models.Metrics {
		g.Go(func() error {
			results[i] = c.GetMetric(gctx, metric, timeRange)
			return ResultError(results[i])
		})
	}
	if err := g.Wait(); err != nil {
		for _, r := range results {
			if !r.Success && r.Message != "" && r.Message != "request cancelled" {
				return models.Fail[models.DashboardStatsSnapshot](r.Status, r.Message)
			}
		}
		var fe *FetchError
		if errors.As(err, &fe) {
			return models.Fail[models.DashboardStatsSnapshot](fe.Status, fe.Message)
		}
		return models.Fail[models.DashboardStatsSnapshot](0, err.Error())
	}

	snap := models.DashboardStatsSnapshot{TimeRange: timeRange, InstitutionID: institutionID}
	for _, r := range results {
		switch r.Data.Metric {
		case models.MetricViews:
			snap.Views, snap.ViewsTrend = r.Data.Total, r.Data.Trend
		case models.MetricComparisons:
			snap.Comparisons, snap.ComparisonsTrend = r.Data.Total, r.Data.Trend
		case models.MetricLeads:
			snap.Leads, snap.LeadsTrend = r.Data.Total, r.Data.Trend
		}
	}
	return models.Ok(snap, http.StatusOK)
}
