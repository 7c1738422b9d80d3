package api

import (
	"clarity/internal/models"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
)

// NormalizeSeries turns a series payload into exactly twelve monthly values.
//
// Accepted shapes: a positional array of numbers, an array of
// {month, count|value} points with a 0-based month index, or an object
// wrapping either under "series", "data", "months" or "values". Missing months
// are 0, out-of-range months are dropped and input order is never changed.
func NormalizeSeries(raw json.RawMessage) ([models.MonthsInYear]int, error) {
	var out [models.MonthsInYear]int

	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return out, err
	}

	switch t := v.(type) {
	case nil:
		return out, nil
	case []any:
		fillSeries(&out, t)
		return out, nil
	case map[string]any:
		for _, field := range []string{"series", "data", "months", "values"} {
			if items, ok := t[field].([]any); ok {
				fillSeries(&out, items)
				return out, nil
			}
		}
		return out, fmt.Errorf("series object has no points")
	}
	return out, fmt.Errorf("unexpected series payload %T", v)
}

func fillSeries(out *[models.MonthsInYear]int, items []any) {
	for i, item := range items {
		switch point := item.(type) {
		case float64, string:
			if n, ok := toNumber(point); ok && i < models.MonthsInYear {
				out[i] = int(n)
			}
		case map[string]any:
			month, ok := pickNumber(point, "month", "monthIndex")
			if !ok {
				month = float64(i)
			}
			m := int(month)
			if m < 0 || m >= models.MonthsInYear || float64(m) != month {
				continue
			}
			if n, ok := pickNumber(point, "count", "value", "total"); ok {
				out[m] = int(n)
			}
		}
	}
}

func (c *Client) GetSeries(ctx context.Context, metric models.Metric, year int) models.Result[[models.MonthsInYear]int] {
	return fetch(ctx, c, request{
		method:   http.MethodGet,
		path:     "/v1/institutions/metrics/series",
		query:    url.Values{"metric": {string(metric)}, "year": {strconv.Itoa(year)}},
		endpoint: "series_" + string(metric),
	}, NormalizeSeries)
}
