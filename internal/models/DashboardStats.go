package models

import "fmt"

type TimeRange string

const (
	RangeWeekly  TimeRange = "weekly"
	RangeMonthly TimeRange = "monthly"
	RangeYearly  TimeRange = "yearly"
)

var TimeRanges = []TimeRange{RangeWeekly, RangeMonthly, RangeYearly}

func ParseTimeRange(s string) (TimeRange, error) {
	switch TimeRange(s) {
	case RangeWeekly, RangeMonthly, RangeYearly:
		return TimeRange(s), nil
	case "":
		return RangeWeekly, nil
	}
	return "", fmt.Errorf("unknown time range %q", s)
}

// Trend is relayed from the backend as-is; the client never recomputes it.
type Trend struct {
	Value      float64 `json:"value"`
	IsPositive bool    `json:"isPositive"`
}

// NeutralTrend is used when the backend omits a trend object.
var NeutralTrend = Trend{Value: 0, IsPositive: true}

type DashboardStatsSnapshot struct {
	Views            int       `json:"views"`
	Comparisons      int       `json:"comparisons"`
	Leads            int       `json:"leads"`
	ViewsTrend       Trend     `json:"viewsTrend"`
	ComparisonsTrend Trend     `json:"comparisonsTrend"`
	LeadsTrend       Trend     `json:"leadsTrend"`
	TimeRange        TimeRange `json:"timeRange"`
	InstitutionID    string    `json:"institutionId"`
	LastUpdated      int64     `json:"lastUpdated"`
}

// MetricSummary is one metric total for a range plus its server-side trend.
type MetricSummary struct {
	Metric    Metric    `json:"metric"`
	TimeRange TimeRange `json:"timeRange"`
	Total     int       `json:"total"`
	Trend     Trend     `json:"trend"`
}
