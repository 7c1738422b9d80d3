package models

import "fmt"

type Metric string

const (
	MetricViews       Metric = "views"
	MetricComparisons Metric = "comparisons"
	MetricLeads       Metric = "leads"
)

var Metrics = []Metric{MetricViews, MetricComparisons, MetricLeads}

func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricViews, MetricComparisons, MetricLeads:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

const MonthsInYear = 12

type ChartSeriesSnapshot struct {
	Metric        Metric            `json:"metric"`
	Year          int               `json:"year"`
	Series        [MonthsInYear]int `json:"series"`
	InstitutionID string            `json:"institutionId"`
	LastUpdated   int64             `json:"lastUpdated"`
}
