package domain

import "time"

// ============================================================
// Reports
// ============================================================

// ChartPoint is one point of the report's daily spending series.
type ChartPoint struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Amount float64 `json:"amount"`
}

// Report is the full payload served to the report view: summary,
// health score and the chart series derived from the daily buckets.
type Report struct {
	PeriodType  PeriodType        `json:"period_type"`
	ViewScope   ViewScope         `json:"view_scope"`
	SelectorID  string            `json:"selector_id"`
	Summary     BillSummary       `json:"summary"`
	Health      HealthScoreDetail `json:"health"`
	Series      []ChartPoint      `json:"series"`
	DataVersion int64             `json:"data_version"`
	BuiltAt     time.Time         `json:"built_at"`
	Empty       bool              `json:"empty,omitempty"` // fallback marker when the builder failed
}

// EmptyReport is the minimal fallback served when the report builder
// fails: the caller never observes the underlying error.
func EmptyReport(pt PeriodType, vs ViewScope, selectorID string, dataVersion int64) *Report {
	return &Report{
		PeriodType:  pt,
		ViewScope:   vs,
		SelectorID:  selectorID,
		Summary:     BillSummary{Period: pt},
		Health:      HealthScoreDetail{Score: 0, Status: HealthDanger},
		Series:      []ChartPoint{},
		DataVersion: dataVersion,
		BuiltAt:     time.Now(),
		Empty:       true,
	}
}

// ReportKey is the cache key for one (period type, scope, selector)
// combination.
func ReportKey(pt PeriodType, vs ViewScope, selectorID string) string {
	return string(pt) + "|" + string(vs) + "|" + selectorID
}
