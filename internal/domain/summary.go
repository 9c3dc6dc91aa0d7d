package domain

import "time"

// ============================================================
// Bill Summary
// ============================================================

// MaxCategoryEntries bounds the category breakdown (Pareto cutoff):
// only the top categories by amount are reported individually, the
// long tail stays folded into the overall total.
const MaxCategoryEntries = 15

// BillSummary is the aggregated view of a user's bills for one period.
type BillSummary struct {
	Period       PeriodType      `json:"period"`
	StartDate    time.Time       `json:"start_date"` // inclusive
	EndDate      time.Time       `json:"end_date"`   // inclusive
	Core         CoreTotals      `json:"core_totals"`
	CategoryUtil []CategoryUtil  `json:"category_util"` // sorted desc by amount, at most MaxCategoryEntries
	Volatility   VolatilityStats `json:"volatility"`
	TopSpendDays []DaySpend      `json:"top_spend_days"` // top 3 by amount, desc
	Recurring    RecurringStats  `json:"recurring"`
}

// CoreTotals holds the headline numbers of a summary.
type CoreTotals struct {
	TotalExpense float64  `json:"total_expense"`
	TotalIncome  *float64 `json:"total_income,omitempty"` // nil when income is untracked
}

// CategoryUtil is one category's share of spending, with budget
// utilisation when a budget amount is set.
type CategoryUtil struct {
	Category string   `json:"category"`
	Amount   float64  `json:"amount"`
	Budget   *float64 `json:"budget,omitempty"`
	UsagePct *float64 `json:"usage_pct,omitempty"`
}

// VolatilityStats describes the day-to-day spending distribution.
// Daily always has one entry per calendar day in range, zero-filled
// for no-spend days, so charts have a uniform cadence.
type VolatilityStats struct {
	Daily         []float64 `json:"daily"`
	Mean          float64   `json:"mean"`
	Median        float64   `json:"median"`
	P90           float64   `json:"p90"`
	Min           float64   `json:"min"`
	Max           float64   `json:"max"`
	VolatilityPct float64   `json:"volatility_pct"` // population stdev / mean * 100; 0 when mean is 0
}

// DaySpend is one calendar day's total expense.
type DaySpend struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// RecurringStats summarises detected repeating charges.
type RecurringStats struct {
	RecurringCoverDays int     `json:"recurring_cover_days"`
	DailyRate          float64 `json:"daily_rate"`
	GroupCount         int     `json:"group_count"`
}
