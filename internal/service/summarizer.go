// Package service implements the analytics, caching and sync logic of
// the bill insights core.
package service

import (
	"math"
	"sort"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
)

// SummarizeInput bundles everything the summarizer needs. Summarize is a
// pure function of this input: no hidden state, no I/O.
type SummarizeInput struct {
	Bills       []domain.Bill
	Budget      *domain.PeriodBudget
	Period      domain.PeriodType
	Start       time.Time // inclusive
	End         time.Time // inclusive
	CashBalance float64
	TotalIncome *float64 // nil when income is untracked
}

// Summarize aggregates bills into a BillSummary: totals, category
// breakdown, dense daily series with volatility stats, top spend days
// and recurring coverage.
func Summarize(in SummarizeInput) domain.BillSummary {
	bills := filterByRange(in.Bills, in.Start, in.End)
	bills = in.Budget.FilterBills(bills)

	var totalExpense float64
	byCategory := make(map[string]float64)
	for _, b := range bills {
		totalExpense += b.Amount
		byCategory[b.Category] += b.Amount
	}

	daily, days := dailySeries(bills, in.Start, in.End)

	return domain.BillSummary{
		Period:    in.Period,
		StartDate: in.Start,
		EndDate:   in.End,
		Core: domain.CoreTotals{
			TotalExpense: totalExpense,
			TotalIncome:  in.TotalIncome,
		},
		CategoryUtil: categoryUtil(byCategory, in.Budget),
		Volatility:   volatilityStats(daily),
		TopSpendDays: topSpendDays(daily, days, 3),
		Recurring:    DetectRecurring(bills, in.CashBalance),
	}
}

// filterByRange keeps bills whose date falls inside [start, end],
// inclusive on both ends. Tombstones are dropped.
func filterByRange(bills []domain.Bill, start, end time.Time) []domain.Bill {
	s := midnight(start)
	e := midnight(end)
	out := make([]domain.Bill, 0, len(bills))
	for _, b := range bills {
		if b.IsDeleted {
			continue
		}
		d := midnight(b.Date)
		if d.Before(s) || d.After(e) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// categoryUtil sorts categories descending by amount and truncates to
// domain.MaxCategoryEntries. The long tail stays in the overall total.
func categoryUtil(byCategory map[string]float64, budget *domain.PeriodBudget) []domain.CategoryUtil {
	entries := make([]domain.CategoryUtil, 0, len(byCategory))
	for cat, amount := range byCategory {
		e := domain.CategoryUtil{Category: cat, Amount: amount}
		if budget != nil && budget.Amount != nil && *budget.Amount > 0 {
			e.Budget = budget.Amount
			pct := amount / *budget.Amount * 100
			e.UsagePct = &pct
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Amount != entries[j].Amount {
			return entries[i].Amount > entries[j].Amount
		}
		return entries[i].Category < entries[j].Category
	})
	if len(entries) > domain.MaxCategoryEntries {
		entries = entries[:domain.MaxCategoryEntries]
	}
	return entries
}

// dailySeries builds one bucket per calendar day in [start, end],
// zero-filled for no-spend days. The returned days slice carries the
// bucket dates in order.
func dailySeries(bills []domain.Bill, start, end time.Time) ([]float64, []time.Time) {
	n := domain.DayCount(start, end)
	daily := make([]float64, n)
	days := make([]time.Time, n)
	s := midnight(start)
	for i := 0; i < n; i++ {
		days[i] = s.AddDate(0, 0, i)
	}
	for _, b := range bills {
		idx := domain.DayCount(s, b.Date) - 1
		if idx >= 0 && idx < n {
			daily[idx] += b.Amount
		}
	}
	return daily, days
}

// volatilityStats computes the distribution stats over the dense series.
// VolatilityPct is population stdev over mean; it is defined as 0 when
// the mean is 0 rather than NaN.
func volatilityStats(daily []float64) domain.VolatilityStats {
	n := len(daily)
	if n == 0 {
		return domain.VolatilityStats{Daily: []float64{}}
	}

	var sum float64
	for _, v := range daily {
		sum += v
	}
	mean := sum / float64(n)

	sorted := append([]float64(nil), daily...)
	sort.Float64s(sorted)

	// lower-middle median on even length
	median := sorted[(n-1)/2]
	p90 := sorted[int(math.Floor(float64(n)*0.9))]

	var sqDiff float64
	for _, v := range daily {
		d := v - mean
		sqDiff += d * d
	}
	stdev := math.Sqrt(sqDiff / float64(n))

	volatilityPct := 0.0
	if mean != 0 {
		volatilityPct = stdev / mean * 100
	}

	return domain.VolatilityStats{
		Daily:         daily,
		Mean:          mean,
		Median:        median,
		P90:           p90,
		Min:           sorted[0],
		Max:           sorted[n-1],
		VolatilityPct: volatilityPct,
	}
}

// topSpendDays returns the k highest-spend days, descending by amount.
func topSpendDays(daily []float64, days []time.Time, k int) []domain.DaySpend {
	all := make([]domain.DaySpend, len(daily))
	for i, v := range daily {
		all[i] = domain.DaySpend{Date: days[i], Amount: v}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Amount > all[j].Amount
	})
	if len(all) > k {
		all = all[:k]
	}
	return all
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
