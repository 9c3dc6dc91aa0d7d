package service

import (
	"math"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
)

// Deduction weights of the health score model.
const (
	weightBudget     = 0.4
	weightVolatility = 0.3
	weightSavings    = 0.2
	weightRecurring  = 0.1

	// A recurring cover of this many days or more costs nothing.
	recurringSafeDays = 70
)

// HealthInput carries the metrics the score is computed from.
// BudgetUsagePct is nil when no budget is set; SavingsRatePct is nil
// when income is untracked; in both cases the metric is omitted from
// the deductions rather than defaulted, so users who don't track a
// budget or income are not penalised for it.
type HealthInput struct {
	BudgetUsagePct     *float64
	VolatilityPct      float64
	SavingsRatePct     *float64
	RecurringCoverDays int
}

// CalculateHealthScore applies the weighted deduction model and returns
// the composite score with its per-metric sub-scores. The score is not
// clamped: out-of-range values are real signals and surfaced as-is.
func CalculateHealthScore(in HealthInput) domain.HealthScoreDetail {
	subs := make([]domain.HealthSubScore, 0, 4)
	var total float64

	var budgetDeduction float64
	if in.BudgetUsagePct != nil {
		budgetDeduction = *in.BudgetUsagePct * weightBudget
	}
	total += budgetDeduction
	subs = append(subs, domain.HealthSubScore{
		Metric:    "budget_usage",
		Pct:       in.BudgetUsagePct,
		Deduction: budgetDeduction,
	})

	volatilityDeduction := in.VolatilityPct * weightVolatility
	total += volatilityDeduction
	vol := in.VolatilityPct
	subs = append(subs, domain.HealthSubScore{
		Metric:    "volatility",
		Pct:       &vol,
		Deduction: volatilityDeduction,
	})

	if in.SavingsRatePct != nil {
		savingsDeduction := (100 - *in.SavingsRatePct) * weightSavings
		total += savingsDeduction
		subs = append(subs, domain.HealthSubScore{
			Metric:    "savings_rate",
			Pct:       in.SavingsRatePct,
			Deduction: savingsDeduction,
		})
	}

	recurringDeduction := math.Max(0, float64(recurringSafeDays-in.RecurringCoverDays)) * weightRecurring
	total += recurringDeduction
	cover := float64(in.RecurringCoverDays)
	subs = append(subs, domain.HealthSubScore{
		Metric:    "recurring_cover",
		Pct:       &cover,
		Deduction: recurringDeduction,
	})

	score := int(math.Round(100 - total))
	return domain.HealthScoreDetail{
		Score:     score,
		Status:    domain.StatusForScore(score),
		SubScores: subs,
	}
}

// HealthInputFromSummary derives the score inputs from a summary and
// the period budget. SavingsRatePct is only present when the summary
// tracked income.
func HealthInputFromSummary(sum domain.BillSummary, budget *domain.PeriodBudget) HealthInput {
	in := HealthInput{
		VolatilityPct:      sum.Volatility.VolatilityPct,
		RecurringCoverDays: sum.Recurring.RecurringCoverDays,
	}
	if budget != nil && budget.Amount != nil && *budget.Amount > 0 {
		pct := sum.Core.TotalExpense / *budget.Amount * 100
		in.BudgetUsagePct = &pct
	}
	if sum.Core.TotalIncome != nil && *sum.Core.TotalIncome > 0 {
		rate := (*sum.Core.TotalIncome - sum.Core.TotalExpense) / *sum.Core.TotalIncome * 100
		in.SavingsRatePct = &rate
	}
	return in
}
