package service

import (
	"math"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
)

// recurringMinOccurrences is the policy threshold: a (category, amount)
// group is considered a recurring charge once it repeats this often.
const recurringMinOccurrences = 3

// amortizationDays amortises one monthly charge over a fixed 30-day
// month. Weekly and monthly cadences are deliberately indistinguishable;
// the detector approximates, it does not inspect calendar spacing.
const amortizationDays = 30

// DetectRecurring groups bills by exact (category, amount) pairs and
// estimates how many days the cash balance covers the summed daily rate
// of all qualifying groups. CoverDays is 0 when no group qualifies or
// there is no cash.
func DetectRecurring(bills []domain.Bill, cashBalance float64) domain.RecurringStats {
	type groupKey struct {
		category string
		amount   float64
	}
	counts := make(map[groupKey]int)
	for _, b := range bills {
		counts[groupKey{b.Category, b.Amount}]++
	}

	var dailyRate float64
	groups := 0
	for key, n := range counts {
		if n < recurringMinOccurrences {
			continue
		}
		groups++
		// one representative occurrence, treated as a monthly charge
		dailyRate += key.amount / amortizationDays
	}

	coverDays := 0
	if dailyRate > 0 && cashBalance > 0 {
		coverDays = int(math.Floor(cashBalance / dailyRate))
	}

	return domain.RecurringStats{
		RecurringCoverDays: coverDays,
		DailyRate:          dailyRate,
		GroupCount:         groups,
	}
}
