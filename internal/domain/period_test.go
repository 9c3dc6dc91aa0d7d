package domain_test

import (
	"testing"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
)

func TestPeriodRange_Week(t *testing.T) {
	start, end, err := domain.PeriodRange(domain.PeriodWeek, "2025-W33", time.UTC)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if start.Weekday() != time.Monday {
		t.Errorf("expected week to start on Monday, got %s", start.Weekday())
	}
	if got := start.Format("2006-01-02"); got != "2025-08-11" {
		t.Errorf("expected start 2025-08-11, got %s", got)
	}
	if got := end.Format("2006-01-02"); got != "2025-08-17" {
		t.Errorf("expected end 2025-08-17, got %s", got)
	}
	if n := domain.DayCount(start, end); n != 7 {
		t.Errorf("expected 7 days, got %d", n)
	}
}

func TestPeriodRange_Month(t *testing.T) {
	tests := []struct {
		selector string
		start    string
		end      string
		days     int
	}{
		{"2025-08", "2025-08-01", "2025-08-31", 31},
		{"2025-02", "2025-02-01", "2025-02-28", 28},
		{"2024-02", "2024-02-01", "2024-02-29", 29}, // leap year
		{"2025-04", "2025-04-01", "2025-04-30", 30},
	}
	for _, tt := range tests {
		start, end, err := domain.PeriodRange(domain.PeriodMonth, tt.selector, time.UTC)
		if err != nil {
			t.Fatalf("%s: expected no error, got %v", tt.selector, err)
		}
		if got := start.Format("2006-01-02"); got != tt.start {
			t.Errorf("%s: expected start %s, got %s", tt.selector, tt.start, got)
		}
		if got := end.Format("2006-01-02"); got != tt.end {
			t.Errorf("%s: expected end %s, got %s", tt.selector, tt.end, got)
		}
		if n := domain.DayCount(start, end); n != tt.days {
			t.Errorf("%s: expected %d days, got %d", tt.selector, tt.days, n)
		}
	}
}

func TestPeriodRange_Year(t *testing.T) {
	start, end, err := domain.PeriodRange(domain.PeriodYear, "2024", time.UTC)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := start.Format("2006-01-02"); got != "2024-01-01" {
		t.Errorf("expected start 2024-01-01, got %s", got)
	}
	if got := end.Format("2006-01-02"); got != "2024-12-31" {
		t.Errorf("expected end 2024-12-31, got %s", got)
	}
	if n := domain.DayCount(start, end); n != 366 { // leap year
		t.Errorf("expected 366 days, got %d", n)
	}
}

func TestPeriodRange_InvalidSelectors(t *testing.T) {
	tests := []struct {
		pt       domain.PeriodType
		selector string
	}{
		{domain.PeriodWeek, "2025-33"},
		{domain.PeriodWeek, "2025-W00"},
		{domain.PeriodWeek, "2025-W54"},
		{domain.PeriodWeek, "garbage"},
		{domain.PeriodMonth, "2025-13"},
		{domain.PeriodMonth, "2025"},
		{domain.PeriodYear, "25"},
		{domain.PeriodType("decade"), "2020"},
	}
	for _, tt := range tests {
		if _, _, err := domain.PeriodRange(tt.pt, tt.selector, time.UTC); err == nil {
			t.Errorf("%s %q: expected error, got nil", tt.pt, tt.selector)
		}
	}
}

func TestSelectorFor_RoundTrip(t *testing.T) {
	for _, pt := range domain.AllPeriodTypes {
		sel := domain.SelectorFor(pt, time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC))
		start, end, err := domain.PeriodRange(pt, sel, time.UTC)
		if err != nil {
			t.Fatalf("%s: round trip failed: %v", pt, err)
		}
		day := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
		if day.Before(start) || day.After(end) {
			t.Errorf("%s: selector %q range [%s, %s] does not contain the anchor day",
				pt, sel, start.Format("2006-01-02"), end.Format("2006-01-02"))
		}
	}
}

func TestSelectorFor_ISOWeekYearBoundary(t *testing.T) {
	// 2024-12-30 is a Monday belonging to ISO week 1 of 2025.
	sel := domain.SelectorFor(domain.PeriodWeek, time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC))
	if sel != "2025-W01" {
		t.Errorf("expected 2025-W01, got %s", sel)
	}
	start, _, err := domain.PeriodRange(domain.PeriodWeek, sel, time.UTC)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := start.Format("2006-01-02"); got != "2024-12-30" {
		t.Errorf("expected start 2024-12-30, got %s", got)
	}
}

func TestDayCount(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2025, 8, d, 0, 0, 0, 0, time.UTC)
	}
	if n := domain.DayCount(day(1), day(1)); n != 1 {
		t.Errorf("same day: expected 1, got %d", n)
	}
	if n := domain.DayCount(day(1), day(7)); n != 7 {
		t.Errorf("one week: expected 7, got %d", n)
	}
	if n := domain.DayCount(day(7), day(1)); n != 0 {
		t.Errorf("inverted range: expected 0, got %d", n)
	}
	// time-of-day must not change the count
	noon := time.Date(2025, 8, 1, 12, 30, 0, 0, time.UTC)
	if n := domain.DayCount(noon, day(2)); n != 2 {
		t.Errorf("expected 2, got %d", n)
	}
}

func TestDayCount_SpringForwardDST(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}

	// 2025-03-09 02:00 EST jumps to 03:00 EDT, making the day 23 wall
	// hours long. The count is calendar days, not elapsed hours.
	start := time.Date(2025, 3, 8, 0, 0, 0, 0, loc)
	end := time.Date(2025, 3, 9, 0, 0, 0, 0, loc)
	if n := domain.DayCount(start, end); n != 2 {
		t.Errorf("across spring forward: expected 2 days, got %d", n)
	}

	// The whole month still counts 31 days.
	monthStart := time.Date(2025, 3, 1, 0, 0, 0, 0, loc)
	monthEnd := time.Date(2025, 3, 31, 0, 0, 0, 0, loc)
	if n := domain.DayCount(monthStart, monthEnd); n != 31 {
		t.Errorf("march in a DST location: expected 31 days, got %d", n)
	}
}

func TestPeriodBudget_FilterBills(t *testing.T) {
	bills := []domain.Bill{
		{ID: "a", Category: "food"},
		{ID: "b", Category: "rent"},
		{ID: "c", Category: "travel"},
	}

	include := &domain.PeriodBudget{FilterMode: domain.FilterInclude, Categories: []string{"food", "rent"}}
	got := include.FilterBills(bills)
	if len(got) != 2 {
		t.Fatalf("include: expected 2 bills, got %d", len(got))
	}

	exclude := &domain.PeriodBudget{FilterMode: domain.FilterExclude, Categories: []string{"rent"}}
	got = exclude.FilterBills(bills)
	if len(got) != 2 {
		t.Fatalf("exclude: expected 2 bills, got %d", len(got))
	}
	for _, b := range got {
		if b.Category == "rent" {
			t.Error("exclude: rent should have been dropped")
		}
	}

	var nilBudget *domain.PeriodBudget
	if got := nilBudget.FilterBills(bills); len(got) != 3 {
		t.Errorf("nil budget: expected all 3 bills, got %d", len(got))
	}
}

func TestStatusForScore(t *testing.T) {
	tests := []struct {
		score  int
		status domain.HealthStatus
	}{
		{100, domain.HealthGood},
		{70, domain.HealthGood},
		{69, domain.HealthWarning},
		{40, domain.HealthWarning},
		{39, domain.HealthDanger},
		{0, domain.HealthDanger},
		{-10, domain.HealthDanger},
	}
	for _, tt := range tests {
		if got := domain.StatusForScore(tt.score); got != tt.status {
			t.Errorf("score %d: expected %s, got %s", tt.score, tt.status, got)
		}
	}
}
