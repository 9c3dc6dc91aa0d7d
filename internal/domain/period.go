package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ============================================================
// Periods & view scopes
// ============================================================

// PeriodType is the report granularity.
type PeriodType string

const (
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
	PeriodYear  PeriodType = "year"
)

// AllPeriodTypes lists every granularity, in preload order.
var AllPeriodTypes = []PeriodType{PeriodWeek, PeriodMonth, PeriodYear}

// Valid reports whether pt is a known period type.
func (pt PeriodType) Valid() bool {
	switch pt {
	case PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// ViewScope selects personal vs family-shared bill visibility.
type ViewScope string

const (
	ScopePersonal ViewScope = "personal"
	ScopeFamily   ViewScope = "family"
)

// Valid reports whether vs is a known view scope.
func (vs ViewScope) Valid() bool {
	return vs == ScopePersonal || vs == ScopeFamily
}

// PeriodRange resolves a period selector id to an inclusive [start, end]
// date range. Selector formats:
//
//	week:  "2025-W33"  (ISO week, Monday through Sunday)
//	month: "2025-08"
//	year:  "2025"
//
// Both ends are inclusive; End is the last calendar day of the period at
// midnight, matching the inclusive filtering done by the summarizer.
func PeriodRange(pt PeriodType, selectorID string, loc *time.Location) (start, end time.Time, err error) {
	if loc == nil {
		loc = time.UTC
	}
	switch pt {
	case PeriodWeek:
		parts := strings.SplitN(selectorID, "-W", 2)
		if len(parts) != 2 {
			return start, end, &ErrValidation{Field: "period_selector", Message: fmt.Sprintf("invalid week selector %q", selectorID)}
		}
		year, yerr := strconv.Atoi(parts[0])
		week, werr := strconv.Atoi(parts[1])
		if yerr != nil || werr != nil || week < 1 || week > 53 {
			return start, end, &ErrValidation{Field: "period_selector", Message: fmt.Sprintf("invalid week selector %q", selectorID)}
		}
		start = isoWeekStart(year, week, loc)
		end = start.AddDate(0, 0, 6)
		return start, end, nil

	case PeriodMonth:
		t, perr := time.ParseInLocation("2006-01", selectorID, loc)
		if perr != nil {
			return start, end, &ErrValidation{Field: "period_selector", Message: fmt.Sprintf("invalid month selector %q", selectorID)}
		}
		start = t
		end = t.AddDate(0, 1, -1)
		return start, end, nil

	case PeriodYear:
		t, perr := time.ParseInLocation("2006", selectorID, loc)
		if perr != nil {
			return start, end, &ErrValidation{Field: "period_selector", Message: fmt.Sprintf("invalid year selector %q", selectorID)}
		}
		start = t
		end = t.AddDate(1, 0, -1)
		return start, end, nil
	}
	return start, end, &ErrValidation{Field: "period_type", Message: fmt.Sprintf("unknown period type %q", pt)}
}

// SelectorFor returns the selector id of the period of type pt that
// contains t. It is the inverse of PeriodRange for any day inside the
// period, and is what the preloader uses to derive sibling selectors.
func SelectorFor(pt PeriodType, t time.Time) string {
	switch pt {
	case PeriodWeek:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case PeriodMonth:
		return t.Format("2006-01")
	case PeriodYear:
		return t.Format("2006")
	}
	return ""
}

// isoWeekStart returns the Monday of the given ISO week.
func isoWeekStart(year, week int, loc *time.Location) time.Time {
	// Jan 4 is always in ISO week 1.
	t := time.Date(year, time.January, 4, 0, 0, 0, 0, loc)
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7 // Sunday
	}
	monday := t.AddDate(0, 0, 1-wd)
	return monday.AddDate(0, 0, (week-1)*7)
}

// DayCount returns the number of calendar days in the inclusive range
// [start, end]. It is the required length of a dense daily series.
// Both ends are normalized to UTC dates so DST transitions in the
// inputs' locations cannot shorten a day below 24 hours.
func DayCount(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if e.Before(s) {
		return 0
	}
	return int(e.Sub(s).Hours()/24) + 1
}
