package domain

// ============================================================
// Financial Health Score
// ============================================================

// HealthStatus buckets a health score for display.
type HealthStatus string

const (
	HealthGood    HealthStatus = "good"    // score >= 70
	HealthWarning HealthStatus = "warning" // 40 <= score < 70
	HealthDanger  HealthStatus = "danger"  // score < 40
)

// HealthSubScore is one metric's contribution to the composite score,
// retained for UI drill-down.
type HealthSubScore struct {
	Metric    string   `json:"metric"`
	Pct       *float64 `json:"pct,omitempty"` // nil when the metric was untracked
	Deduction float64  `json:"deduction"`
}

// HealthScoreDetail is the composite financial health score.
// Score is the raw weighted value and is intentionally not clamped to
// [0,100]; heavy overspending can push it below zero and the UI is
// expected to surface that.
type HealthScoreDetail struct {
	Score     int              `json:"score"`
	Status    HealthStatus     `json:"status"`
	SubScores []HealthSubScore `json:"sub_scores"`
}

// StatusForScore maps a raw score onto its display bucket.
func StatusForScore(score int) HealthStatus {
	switch {
	case score >= 70:
		return HealthGood
	case score >= 40:
		return HealthWarning
	default:
		return HealthDanger
	}
}
