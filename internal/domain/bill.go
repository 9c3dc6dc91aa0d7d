// Package domain defines the core business entities for the bill
// insights service. These models are independent of external services
// and represent the canonical data structures used throughout the app.
package domain

import "time"

// ============================================================
// Bills
// ============================================================

// Bill is a single expense (or income) record. The local store owns it
// until it is synced; UpdatedAt is the authority for conflict resolution.
type Bill struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Amount      float64   `json:"amount"` // signed: expenses positive, refunds negative
	Category    string    `json:"category"`
	Date        time.Time `json:"date"`
	Merchant    string    `json:"merchant,omitempty"`
	Account     string    `json:"account,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	FamilyScope bool      `json:"family_scope"`
	IsDeleted   bool      `json:"is_deleted"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ============================================================
// Budgets
// ============================================================

// BudgetFilterMode controls which categories a budget applies to.
type BudgetFilterMode string

const (
	FilterAll     BudgetFilterMode = "all"
	FilterInclude BudgetFilterMode = "include"
	FilterExclude BudgetFilterMode = "exclude"
)

// PeriodBudget is the spending budget for one period granularity.
// Amount is nil when no budget is set.
type PeriodBudget struct {
	Period     PeriodType       `json:"period"`
	Amount     *float64         `json:"amount,omitempty"`
	FilterMode BudgetFilterMode `json:"filter_mode"`
	Categories []string         `json:"categories,omitempty"` // used only when FilterMode != all
}

// FilterBills applies the budget's category filter to a bill slice.
// include keeps only the listed categories, exclude drops them,
// all (or a nil budget) is a no-op.
func (b *PeriodBudget) FilterBills(bills []Bill) []Bill {
	if b == nil || b.FilterMode == FilterAll || b.FilterMode == "" {
		return bills
	}
	listed := make(map[string]bool, len(b.Categories))
	for _, c := range b.Categories {
		listed[c] = true
	}
	out := make([]Bill, 0, len(bills))
	for _, bill := range bills {
		switch b.FilterMode {
		case FilterInclude:
			if listed[bill.Category] {
				out = append(out, bill)
			}
		case FilterExclude:
			if !listed[bill.Category] {
				out = append(out, bill)
			}
		}
	}
	return out
}

// ============================================================
// Sync
// ============================================================

// SyncAction is the kind of mutation carried by a sync operation.
type SyncAction string

const (
	SyncCreate SyncAction = "create"
	SyncUpdate SyncAction = "update"
	SyncDelete SyncAction = "delete"
)

// SyncOperation is one element of an upload batch. Delete never removes
// the row: it flips IsDeleted and bumps UpdatedAt (tombstone) so other
// devices observe the deletion on their next download.
type SyncOperation struct {
	Action SyncAction `json:"action"`
	Bill   Bill       `json:"bill"`
}

// SyncStrategy selects how local and remote bill sets are reconciled.
// It is always chosen explicitly by the caller, never inferred.
type SyncStrategy string

const (
	StrategyMerge            SyncStrategy = "merge"
	StrategyClearAndDownload SyncStrategy = "clear_and_download"
	StrategyPushAndOverride  SyncStrategy = "push_and_override"
)

// Valid reports whether s is a known sync strategy.
func (s SyncStrategy) Valid() bool {
	switch s {
	case StrategyMerge, StrategyClearAndDownload, StrategyPushAndOverride:
		return true
	}
	return false
}

// UploadResult reports how many operations of a batch were applied.
// Partial success is expected: failing rows are skipped, not rolled back.
type UploadResult struct {
	Success  bool `json:"success"`
	Uploaded int  `json:"uploaded"`
}

// DownloadResult is the response shape of the bill download endpoint.
// Bills includes soft-deleted tombstones.
type DownloadResult struct {
	Success bool   `json:"success"`
	Bills   []Bill `json:"bills"`
}
