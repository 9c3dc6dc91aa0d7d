// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
)

// BillStore is the local persistence layer for bills, budgets and users.
// Implemented by the SQLite adapter (or any other persistence layer).
type BillStore interface {
	// Bills
	ListBills(ctx context.Context, userID string, scope domain.ViewScope, from, to time.Time) ([]domain.Bill, error)
	ListAllBills(ctx context.Context, userID string) ([]domain.Bill, error)
	ListBillsSince(ctx context.Context, userID string, since *time.Time) ([]domain.Bill, error)
	GetBill(ctx context.Context, userID, billID string) (*domain.Bill, error)
	UpsertBill(ctx context.Context, bill *domain.Bill) error
	TombstoneBill(ctx context.Context, userID, billID string, at time.Time) error
	ReplaceBills(ctx context.Context, userID string, bills []domain.Bill) error

	// Budgets
	GetBudget(ctx context.Context, userID string, period domain.PeriodType) (*domain.PeriodBudget, error)
	SetBudget(ctx context.Context, userID string, budget *domain.PeriodBudget) error

	// Cash balance (reserve backing the recurring-cover metric)
	GetCashBalance(ctx context.Context, userID string) (float64, error)

	// Users
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)

	// DataVersion is the monotonically increasing counter bumped on every
	// bill/budget mutation; it drives report cache invalidation.
	DataVersion() int64
}

// ReportBuilder produces a full report for one cache key. The coordinator
// treats it as an opaque, possibly-failing function.
type ReportBuilder interface {
	Build(ctx context.Context, userID string, pt domain.PeriodType, vs domain.ViewScope, selectorID string, dataVersion int64) (*domain.Report, error)
}

// RemoteSyncStore is the remote side of bill synchronisation.
type RemoteSyncStore interface {
	Upload(ctx context.Context, ops []domain.SyncOperation) (*domain.UploadResult, error)
	Download(ctx context.Context, lastSync *time.Time) ([]domain.Bill, error)
}

// InsightGenerator invokes the external insight agent with a bill summary.
type InsightGenerator interface {
	Generate(ctx context.Context, req *domain.InsightRequest) (*domain.InsightResponse, error)
}

// Cache provides generic caching with TTL. Purge drops every entry and
// backs data-epoch invalidation.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
	Purge()
}
