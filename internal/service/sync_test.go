package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/infra/observability"
	"github.com/mosaicfin/bill-insights-go/internal/service"

	"go.uber.org/zap"
)

// fakeStore is an in-memory port.BillStore for sync tests.
type fakeStore struct {
	bills       map[string]domain.Bill
	budgets     map[domain.PeriodType]domain.PeriodBudget
	cash        float64
	users       map[string]domain.User
	upsertErrOn string // bill id that fails UpsertBill
	version     int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bills:   make(map[string]domain.Bill),
		budgets: make(map[domain.PeriodType]domain.PeriodBudget),
		users:   make(map[string]domain.User),
		version: 1,
	}
}

func (s *fakeStore) ListBills(_ context.Context, _ string, _ domain.ViewScope, from, to time.Time) ([]domain.Bill, error) {
	var out []domain.Bill
	for _, b := range s.bills {
		if b.IsDeleted || b.Date.Before(from) || b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *fakeStore) ListAllBills(_ context.Context, _ string) ([]domain.Bill, error) {
	var out []domain.Bill
	for _, b := range s.bills {
		out = append(out, b)
	}
	return out, nil
}

func (s *fakeStore) ListBillsSince(_ context.Context, _ string, since *time.Time) ([]domain.Bill, error) {
	var out []domain.Bill
	for _, b := range s.bills {
		if since != nil && !b.UpdatedAt.After(*since) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *fakeStore) GetBill(_ context.Context, _ string, billID string) (*domain.Bill, error) {
	if b, ok := s.bills[billID]; ok {
		return &b, nil
	}
	return nil, nil
}

func (s *fakeStore) UpsertBill(_ context.Context, bill *domain.Bill) error {
	if s.upsertErrOn != "" && bill.ID == s.upsertErrOn {
		return errors.New("disk full")
	}
	s.bills[bill.ID] = *bill
	s.version++
	return nil
}

func (s *fakeStore) TombstoneBill(_ context.Context, _ string, billID string, at time.Time) error {
	b, ok := s.bills[billID]
	if !ok {
		return &domain.ErrNotFound{Resource: "bill", ID: billID}
	}
	b.IsDeleted = true
	b.UpdatedAt = at
	s.bills[billID] = b
	s.version++
	return nil
}

func (s *fakeStore) ReplaceBills(_ context.Context, _ string, bills []domain.Bill) error {
	s.bills = make(map[string]domain.Bill, len(bills))
	for _, b := range bills {
		s.bills[b.ID] = b
	}
	s.version++
	return nil
}

func (s *fakeStore) GetBudget(_ context.Context, _ string, period domain.PeriodType) (*domain.PeriodBudget, error) {
	if b, ok := s.budgets[period]; ok {
		return &b, nil
	}
	return nil, nil
}

func (s *fakeStore) SetBudget(_ context.Context, _ string, budget *domain.PeriodBudget) error {
	s.budgets[budget.Period] = *budget
	s.version++
	return nil
}

func (s *fakeStore) GetCashBalance(_ context.Context, _ string) (float64, error) {
	return s.cash, nil
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetUser(_ context.Context, userID string) (*domain.User, error) {
	if u, ok := s.users[userID]; ok {
		return &u, nil
	}
	return nil, nil
}

func (s *fakeStore) DataVersion() int64 { return s.version }

// fakeRemote is an in-memory port.RemoteSyncStore.
type fakeRemote struct {
	bills    []domain.Bill
	uploaded []domain.SyncOperation
	err      error
}

func (r *fakeRemote) Upload(_ context.Context, ops []domain.SyncOperation) (*domain.UploadResult, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.uploaded = append(r.uploaded, ops...)
	return &domain.UploadResult{Success: true, Uploaded: len(ops)}, nil
}

func (r *fakeRemote) Download(_ context.Context, _ *time.Time) ([]domain.Bill, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.bills, nil
}

func syncBill(id string, updatedAt time.Time) domain.Bill {
	return domain.Bill{
		ID:        id,
		Amount:    10,
		Category:  "food",
		Date:      time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt: updatedAt,
	}
}

// --- Reconcile ---

func TestReconcile_MergeLaterUpdateWins(t *testing.T) {
	t1 := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 8, 1, 11, 0, 0, 0, time.UTC)

	local := []domain.Bill{syncBill("a", t1), syncBill("b", t1)}
	remote := []domain.Bill{syncBill("b", t2), syncBill("c", t1)}

	got := service.Reconcile(domain.StrategyMerge, local, remote)

	if len(got) != 3 {
		t.Fatalf("expected union of 3 bills, got %d", len(got))
	}
	byID := make(map[string]domain.Bill)
	for _, b := range got {
		byID[b.ID] = b
	}
	if !byID["b"].UpdatedAt.Equal(t2) {
		t.Errorf("expected the later remote version of b to win, got %s", byID["b"].UpdatedAt)
	}
}

func TestReconcile_MergeLocalWinsWhenNewer(t *testing.T) {
	t1 := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 8, 1, 11, 0, 0, 0, time.UTC)

	local := []domain.Bill{syncBill("a", t2)}
	remote := []domain.Bill{syncBill("a", t1)}

	got := service.Reconcile(domain.StrategyMerge, local, remote)
	if len(got) != 1 || !got[0].UpdatedAt.Equal(t2) {
		t.Errorf("expected the newer local version to survive")
	}
}

func TestReconcile_ClearAndDownload(t *testing.T) {
	t1 := time.Now().UTC()
	local := []domain.Bill{syncBill("a", t1), syncBill("b", t1)}
	remote := []domain.Bill{syncBill("c", t1)}

	got := service.Reconcile(domain.StrategyClearAndDownload, local, remote)
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("expected exactly the remote snapshot, got %v", got)
	}
}

func TestReconcile_PushAndOverride(t *testing.T) {
	t1 := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 8, 1, 11, 0, 0, 0, time.UTC)

	local := []domain.Bill{syncBill("a", t1)}
	remote := []domain.Bill{syncBill("a", t2), syncBill("b", t1)}

	got := service.Reconcile(domain.StrategyPushAndOverride, local, remote)

	byID := make(map[string]domain.Bill)
	for _, b := range got {
		byID[b.ID] = b
	}
	if !byID["a"].UpdatedAt.Equal(t1) {
		t.Error("push_and_override: local must win even when older")
	}
	if _, ok := byID["b"]; !ok {
		t.Error("push_and_override: remote-only records are kept")
	}
}

func TestReconcile_DeterministicOrder(t *testing.T) {
	t1 := time.Now().UTC()
	local := []domain.Bill{syncBill("b", t1), syncBill("a", t1)}

	got := service.Reconcile(domain.StrategyMerge, local, nil)
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("expected deterministic id order, got %s,%s", got[0].ID, got[1].ID)
	}
}

// --- Upload / Download ---

func TestUpload_BestEffortCountsApplied(t *testing.T) {
	store := newFakeStore()
	store.upsertErrOn = "bad"
	svc := service.NewSyncService(store, nil, observability.NewMetrics(), zap.NewNop())

	now := time.Now().UTC()
	ops := []domain.SyncOperation{
		{Action: domain.SyncCreate, Bill: syncBill("ok-1", now)},
		{Action: domain.SyncCreate, Bill: syncBill("bad", now)},
		{Action: domain.SyncCreate, Bill: syncBill("ok-2", now)},
	}

	result, err := svc.Upload(context.Background(), "user-1", ops)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !result.Success {
		t.Error("best-effort upload still reports success")
	}
	if result.Uploaded != 2 {
		t.Errorf("expected 2 applied, got %d", result.Uploaded)
	}
	if _, ok := store.bills["ok-2"]; !ok {
		t.Error("the op after the failing one must still apply")
	}
}

func TestUpload_DeleteWritesTombstone(t *testing.T) {
	store := newFakeStore()
	created := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	store.bills["a"] = syncBill("a", created)
	svc := service.NewSyncService(store, nil, observability.NewMetrics(), zap.NewNop())

	deletedAt := created.Add(time.Hour)
	op := domain.SyncOperation{Action: domain.SyncDelete, Bill: domain.Bill{ID: "a", UpdatedAt: deletedAt}}

	result, err := svc.Upload(context.Background(), "user-1", []domain.SyncOperation{op})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Uploaded != 1 {
		t.Fatalf("expected 1 applied, got %d", result.Uploaded)
	}

	b := store.bills["a"]
	if !b.IsDeleted {
		t.Error("expected a tombstone, not a removed row")
	}
	if !b.UpdatedAt.Equal(deletedAt) {
		t.Errorf("expected UpdatedAt bumped to deletion time, got %s", b.UpdatedAt)
	}
}

func TestUpload_CreateAssignsID(t *testing.T) {
	store := newFakeStore()
	svc := service.NewSyncService(store, nil, observability.NewMetrics(), zap.NewNop())

	op := domain.SyncOperation{Action: domain.SyncCreate, Bill: domain.Bill{Amount: 5, Category: "food"}}
	result, err := svc.Upload(context.Background(), "user-1", []domain.SyncOperation{op})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Uploaded != 1 {
		t.Fatalf("expected 1 applied, got %d", result.Uploaded)
	}
	for id := range store.bills {
		if id == "" {
			t.Error("expected a generated bill id")
		}
	}
}

func TestDownload_WatermarkFiltersAndKeepsTombstones(t *testing.T) {
	store := newFakeStore()
	t1 := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Hour)
	old := syncBill("old", t1)
	fresh := syncBill("fresh", t2)
	gone := syncBill("gone", t2)
	gone.IsDeleted = true
	store.bills["old"] = old
	store.bills["fresh"] = fresh
	store.bills["gone"] = gone

	svc := service.NewSyncService(store, nil, observability.NewMetrics(), zap.NewNop())

	watermark := t1.Add(time.Hour)
	bills, err := svc.Download(context.Background(), "user-1", &watermark)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(bills) != 2 {
		t.Fatalf("expected 2 changed records, got %d", len(bills))
	}
	foundTombstone := false
	for _, b := range bills {
		if b.ID == "old" {
			t.Error("records at or before the watermark must be filtered")
		}
		if b.ID == "gone" && b.IsDeleted {
			foundTombstone = true
		}
	}
	if !foundTombstone {
		t.Error("tombstones must be included in downloads")
	}
}

// --- SyncWithRemote ---

func TestSyncWithRemote_MergePersistsResult(t *testing.T) {
	t1 := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	store := newFakeStore()
	store.bills["a"] = syncBill("a", t1)
	store.bills["b"] = syncBill("b", t1)
	remote := &fakeRemote{bills: []domain.Bill{syncBill("b", t2), syncBill("c", t1)}}

	svc := service.NewSyncService(store, remote, observability.NewMetrics(), zap.NewNop())

	result, err := svc.SyncWithRemote(context.Background(), "user-1", domain.StrategyMerge, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 bills after merge, got %d", len(result))
	}
	if len(store.bills) != 3 {
		t.Errorf("expected merge result persisted locally, store has %d", len(store.bills))
	}
	if !store.bills["b"].UpdatedAt.Equal(t2) {
		t.Error("expected the remote update of b persisted")
	}
	if len(remote.uploaded) != 0 {
		t.Error("merge must not push to the remote store")
	}
}

func TestSyncWithRemote_PushAndOverrideUploadsSnapshot(t *testing.T) {
	t1 := time.Date(2025, 8, 1, 10, 0, 0, 0, time.UTC)

	store := newFakeStore()
	live := syncBill("a", t1)
	dead := syncBill("d", t1)
	dead.IsDeleted = true
	store.bills["a"] = live
	store.bills["d"] = dead
	remote := &fakeRemote{bills: []domain.Bill{syncBill("r", t1)}}

	svc := service.NewSyncService(store, remote, observability.NewMetrics(), zap.NewNop())

	_, err := svc.SyncWithRemote(context.Background(), "user-1", domain.StrategyPushAndOverride, nil)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(remote.uploaded) != 2 {
		t.Fatalf("expected the full local snapshot uploaded, got %d ops", len(remote.uploaded))
	}
	actions := make(map[string]domain.SyncAction)
	for _, op := range remote.uploaded {
		actions[op.Bill.ID] = op.Action
	}
	if actions["a"] != domain.SyncUpdate {
		t.Errorf("expected update op for live bill, got %s", actions["a"])
	}
	if actions["d"] != domain.SyncDelete {
		t.Errorf("expected delete op for tombstone, got %s", actions["d"])
	}
}

func TestSyncWithRemote_InvalidStrategy(t *testing.T) {
	svc := service.NewSyncService(newFakeStore(), &fakeRemote{}, observability.NewMetrics(), zap.NewNop())
	if _, err := svc.SyncWithRemote(context.Background(), "user-1", "overwrite", nil); err == nil {
		t.Fatal("expected validation error for unknown strategy")
	}
}

func TestSyncWithRemote_RemoteNotConfigured(t *testing.T) {
	svc := service.NewSyncService(newFakeStore(), nil, observability.NewMetrics(), zap.NewNop())
	if _, err := svc.SyncWithRemote(context.Background(), "user-1", domain.StrategyMerge, nil); err == nil {
		t.Fatal("expected error when remote is not configured")
	}
}
