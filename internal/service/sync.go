package service

import (
	"context"
	"sort"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/infra/observability"
	"github.com/mosaicfin/bill-insights-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var syncTracer = otel.Tracer("service/sync")

// SyncService reconciles bill sets across devices. The server side
// (Upload/Download) applies idempotent upserts with tombstone deletes;
// Reconcile is the pure merge used by either side.
type SyncService struct {
	store   port.BillStore
	remote  port.RemoteSyncStore
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewSyncService creates the reconciler. remote may be nil on a server
// that only terminates sync calls.
func NewSyncService(store port.BillStore, remote port.RemoteSyncStore, metrics *observability.Metrics, logger *zap.Logger) *SyncService {
	return &SyncService{store: store, remote: remote, metrics: metrics, logger: logger}
}

// Upload applies a batch of sync operations for one user. Each op is an
// idempotent upsert keyed by bill id; delete flips the tombstone and
// bumps UpdatedAt. A failing op is skipped and not counted; the batch
// is best-effort, never transactional.
func (s *SyncService) Upload(ctx context.Context, userID string, ops []domain.SyncOperation) (*domain.UploadResult, error) {
	ctx, span := syncTracer.Start(ctx, "SyncService.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.Int("ops", len(ops)))

	uploaded := 0
	for _, op := range ops {
		if err := s.applyOp(ctx, userID, op); err != nil {
			s.logger.Warn("sync: operation skipped",
				zap.String("user_id", userID),
				zap.String("action", string(op.Action)),
				zap.String("bill_id", op.Bill.ID),
				zap.Error(err),
			)
			s.metrics.IncrSyncOp(string(op.Action), "failed")
			continue
		}
		s.metrics.IncrSyncOp(string(op.Action), "applied")
		uploaded++
	}

	s.logger.Info("sync: upload applied",
		zap.String("user_id", userID),
		zap.Int("received", len(ops)),
		zap.Int("uploaded", uploaded),
	)
	return &domain.UploadResult{Success: true, Uploaded: uploaded}, nil
}

func (s *SyncService) applyOp(ctx context.Context, userID string, op domain.SyncOperation) error {
	switch op.Action {
	case domain.SyncCreate, domain.SyncUpdate:
		bill := op.Bill
		if bill.ID == "" {
			if op.Action == domain.SyncUpdate {
				return &domain.ErrValidation{Field: "bill.id", Message: "required for update"}
			}
			bill.ID = uuid.NewString()
		}
		bill.UserID = userID
		if bill.UpdatedAt.IsZero() {
			bill.UpdatedAt = time.Now().UTC()
		}
		if bill.CreatedAt.IsZero() {
			bill.CreatedAt = bill.UpdatedAt
		}
		return s.store.UpsertBill(ctx, &bill)

	case domain.SyncDelete:
		if op.Bill.ID == "" {
			return &domain.ErrValidation{Field: "bill.id", Message: "required for delete"}
		}
		at := op.Bill.UpdatedAt
		if at.IsZero() {
			at = time.Now().UTC()
		}
		return s.store.TombstoneBill(ctx, userID, op.Bill.ID, at)
	}
	return &domain.ErrValidation{Field: "action", Message: "unknown sync action"}
}

// Download returns every record of the user with UpdatedAt after the
// watermark, tombstones included. A nil watermark means full sync.
func (s *SyncService) Download(ctx context.Context, userID string, lastSync *time.Time) ([]domain.Bill, error) {
	ctx, span := syncTracer.Start(ctx, "SyncService.Download")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	bills, err := s.store.ListBillsSince(ctx, userID, lastSync)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("sync: download",
		zap.String("user_id", userID),
		zap.Int("bills", len(bills)),
	)
	return bills, nil
}

// Reconcile resolves local/remote divergence under the given strategy.
// It is pure: callers persist the result themselves.
//
//	Merge:            union by id, later UpdatedAt wins on collision.
//	ClearAndDownload: the remote snapshot replaces local entirely.
//	PushAndOverride:  local wins on collision; remote-only records are
//	                  kept so the caller's follow-up upload overwrites
//	                  the remote store with the local snapshot.
//
// Whole-record last-write-wins is deliberate: bills are small,
// atomically-edited records, not collaboratively-edited documents.
func Reconcile(strategy domain.SyncStrategy, local, remote []domain.Bill) []domain.Bill {
	switch strategy {
	case domain.StrategyClearAndDownload:
		out := append([]domain.Bill(nil), remote...)
		sortBills(out)
		return out

	case domain.StrategyPushAndOverride:
		merged := make(map[string]domain.Bill, len(local)+len(remote))
		for _, b := range remote {
			merged[b.ID] = b
		}
		for _, b := range local {
			merged[b.ID] = b
		}
		return collect(merged)

	case domain.StrategyMerge:
		fallthrough
	default:
		merged := make(map[string]domain.Bill, len(local)+len(remote))
		for _, b := range local {
			merged[b.ID] = b
		}
		for _, b := range remote {
			if cur, ok := merged[b.ID]; !ok || b.UpdatedAt.After(cur.UpdatedAt) {
				merged[b.ID] = b
			}
		}
		return collect(merged)
	}
}

// SyncWithRemote runs a full device-side sync pass: download the remote
// set, reconcile against the local set with the chosen strategy, persist
// the result locally, and for PushAndOverride overwrite the remote store
// with the local snapshot.
func (s *SyncService) SyncWithRemote(ctx context.Context, userID string, strategy domain.SyncStrategy, lastSync *time.Time) ([]domain.Bill, error) {
	ctx, span := syncTracer.Start(ctx, "SyncService.SyncWithRemote")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("strategy", string(strategy)))

	if !strategy.Valid() {
		return nil, &domain.ErrValidation{Field: "strategy", Message: "unknown sync strategy"}
	}
	if s.remote == nil {
		return nil, &domain.ErrValidation{Field: "remote", Message: "remote sync not configured"}
	}

	local, err := s.store.ListAllBills(ctx, userID)
	if err != nil {
		return nil, err
	}

	// PushAndOverride ignores the watermark: the remote snapshot is
	// about to be replaced wholesale.
	watermark := lastSync
	if strategy == domain.StrategyPushAndOverride {
		watermark = nil
	}
	remote, err := s.remote.Download(ctx, watermark)
	if err != nil {
		return nil, err
	}

	result := Reconcile(strategy, local, remote)

	if err := s.store.ReplaceBills(ctx, userID, result); err != nil {
		return nil, err
	}

	if strategy == domain.StrategyPushAndOverride {
		ops := make([]domain.SyncOperation, 0, len(local))
		for _, b := range local {
			action := domain.SyncUpdate
			if b.IsDeleted {
				action = domain.SyncDelete
			}
			ops = append(ops, domain.SyncOperation{Action: action, Bill: b})
		}
		if _, err := s.remote.Upload(ctx, ops); err != nil {
			return nil, err
		}
	}

	s.logger.Info("sync: reconciled with remote",
		zap.String("user_id", userID),
		zap.String("strategy", string(strategy)),
		zap.Int("local", len(local)),
		zap.Int("remote", len(remote)),
		zap.Int("result", len(result)),
	)
	return result, nil
}

func collect(m map[string]domain.Bill) []domain.Bill {
	out := make([]domain.Bill, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	sortBills(out)
	return out
}

// sortBills orders by date then id for deterministic output.
func sortBills(bills []domain.Bill) {
	sort.Slice(bills, func(i, j int) bool {
		if !bills[i].Date.Equal(bills[j].Date) {
			return bills[i].Date.Before(bills[j].Date)
		}
		return bills[i].ID < bills[j].ID
	})
}
