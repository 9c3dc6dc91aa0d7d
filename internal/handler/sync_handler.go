package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Sync — /v1/sync
// ============================================================

func syncUploadHandler(syncSvc *service.SyncService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sync/upload")
		defer span.End()

		var req struct {
			Operations []domain.SyncOperation `json:"operations"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		span.SetAttributes(attribute.Int("sync.operations", len(req.Operations)))

		result, err := syncSvc.Upload(ctx, UserIDFromContext(ctx), req.Operations)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func syncDownloadHandler(syncSvc *service.SyncService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/sync/download")
		defer span.End()

		lastSync, err := parseLastSync(r.URL.Query().Get("last_sync"))
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		bills, err := syncSvc.Download(ctx, UserIDFromContext(ctx), lastSync)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if bills == nil {
			bills = []domain.Bill{}
		}

		writeJSON(w, http.StatusOK, domain.DownloadResult{Success: true, Bills: bills})
	}
}

// syncReconcileHandler runs a device-side reconciliation pass against the
// remote store using the requested strategy.
func syncReconcileHandler(syncSvc *service.SyncService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/sync/reconcile")
		defer span.End()

		var req struct {
			Strategy domain.SyncStrategy `json:"strategy"`
			LastSync string              `json:"last_sync,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !req.Strategy.Valid() {
			writeError(w, http.StatusBadRequest, "strategy must be merge, clear_and_download or push_and_override")
			return
		}
		span.SetAttributes(attribute.String("sync.strategy", string(req.Strategy)))

		lastSync, err := parseLastSync(req.LastSync)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		bills, err := syncSvc.SyncWithRemote(ctx, UserIDFromContext(ctx), req.Strategy, lastSync)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if bills == nil {
			bills = []domain.Bill{}
		}

		writeJSON(w, http.StatusOK, domain.DownloadResult{Success: true, Bills: bills})
	}
}

func parseLastSync(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, &domain.ErrValidation{Field: "last_sync", Message: "expected RFC3339 timestamp"}
	}
	return &t, nil
}
