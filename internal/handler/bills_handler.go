package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/port"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Bills — /v1/bills
// ============================================================

func listBillsHandler(store port.BillStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bills")
		defer span.End()

		userID := UserIDFromContext(ctx)

		scope := domain.ViewScope(r.URL.Query().Get("scope"))
		if scope == "" {
			scope = domain.ScopePersonal
		}
		if !scope.Valid() {
			writeError(w, http.StatusBadRequest, "scope must be personal or family")
			return
		}

		from, err := parseDateParam(r, "from")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		to, err := parseDateParam(r, "to")
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if from == nil {
			from = &time.Time{}
		}
		if to == nil {
			t := time.Date(9999, 12, 31, 0, 0, 0, 0, time.Local)
			to = &t
		}

		bills, err := store.ListBills(ctx, userID, scope, *from, *to)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if bills == nil {
			bills = []domain.Bill{}
		}
		span.SetAttributes(attribute.Int("bills.count", len(bills)))

		writeJSON(w, http.StatusOK, map[string]any{"bills": bills})
	}
}

func createBillHandler(store port.BillStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/bills")
		defer span.End()

		var bill domain.Bill
		if err := json.NewDecoder(r.Body).Decode(&bill); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if bill.Category == "" {
			writeError(w, http.StatusBadRequest, "category is required")
			return
		}
		if bill.Date.IsZero() {
			writeError(w, http.StatusBadRequest, "date is required")
			return
		}

		now := time.Now().UTC()
		if bill.ID == "" {
			bill.ID = uuid.NewString()
		}
		bill.UserID = UserIDFromContext(ctx)
		bill.IsDeleted = false
		bill.CreatedAt = now
		bill.UpdatedAt = now

		if err := store.UpsertBill(ctx, &bill); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, bill)
	}
}

func getBillHandler(store port.BillStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/bills/{billID}")
		defer span.End()

		billID := chi.URLParam(r, "billID")
		bill, err := store.GetBill(ctx, UserIDFromContext(ctx), billID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if bill == nil || bill.IsDeleted {
			handleServiceError(w, &domain.ErrNotFound{Resource: "bill", ID: billID}, logger)
			return
		}

		writeJSON(w, http.StatusOK, bill)
	}
}

func updateBillHandler(store port.BillStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/bills/{billID}")
		defer span.End()

		billID := chi.URLParam(r, "billID")
		userID := UserIDFromContext(ctx)

		existing, err := store.GetBill(ctx, userID, billID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if existing == nil || existing.IsDeleted {
			handleServiceError(w, &domain.ErrNotFound{Resource: "bill", ID: billID}, logger)
			return
		}

		var bill domain.Bill
		if err := json.NewDecoder(r.Body).Decode(&bill); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if bill.Category == "" {
			writeError(w, http.StatusBadRequest, "category is required")
			return
		}

		bill.ID = billID
		bill.UserID = userID
		bill.IsDeleted = false
		bill.CreatedAt = existing.CreatedAt
		bill.UpdatedAt = time.Now().UTC()
		if bill.Date.IsZero() {
			bill.Date = existing.Date
		}

		if err := store.UpsertBill(ctx, &bill); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, bill)
	}
}

// deleteBillHandler tombstones the bill rather than removing the row, so
// other devices pick up the deletion on their next sync.
func deleteBillHandler(store port.BillStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/bills/{billID}")
		defer span.End()

		billID := chi.URLParam(r, "billID")
		if err := store.TombstoneBill(ctx, UserIDFromContext(ctx), billID, time.Now().UTC()); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

// ============================================================
// Budgets — /v1/budgets/{period}
// ============================================================

func getBudgetHandler(store port.BillStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/budgets/{period}")
		defer span.End()

		period := domain.PeriodType(chi.URLParam(r, "period"))
		if !period.Valid() {
			writeError(w, http.StatusBadRequest, "period must be week, month or year")
			return
		}

		budget, err := store.GetBudget(ctx, UserIDFromContext(ctx), period)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if budget == nil {
			// No budget configured for this period.
			budget = &domain.PeriodBudget{Period: period, FilterMode: domain.FilterAll}
		}

		writeJSON(w, http.StatusOK, budget)
	}
}

func setBudgetHandler(store port.BillStore, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "PUT /v1/budgets/{period}")
		defer span.End()

		period := domain.PeriodType(chi.URLParam(r, "period"))
		if !period.Valid() {
			writeError(w, http.StatusBadRequest, "period must be week, month or year")
			return
		}

		var budget domain.PeriodBudget
		if err := json.NewDecoder(r.Body).Decode(&budget); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if budget.Amount != nil && *budget.Amount < 0 {
			writeError(w, http.StatusBadRequest, "amount must not be negative")
			return
		}
		budget.Period = period
		if budget.FilterMode == "" {
			budget.FilterMode = domain.FilterAll
		}

		if err := store.SetBudget(ctx, UserIDFromContext(ctx), &budget); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, budget)
	}
}
