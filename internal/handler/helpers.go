package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// parseDateParam reads an optional YYYY-MM-DD query parameter.
func parseDateParam(r *http.Request, name string) (*time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return nil, &domain.ErrValidation{Field: name, Message: "expected YYYY-MM-DD"}
	}
	return &t, nil
}

// parsePeriodParams reads the period_type / scope / selector triplet shared
// by the report and insight endpoints. Missing values default to the
// current month in the personal scope.
func parsePeriodParams(r *http.Request) (domain.PeriodType, domain.ViewScope, string, error) {
	pt := domain.PeriodType(r.URL.Query().Get("period_type"))
	if pt == "" {
		pt = domain.PeriodMonth
	}
	if !pt.Valid() {
		return "", "", "", &domain.ErrValidation{Field: "period_type", Message: "must be week, month or year"}
	}

	vs := domain.ViewScope(r.URL.Query().Get("scope"))
	if vs == "" {
		vs = domain.ScopePersonal
	}
	if !vs.Valid() {
		return "", "", "", &domain.ErrValidation{Field: "scope", Message: "must be personal or family"}
	}

	selector := r.URL.Query().Get("selector")
	if selector == "" {
		selector = domain.SelectorFor(pt, time.Now())
	}
	if _, _, err := domain.PeriodRange(pt, selector, time.Local); err != nil {
		return "", "", "", &domain.ErrValidation{Field: "selector", Message: err.Error()}
	}

	return pt, vs, selector, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	var forbidden *domain.ErrForbidden
	var conflict *domain.ErrConflict
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &external):
		logger.Error("upstream service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
