package handler

import (
	"encoding/json"
	"net/http"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Authentication — POST /v1/auth/login, POST /v1/auth/logout
// ============================================================

func authLoginHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/auth/login")
		defer span.End()

		var req domain.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "email and password are required")
			return
		}

		resp, err := authSvc.Login(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// authLogoutHandler ends the report-viewing session: the user's cache
// coordinator is dropped so the next login starts clean.
func authLogoutHandler(coords *service.CoordinatorSet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/auth/logout")
		defer span.End()

		coords.Drop(UserIDFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}
}
