package handler

import (
	"net/http"

	"github.com/mosaicfin/bill-insights-go/internal/service"

	"go.uber.org/zap"
)

// ============================================================
// Insights — GET /v1/insights
// ============================================================

func getInsightsHandler(insightSvc *service.InsightService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/insights")
		defer span.End()

		if insightSvc == nil {
			writeError(w, http.StatusServiceUnavailable, "insight agent not configured")
			return
		}

		pt, vs, selector, err := parsePeriodParams(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		insights, err := insightSvc.GetInsights(ctx, UserIDFromContext(ctx), pt, vs, selector)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{"insights": insights})
	}
}
