package handler

import (
	"net/http"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/infra/observability"
	"github.com/mosaicfin/bill-insights-go/internal/port"
	"github.com/mosaicfin/bill-insights-go/internal/service"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Reports — /v1/reports
// ============================================================

// getReportHandler serves the cached report for one period selector.
// The coordinator absorbs concurrent requests and never returns an
// error: builder failures degrade to an empty report.
func getReportHandler(coords *service.CoordinatorSet, store port.BillStore, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports")
		defer span.End()

		pt, vs, selector, err := parsePeriodParams(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.String("report.period_type", string(pt)),
			attribute.String("report.selector", selector),
		)

		force := r.URL.Query().Get("force") == "true"
		userID := UserIDFromContext(ctx)

		start := time.Now()
		report := coords.For(userID).Get(ctx, pt, vs, selector, store.DataVersion(), force)
		metrics.RecordRequestDuration("get_report", time.Since(start))

		writeJSON(w, http.StatusOK, report)
	}
}

func getReportSummaryHandler(reports *service.ReportService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reports/summary")
		defer span.End()

		pt, vs, selector, err := parsePeriodParams(r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		summary, err := reports.BuildSummary(ctx, UserIDFromContext(ctx), pt, vs, selector)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

// ============================================================
// Report metrics — GET /v1/metrics/reports
// ============================================================

func reportMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetReportSnapshot())
	}
}
