package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/infra/observability"
	"github.com/mosaicfin/bill-insights-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var insightTracer = otel.Tracer("service/insight")

// InsightService feeds a bill summary to the external insight agent and
// returns its advice verbatim. Results are cached per (user, key) since
// agent calls are slow and expensive.
type InsightService struct {
	reports *ReportService
	agent   port.InsightGenerator
	cache   port.Cache[[]domain.Insight]
	metrics *observability.Metrics
	logger  *zap.Logger

	// lastVersion is the data epoch the cached insights belong to.
	lastVersion atomic.Int64
}

// NewInsightService creates the insight service with all dependencies injected.
func NewInsightService(reports *ReportService, agent port.InsightGenerator, cache port.Cache[[]domain.Insight], metrics *observability.Metrics, logger *zap.Logger) *InsightService {
	return &InsightService{
		reports: reports,
		agent:   agent,
		cache:   cache,
		metrics: metrics,
		logger:  logger,
	}
}

// GetInsights builds the summary for the requested period and asks the
// agent for insights.
func (s *InsightService) GetInsights(ctx context.Context, userID string, pt domain.PeriodType, vs domain.ViewScope, selectorID string) ([]domain.Insight, error) {
	ctx, span := insightTracer.Start(ctx, "InsightService.GetInsights")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	start := time.Now()
	defer func() {
		s.metrics.RecordRequestDuration("insights", time.Since(start))
	}()

	// Cached insights are only valid for the data epoch they were built
	// from. A bill or budget write bumps the store version; purge so the
	// next lookups rebuild against fresh data.
	if v := s.reports.DataVersion(); s.lastVersion.Swap(v) != v {
		s.cache.Purge()
	}

	cacheKey := fmt.Sprintf("insights:%s:%s", userID, domain.ReportKey(pt, vs, selectorID))
	if cached, ok := s.cache.Get(cacheKey); ok {
		s.metrics.IncrCacheHit("insights")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("insights")

	summary, err := s.reports.BuildSummary(ctx, userID, pt, vs, selectorID)
	if err != nil {
		return nil, fmt.Errorf("build summary: %w", err)
	}

	resp, err := s.agent.Generate(ctx, &domain.InsightRequest{
		UserID:  userID,
		Summary: *summary,
	})
	if err != nil {
		s.logger.Error("insight agent call failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		s.metrics.IncrExternalError("insight_agent")
		return nil, fmt.Errorf("insight agent: %w", err)
	}

	s.metrics.RecordTokens(resp.TokensUsed.PromptTokens, resp.TokensUsed.CompletionTokens)
	s.cache.Set(cacheKey, resp.Insights)
	return resp.Insights, nil
}
