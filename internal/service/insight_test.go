package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/infra/cache"
	"github.com/mosaicfin/bill-insights-go/internal/infra/observability"
	"github.com/mosaicfin/bill-insights-go/internal/service"

	"go.uber.org/zap"
)

type fakeAgent struct {
	response *domain.InsightResponse
	err      error
	calls    int
}

func (f *fakeAgent) Generate(_ context.Context, _ *domain.InsightRequest) (*domain.InsightResponse, error) {
	f.calls++
	return f.response, f.err
}

func newInsightService(store *fakeStore, agent *fakeAgent) *service.InsightService {
	return service.NewInsightService(
		service.NewReportService(store, zap.NewNop()),
		agent,
		cache.New[[]domain.Insight](5*time.Minute),
		observability.NewMetrics(),
		zap.NewNop(),
	)
}

func TestGetInsights_Success(t *testing.T) {
	store := newFakeStore()
	store.bills["a"] = syncBill("a", time.Now().UTC())
	agent := &fakeAgent{response: &domain.InsightResponse{
		Insights: []domain.Insight{
			{ID: "i-1", Title: "Food spend climbing", Severity: "warning"},
		},
		TokensUsed: domain.TokenUsage{PromptTokens: 300, CompletionTokens: 80, TotalTokens: 380},
	}}
	svc := newInsightService(store, agent)

	insights, err := svc.GetInsights(context.Background(), "user-1", domain.PeriodMonth, domain.ScopePersonal, "2025-08")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(insights) != 1 || insights[0].ID != "i-1" {
		t.Errorf("expected the agent's insight, got %v", insights)
	}
}

func TestGetInsights_CachesSecondCall(t *testing.T) {
	store := newFakeStore()
	agent := &fakeAgent{response: &domain.InsightResponse{Insights: []domain.Insight{{ID: "i-1"}}}}
	svc := newInsightService(store, agent)

	ctx := context.Background()
	if _, err := svc.GetInsights(ctx, "user-1", domain.PeriodMonth, domain.ScopePersonal, "2025-08"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := svc.GetInsights(ctx, "user-1", domain.PeriodMonth, domain.ScopePersonal, "2025-08"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if agent.calls != 1 {
		t.Errorf("expected 1 agent call, got %d", agent.calls)
	}

	// A different selector is a different cache key.
	if _, err := svc.GetInsights(ctx, "user-1", domain.PeriodMonth, domain.ScopePersonal, "2025-07"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if agent.calls != 2 {
		t.Errorf("expected a fresh agent call for a new period, got %d", agent.calls)
	}
}

func TestGetInsights_PurgesOnDataChange(t *testing.T) {
	store := newFakeStore()
	agent := &fakeAgent{response: &domain.InsightResponse{Insights: []domain.Insight{{ID: "i-1"}}}}
	svc := newInsightService(store, agent)

	ctx := context.Background()
	if _, err := svc.GetInsights(ctx, "user-1", domain.PeriodMonth, domain.ScopePersonal, "2025-08"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if _, err := svc.GetInsights(ctx, "user-1", domain.PeriodMonth, domain.ScopePersonal, "2025-08"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if agent.calls != 1 {
		t.Fatalf("expected the second call to hit the cache, got %d agent calls", agent.calls)
	}

	bill := syncBill("b-1", time.Now().UTC())
	if err := store.UpsertBill(ctx, &bill); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	// The write bumped the data version, so cached insights are stale.
	if _, err := svc.GetInsights(ctx, "user-1", domain.PeriodMonth, domain.ScopePersonal, "2025-08"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if agent.calls != 2 {
		t.Errorf("expected a rebuild after the bill write, got %d agent calls", agent.calls)
	}
}

func TestGetInsights_AgentError(t *testing.T) {
	store := newFakeStore()
	agent := &fakeAgent{err: errors.New("agent down")}
	svc := newInsightService(store, agent)

	_, err := svc.GetInsights(context.Background(), "user-1", domain.PeriodMonth, domain.ScopePersonal, "2025-08")
	if err == nil {
		t.Fatal("expected error when the agent fails")
	}
}
