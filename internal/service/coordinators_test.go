package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/infra/observability"
	"github.com/mosaicfin/bill-insights-go/internal/service"

	"go.uber.org/zap"
)

func newCoordinatorSet(b *fakeBuilder) *service.CoordinatorSet {
	return service.NewCoordinatorSet(b, observability.NewMetrics(), zap.NewNop())
}

func TestCoordinatorSet_ForReusesPerUser(t *testing.T) {
	s := newCoordinatorSet(&fakeBuilder{})

	a1 := s.For("user-a")
	a2 := s.For("user-a")
	b1 := s.For("user-b")

	if a1 != a2 {
		t.Error("expected the same coordinator for repeated lookups of one user")
	}
	if a1 == b1 {
		t.Error("expected distinct coordinators per user")
	}
}

func TestCoordinatorSet_DropEndsSession(t *testing.T) {
	b := &fakeBuilder{}
	s := newCoordinatorSet(b)
	key := domain.ReportKey(domain.PeriodMonth, domain.ScopePersonal, "2025-08")

	c1 := s.For("user-a")
	c1.Get(context.Background(), domain.PeriodMonth, domain.ScopePersonal, "2025-08", 1, false)
	if b.count(key) != 1 {
		t.Fatalf("expected one build before the drop, got %d", b.count(key))
	}

	s.Drop("user-a")

	// The next lookup starts a fresh session with an empty cache.
	c2 := s.For("user-a")
	if c1 == c2 {
		t.Fatal("expected a new coordinator after the session ended")
	}
	c2.Get(context.Background(), domain.PeriodMonth, domain.ScopePersonal, "2025-08", 1, false)
	if b.count(key) != 2 {
		t.Errorf("expected a rebuild in the new session, got %d builds", b.count(key))
	}
}

func TestCoordinatorSet_SetLoadTimeoutAppliesToNewCoordinators(t *testing.T) {
	b := &fakeBuilder{block: true}
	s := newCoordinatorSet(b)
	s.SetLoadTimeout(50 * time.Millisecond)

	start := time.Now()
	r := s.For("user-a").Get(context.Background(), domain.PeriodMonth, domain.ScopePersonal, "2025-08", 1, false)
	if r == nil || !r.Empty {
		t.Fatal("expected the wedged build to degrade to an empty report")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected the shortened safety window to apply, took %s", elapsed)
	}
}
