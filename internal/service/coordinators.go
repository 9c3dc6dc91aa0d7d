package service

import (
	"sync"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/infra/observability"
	"github.com/mosaicfin/bill-insights-go/internal/port"

	"go.uber.org/zap"
)

// CoordinatorSet hands out one report cache coordinator per user
// session. Coordinators own their keyed store; there is no process-wide
// report cache.
type CoordinatorSet struct {
	builder port.ReportBuilder
	metrics *observability.Metrics
	logger  *zap.Logger

	mu          sync.Mutex
	byUser      map[string]*ReportCacheCoordinator
	loadTimeout time.Duration
}

// NewCoordinatorSet creates the per-user coordinator registry.
func NewCoordinatorSet(builder port.ReportBuilder, metrics *observability.Metrics, logger *zap.Logger) *CoordinatorSet {
	return &CoordinatorSet{
		builder:     builder,
		metrics:     metrics,
		logger:      logger,
		byUser:      make(map[string]*ReportCacheCoordinator),
		loadTimeout: DefaultLoadTimeout,
	}
}

// SetLoadTimeout overrides the liveness guard applied to coordinators
// created after the call.
func (s *CoordinatorSet) SetLoadTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.loadTimeout = d
	}
}

// For returns the user's coordinator, creating it on first use.
func (s *CoordinatorSet) For(userID string) *ReportCacheCoordinator {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byUser[userID]
	if !ok {
		c = NewReportCacheCoordinator(userID, s.builder, s.metrics, s.logger)
		c.SetLoadTimeout(s.loadTimeout)
		s.byUser[userID] = c
	}
	return c
}

// Drop discards a user's coordinator, ending the session.
func (s *CoordinatorSet) Drop(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUser, userID)
}
