package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/infra/observability"
	"github.com/mosaicfin/bill-insights-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var cacheTracer = otel.Tracer("service/reportcache")

// LoadState is the coordinator's fetch state. Exactly one fetch runs at
// a time per coordinator instance; BackgroundLoading marks preload
// passes that do not belong to a foreground request.
type LoadState int32

const (
	StateIdle LoadState = iota
	StateLoading
	StateBackgroundLoading
)

// DefaultLoadTimeout is the liveness safety window: any loading state
// that has not cleared within it is force-reset to Idle.
const DefaultLoadTimeout = 10 * time.Second

type cacheEntry struct {
	report *domain.Report
	seq    int64
}

// inflight tracks the single dispatched fetch. done is closed exactly
// once, either on completion or by the liveness guard.
type inflight struct {
	key  string
	seq  int64
	done chan struct{}
	once sync.Once
}

func (fl *inflight) finish() {
	fl.once.Do(func() { close(fl.done) })
}

// viewState is the committed UI-facing view. Period type, selector and
// report change together under the coordinator lock, so a period switch
// to an already-cached key never shows a mix of old and new state.
type viewState struct {
	periodType domain.PeriodType
	scope      domain.ViewScope
	selectorID string
	report     *domain.Report
}

// ReportCacheCoordinator caches built reports per (period type, view
// scope, period selector) for one user's report-viewing session.
//
// Guarantees:
//   - a cached key is served without re-invoking the builder;
//   - at most one builder call is in flight per coordinator, concurrent
//     Gets wait on it instead of dispatching again;
//   - last-initiated-wins: an older fetch that resolves late never
//     overwrites a newer result (sequence numbers, defense in depth on
//     top of the single-flight dispatch);
//   - a data-version advance clears the cache and re-arms preloading;
//   - loading states self-clear after the safety window.
type ReportCacheCoordinator struct {
	userID  string
	builder port.ReportBuilder
	logger  *zap.Logger
	metrics *observability.Metrics

	loadTimeout time.Duration
	state       atomic.Int32
	seq         atomic.Int64

	mu          sync.Mutex
	entries     map[string]cacheEntry
	inflight    *inflight
	lastVersion int64
	preloaded   bool // one preload pass per data epoch
	view        viewState
}

// NewReportCacheCoordinator creates a coordinator for one user session.
func NewReportCacheCoordinator(userID string, builder port.ReportBuilder, metrics *observability.Metrics, logger *zap.Logger) *ReportCacheCoordinator {
	return &ReportCacheCoordinator{
		userID:      userID,
		builder:     builder,
		logger:      logger,
		metrics:     metrics,
		loadTimeout: DefaultLoadTimeout,
		entries:     make(map[string]cacheEntry),
		lastVersion: -1,
	}
}

// SetLoadTimeout overrides the liveness window. Intended for tests and
// callers with unusual builder latencies.
func (c *ReportCacheCoordinator) SetLoadTimeout(d time.Duration) {
	c.loadTimeout = d
}

// State returns the coordinator's current load state.
func (c *ReportCacheCoordinator) State() LoadState {
	return LoadState(c.state.Load())
}

// Get returns the report for the requested key, serving the cached copy
// when present and forceRefresh is false. It never returns an error: a
// failed build degrades to the minimal empty report.
func (c *ReportCacheCoordinator) Get(ctx context.Context, pt domain.PeriodType, vs domain.ViewScope, selectorID string, dataVersion int64, forceRefresh bool) *domain.Report {
	ctx, span := cacheTracer.Start(ctx, "ReportCacheCoordinator.Get")
	defer span.End()
	span.SetAttributes(
		attribute.String("period_type", string(pt)),
		attribute.String("view_scope", string(vs)),
		attribute.String("selector", selectorID),
		attribute.Bool("force_refresh", forceRefresh),
	)

	key := domain.ReportKey(pt, vs, selectorID)

	for {
		c.mu.Lock()
		c.invalidateLocked(dataVersion)

		if !forceRefresh {
			if e, ok := c.entries[key]; ok {
				c.commitLocked(pt, vs, selectorID, e.report)
				c.mu.Unlock()
				c.metrics.IncrCacheHit("report")
				return e.report
			}
		}

		if fl := c.inflight; fl != nil {
			// Another fetch is running; rely on its resolution
			// instead of dispatching a duplicate.
			c.mu.Unlock()
			select {
			case <-fl.done:
				if fl.key == key {
					// The in-flight fetch was initiated after this
					// call arrived, so it is fresh enough even for a
					// forced refresh.
					forceRefresh = false
				}
				continue
			case <-ctx.Done():
				return domain.EmptyReport(pt, vs, selectorID, dataVersion)
			}
		}

		fl := &inflight{key: key, seq: c.seq.Add(1), done: make(chan struct{})}
		c.inflight = fl
		c.state.Store(int32(StateLoading))
		c.mu.Unlock()

		c.metrics.IncrCacheMiss("report")
		return c.fetch(ctx, fl, pt, vs, selectorID, dataVersion, false)
	}
}

// Invalidate notifies the coordinator that the underlying data changed.
// Repeated notifications with the same version are no-ops.
func (c *ReportCacheCoordinator) Invalidate(dataVersion int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(dataVersion)
}

// Snapshot returns the committed view: period type, selector and report
// as last applied together. The report is nil before the first commit.
func (c *ReportCacheCoordinator) Snapshot() (domain.PeriodType, string, *domain.Report) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view.periodType, c.view.selectorID, c.view.report
}

// fetch runs the builder for one key and applies the result unless a
// newer request has already completed for that key.
func (c *ReportCacheCoordinator) fetch(ctx context.Context, fl *inflight, pt domain.PeriodType, vs domain.ViewScope, selectorID string, dataVersion int64, background bool) *domain.Report {
	start := time.Now()

	// Liveness guard: even a wedged builder must not leave the
	// coordinator stuck in a loading state past the safety window.
	guard := time.AfterFunc(c.loadTimeout, func() { c.forceIdle(fl) })
	defer guard.Stop()

	buildCtx, cancel := context.WithTimeout(ctx, c.loadTimeout)
	defer cancel()

	report, err := c.builder.Build(buildCtx, c.userID, pt, vs, selectorID, dataVersion)

	c.mu.Lock()
	if c.inflight == fl {
		c.inflight = nil
		c.state.Store(int32(StateIdle))
	}

	if err != nil {
		c.mu.Unlock()
		fl.finish()
		c.logger.Error("report build failed",
			zap.String("user_id", c.userID),
			zap.String("key", fl.key),
			zap.Bool("background", background),
			zap.Error(err),
		)
		c.metrics.IncrExternalError("report_builder")
		c.metrics.RecordRequestDuration("report_build_failed", time.Since(start))
		return domain.EmptyReport(pt, vs, selectorID, dataVersion)
	}

	if dataVersion < c.lastVersion {
		// Built against a superseded data epoch: serve the result to
		// this caller but never let it populate the fresh cache.
		c.mu.Unlock()
		fl.finish()
		c.metrics.IncrStaleDrop()
		c.metrics.RecordRequestDuration("report_build", time.Since(start))
		return report
	}

	versionAtApply := c.lastVersion
	if e, ok := c.entries[fl.key]; ok && e.seq > fl.seq {
		// A newer request already completed; this response is stale
		// and must not overwrite it.
		c.metrics.IncrStaleDrop()
		report = e.report
	} else {
		c.entries[fl.key] = cacheEntry{report: report, seq: fl.seq}
		if !background {
			c.commitLocked(pt, vs, selectorID, report)
		}
	}

	shouldPreload := !background && !c.preloaded
	if shouldPreload {
		c.preloaded = true
	}
	c.mu.Unlock()
	fl.finish()

	c.metrics.RecordRequestDuration("report_build", time.Since(start))

	if shouldPreload {
		go c.preload(pt, vs, selectorID, versionAtApply)
	}
	return report
}

// preload opportunistically builds the remaining period types for the
// same scope, once per data epoch. The selector of each sibling period
// is the one containing the foreground period's start date.
func (c *ReportCacheCoordinator) preload(fromPt domain.PeriodType, vs domain.ViewScope, selectorID string, version int64) {
	anchor, _, err := domain.PeriodRange(fromPt, selectorID, time.UTC)
	if err != nil {
		return
	}

	for _, pt := range domain.AllPeriodTypes {
		if pt == fromPt {
			continue
		}
		sel := domain.SelectorFor(pt, anchor)
		key := domain.ReportKey(pt, vs, sel)

		c.mu.Lock()
		if c.lastVersion != version {
			// Epoch ended; a fresh foreground fetch re-arms preloading.
			c.mu.Unlock()
			return
		}
		if _, ok := c.entries[key]; ok {
			c.mu.Unlock()
			continue
		}
		if c.inflight != nil {
			// Never contend with a foreground fetch.
			c.mu.Unlock()
			continue
		}
		fl := &inflight{key: key, seq: c.seq.Add(1), done: make(chan struct{})}
		c.inflight = fl
		c.state.Store(int32(StateBackgroundLoading))
		c.mu.Unlock()

		c.fetch(context.Background(), fl, pt, vs, sel, version, true)
	}
}

// forceIdle is the liveness guard's reset: clears the loading state and
// wakes any waiters so a wedged fetch cannot block the session.
func (c *ReportCacheCoordinator) forceIdle(fl *inflight) {
	c.mu.Lock()
	stuck := c.inflight == fl
	if stuck {
		c.inflight = nil
		c.state.Store(int32(StateIdle))
	}
	c.mu.Unlock()
	if stuck {
		c.logger.Warn("loading state force-reset after safety window",
			zap.String("user_id", c.userID),
			zap.String("key", fl.key),
			zap.Duration("window", c.loadTimeout),
		)
		c.metrics.IncrForcedReset()
		fl.finish()
	}
}

// invalidateLocked advances the data epoch. Equal or older versions are
// no-ops, so repeated notifications are idempotent.
func (c *ReportCacheCoordinator) invalidateLocked(dataVersion int64) {
	if dataVersion <= c.lastVersion {
		return
	}
	if len(c.entries) > 0 {
		c.metrics.IncrInvalidation()
	}
	c.entries = make(map[string]cacheEntry)
	c.preloaded = false
	c.lastVersion = dataVersion
}

// commitLocked applies a period/selector/report change as one state
// transition.
func (c *ReportCacheCoordinator) commitLocked(pt domain.PeriodType, vs domain.ViewScope, selectorID string, report *domain.Report) {
	c.view = viewState{periodType: pt, scope: vs, selectorID: selectorID, report: report}
}
