package service

import (
	"context"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var reportTracer = otel.Tracer("service/report")

// ReportService assembles full reports from the local store: summary,
// health score and chart series. It implements port.ReportBuilder, the
// function the cache coordinator wraps.
type ReportService struct {
	store  port.BillStore
	logger *zap.Logger
	loc    *time.Location
}

// NewReportService creates the report builder.
func NewReportService(store port.BillStore, logger *zap.Logger) *ReportService {
	return &ReportService{store: store, logger: logger, loc: time.UTC}
}

// Build computes the report for one (period type, scope, selector) key.
func (s *ReportService) Build(ctx context.Context, userID string, pt domain.PeriodType, vs domain.ViewScope, selectorID string, dataVersion int64) (*domain.Report, error) {
	ctx, span := reportTracer.Start(ctx, "ReportService.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("period_type", string(pt)),
		attribute.String("selector", selectorID),
	)

	start, end, err := domain.PeriodRange(pt, selectorID, s.loc)
	if err != nil {
		return nil, err
	}

	var (
		bills  []domain.Bill
		budget *domain.PeriodBudget
		cash   float64
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		bills, err = s.store.ListBills(gCtx, userID, vs, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		budget, err = s.store.GetBudget(gCtx, userID, pt)
		return err
	})
	g.Go(func() error {
		var err error
		cash, err = s.store.GetCashBalance(gCtx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := Summarize(SummarizeInput{
		Bills:       splitExpenses(bills),
		Budget:      budget,
		Period:      pt,
		Start:       start,
		End:         end,
		CashBalance: cash,
		TotalIncome: incomeTotal(bills),
	})

	health := CalculateHealthScore(HealthInputFromSummary(summary, budget))

	series := make([]domain.ChartPoint, len(summary.Volatility.Daily))
	for i, amount := range summary.Volatility.Daily {
		series[i] = domain.ChartPoint{
			Date:   start.AddDate(0, 0, i).Format("2006-01-02"),
			Amount: amount,
		}
	}

	return &domain.Report{
		PeriodType:  pt,
		ViewScope:   vs,
		SelectorID:  selectorID,
		Summary:     summary,
		Health:      health,
		Series:      series,
		DataVersion: dataVersion,
		BuiltAt:     time.Now(),
	}, nil
}

// DataVersion exposes the store's current data epoch.
func (s *ReportService) DataVersion() int64 {
	return s.store.DataVersion()
}

// BuildSummary computes just the summary for one key; used by the
// insight endpoint, which does not need health or chart data.
func (s *ReportService) BuildSummary(ctx context.Context, userID string, pt domain.PeriodType, vs domain.ViewScope, selectorID string) (*domain.BillSummary, error) {
	report, err := s.Build(ctx, userID, pt, vs, selectorID, s.store.DataVersion())
	if err != nil {
		return nil, err
	}
	return &report.Summary, nil
}

// splitExpenses keeps expense records (positive amounts). Negative
// amounts are income and feed the savings rate instead of the spending
// statistics.
func splitExpenses(bills []domain.Bill) []domain.Bill {
	out := make([]domain.Bill, 0, len(bills))
	for _, b := range bills {
		if b.Amount >= 0 {
			out = append(out, b)
		}
	}
	return out
}

// incomeTotal sums income records. It returns nil when no income was
// tracked, so the health score omits the savings metric entirely.
func incomeTotal(bills []domain.Bill) *float64 {
	var total float64
	seen := false
	for _, b := range bills {
		if b.Amount < 0 && !b.IsDeleted {
			total += -b.Amount
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return &total
}
