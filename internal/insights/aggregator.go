package insights

import (
	"context"
	"fmt"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"
	"github.com/AnsKM/dealflow-crm/internal/port"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("insights")

// Aggregator answers tenant-scoped insight queries. Each call reads the
// tenant's deals fresh from the store; nothing is cached.
type Aggregator struct {
	deals  port.DealLister
	cfg    Config
	now    func() time.Time
	logger *zap.Logger
}

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an aggregator over the given deal source.
func NewAggregator(deals port.DealLister, cfg Config, logger *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		deals:  deals,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Config returns the thresholds in use.
func (a *Aggregator) Config() Config { return a.cfg }

// Snapshot loads the tenant's deals and freezes them with the current time.
func (a *Aggregator) Snapshot(ctx context.Context, tenantID string) (*Pipeline, error) {
	ctx, span := tracer.Start(ctx, "Aggregator.Snapshot")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", tenantID))

	deals, err := a.deals.ListAllDeals(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list deals: %w", err)
	}
	span.SetAttributes(attribute.Int("deals.count", len(deals)))

	return NewPipeline(tenantID, deals, a.now(), a.cfg), nil
}

// AtRiskDeals returns the tenant's at-risk deals.
func (a *Aggregator) AtRiskDeals(ctx context.Context, tenantID string) ([]domain.Deal, error) {
	p, err := a.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	deals := p.AtRisk()
	a.logger.Debug("at-risk deals", zap.String("tenant_id", tenantID), zap.Int("count", len(deals)))
	return deals, nil
}

// HighPriorityDeals returns the tenant's high-priority deals.
func (a *Aggregator) HighPriorityDeals(ctx context.Context, tenantID string) ([]domain.Deal, error) {
	p, err := a.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return p.HighPriority(), nil
}

// RevenueAtRisk returns the summed value of the tenant's at-risk deals.
func (a *Aggregator) RevenueAtRisk(ctx context.Context, tenantID string) (decimal.Decimal, error) {
	p, err := a.Snapshot(ctx, tenantID)
	if err != nil {
		return decimal.Zero, err
	}
	return p.RevenueAtRisk(), nil
}

// UpcomingClose returns the tenant's active deals closing within horizon.
func (a *Aggregator) UpcomingClose(ctx context.Context, tenantID string, horizon time.Duration) ([]domain.Deal, error) {
	p, err := a.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return p.UpcomingClose(horizon), nil
}

// PipelineSummary returns the tenant's pipeline statistics.
func (a *Aggregator) PipelineSummary(ctx context.Context, tenantID string) (domain.PipelineSummary, error) {
	p, err := a.Snapshot(ctx, tenantID)
	if err != nil {
		return domain.PipelineSummary{}, err
	}
	return p.Summary(), nil
}

// StageConversionRates returns the tenant's stage distribution.
func (a *Aggregator) StageConversionRates(ctx context.Context, tenantID string) (map[string]float64, error) {
	p, err := a.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return p.StageConversionRates(), nil
}

// WeeklySummary returns the tenant's one-line digest.
func (a *Aggregator) WeeklySummary(ctx context.Context, tenantID string) (string, error) {
	p, err := a.Snapshot(ctx, tenantID)
	if err != nil {
		return "", err
	}
	return p.WeeklySummary(), nil
}

// Report builds the full insights report from a single snapshot.
func (a *Aggregator) Report(ctx context.Context, tenantID string) (*domain.DealInsights, error) {
	ctx, span := tracer.Start(ctx, "Aggregator.Report")
	defer span.End()

	p, err := a.Snapshot(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	report := BuildReport(p)

	a.logger.Info("insights report built",
		zap.String("tenant_id", tenantID),
		zap.Int("deals", p.Len()),
		zap.Int("at_risk", report.Summary.AtRiskCount),
		zap.String("revenue_at_risk", report.Summary.RevenueAtRisk.StringFixed(2)),
	)
	return report, nil
}
