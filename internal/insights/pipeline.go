// Package insights classifies a tenant's deals (at risk, high priority,
// closing soon) and derives portfolio statistics from their stored health
// scores.
package insights

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AnsKM/dealflow-crm/internal/domain"

	"github.com/shopspring/decimal"
)

// StableSummary is the weekly summary when nothing needs attention.
const StableSummary = "Pipeline is stable - no critical actions required"

const summarySeparator = " | "

var hundred = decimal.NewFromInt(100)

// Pipeline is a point-in-time view of one tenant's deals.
// Every method is a pure function of the snapshot.
type Pipeline struct {
	tenantID string
	deals    []domain.Deal
	now      time.Time
	cfg      Config
}

// NewPipeline builds a snapshot. Deals owned by other tenants are dropped.
func NewPipeline(tenantID string, deals []domain.Deal, now time.Time, cfg Config) *Pipeline {
	owned := make([]domain.Deal, 0, len(deals))
	for _, d := range deals {
		if d.TenantID == tenantID {
			owned = append(owned, d)
		}
	}
	return &Pipeline{tenantID: tenantID, deals: owned, now: now.UTC(), cfg: cfg}
}

// TenantID returns the tenant the snapshot belongs to.
func (p *Pipeline) TenantID() string { return p.tenantID }

// Len returns the number of deals in the snapshot.
func (p *Pipeline) Len() int { return len(p.deals) }

// AtRisk returns active deals with a low score or stale contact,
// worst health first and the most valuable first among equals.
func (p *Pipeline) AtRisk() []domain.Deal {
	staleBefore := p.now.Add(-p.cfg.StaleContactAfter)

	out := p.filter(func(d *domain.Deal) bool {
		if d.Stage.Closed() {
			return false
		}
		return d.HealthScore < p.cfg.AtRiskHealthBelow ||
			d.LastContactAt == nil ||
			d.LastContactAt.UTC().Before(staleBefore)
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].HealthScore != out[j].HealthScore {
			return out[i].HealthScore < out[j].HealthScore
		}
		return out[i].Value.GreaterThan(out[j].Value.Decimal)
	})
	return out
}

// HighPriority returns late-stage deals at or above the value threshold,
// most valuable first.
func (p *Pipeline) HighPriority() []domain.Deal {
	out := p.filter(func(d *domain.Deal) bool {
		return d.Stage.Late() && d.Value.GreaterThanOrEqual(p.cfg.HighPriorityThreshold)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Value.GreaterThan(out[j].Value.Decimal)
	})
	return out
}

// RevenueAtRisk is the exact sum of the values of AtRisk.
func (p *Pipeline) RevenueAtRisk() decimal.Decimal {
	return sumValues(p.AtRisk())
}

// UpcomingClose returns active deals expected to close within
// [now, now+horizon], soonest first.
func (p *Pipeline) UpcomingClose(horizon time.Duration) []domain.Deal {
	until := p.now.Add(horizon)

	out := p.filter(func(d *domain.Deal) bool {
		if d.Stage.Closed() || d.ExpectedCloseDate == nil {
			return false
		}
		c := d.ExpectedCloseDate.UTC()
		return !c.Before(p.now) && !c.After(until)
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ExpectedCloseDate.Before(*out[j].ExpectedCloseDate)
	})
	return out
}

// Summary returns the pipeline statistics over active deals. The average
// health score is rounded to one decimal, ties to even.
func (p *Pipeline) Summary() domain.PipelineSummary {
	active := p.filter(func(d *domain.Deal) bool { return !d.Stage.Closed() })

	avg := decimal.Zero
	if len(active) > 0 {
		total := int64(0)
		for _, d := range active {
			total += int64(d.HealthScore)
		}
		avg = decimal.NewFromInt(total).Div(decimal.NewFromInt(int64(len(active)))).RoundBank(1)
	}

	atRisk := p.AtRisk()
	return domain.PipelineSummary{
		ActiveDeals:        len(active),
		PipelineValue:      domain.NewMoney(sumValues(active)),
		AverageHealthScore: avg.InexactFloat64(),
		AtRiskCount:        len(atRisk),
		RevenueAtRisk:      domain.NewMoney(sumValues(atRisk)),
		ClosingSoonCount:   len(p.UpcomingClose(p.cfg.UpcomingHorizon)),
	}
}

// StageConversionRates returns each stage's share of all deals, in percent
// rounded to one decimal, ties to even. It is a distribution, not a funnel transition
// rate. Stages without deals are omitted; an empty pipeline yields an empty map.
func (p *Pipeline) StageConversionRates() map[string]float64 {
	rates := make(map[string]float64)
	if len(p.deals) == 0 {
		return rates
	}

	counts := make(map[domain.Stage]int64)
	for _, d := range p.deals {
		counts[d.Stage]++
	}
	total := decimal.NewFromInt(int64(len(p.deals)))
	for stage, n := range counts {
		rates[string(stage)] = decimal.NewFromInt(n).Mul(hundred).Div(total).RoundBank(1).InexactFloat64()
	}
	return rates
}

// WeeklySummary renders a one-line digest of what needs attention.
func (p *Pipeline) WeeklySummary() string {
	var parts []string

	if n := len(p.AtRisk()); n > 0 {
		parts = append(parts, fmt.Sprintf("%d deals need attention", n))
	}
	if n := len(p.UpcomingClose(p.cfg.WeeklyHorizon)); n > 0 {
		parts = append(parts, fmt.Sprintf("%d deals closing in the next %d days", n, horizonDays(p.cfg.WeeklyHorizon)))
	}
	if n := len(p.HighPriority()); n > 0 {
		parts = append(parts, fmt.Sprintf("%d high-value deals in negotiation", n))
	}

	if len(parts) == 0 {
		return StableSummary
	}
	return strings.Join(parts, summarySeparator)
}

// filter copies the deals matching keep, preserving snapshot order.
func (p *Pipeline) filter(keep func(d *domain.Deal) bool) []domain.Deal {
	out := make([]domain.Deal, 0)
	for i := range p.deals {
		if keep(&p.deals[i]) {
			out = append(out, p.deals[i])
		}
	}
	return out
}

func sumValues(deals []domain.Deal) decimal.Decimal {
	sum := decimal.Zero
	for _, d := range deals {
		sum = sum.Add(d.Value.Decimal)
	}
	return sum
}

func horizonDays(h time.Duration) int {
	return int(h / (24 * time.Hour))
}
