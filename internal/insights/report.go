package insights

import "github.com/AnsKM/dealflow-crm/internal/domain"

// BuildReport assembles the insights report from a snapshot. The at-risk and
// high-priority lists are cut to the configured top N after sorting; the
// upcoming list is left whole.
func BuildReport(p *Pipeline) *domain.DealInsights {
	return &domain.DealInsights{
		Summary:              p.Summary(),
		WeeklySummary:        p.WeeklySummary(),
		AtRiskDeals:          top(p.AtRisk(), p.cfg.ReportTopN),
		HighPriorityDeals:    top(p.HighPriority(), p.cfg.ReportTopN),
		UpcomingCloseDeals:   p.UpcomingClose(p.cfg.UpcomingHorizon),
		StageConversionRates: p.StageConversionRates(),
	}
}

func top(deals []domain.Deal, n int) []domain.Deal {
	if n >= 0 && len(deals) > n {
		return deals[:n]
	}
	return deals
}
