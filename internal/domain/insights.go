package domain

// ============================================================
// Insights: GET /v1/deals/insights
// ============================================================

// PipelineSummary holds portfolio statistics over a tenant's active deals.
type PipelineSummary struct {
	ActiveDeals        int     `json:"active_deals"`
	PipelineValue      Money   `json:"pipeline_value"`
	AverageHealthScore float64 `json:"average_health_score"`
	AtRiskCount        int     `json:"at_risk_count"`
	RevenueAtRisk      Money   `json:"revenue_at_risk"`
	ClosingSoonCount   int     `json:"closing_soon_count"`
}

// DealInsights is the aggregate report for one tenant.
type DealInsights struct {
	Summary              PipelineSummary    `json:"summary"`
	WeeklySummary        string             `json:"weekly_summary"`
	AtRiskDeals          []Deal             `json:"at_risk_deals"`
	HighPriorityDeals    []Deal             `json:"high_priority_deals"`
	UpcomingCloseDeals   []Deal             `json:"upcoming_close_deals"`
	StageConversionRates map[string]float64 `json:"stage_conversion_rates"`
}
