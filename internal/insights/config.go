package insights

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config holds the thresholds used to classify deals.
type Config struct {
	// HighPriorityThreshold is the minimum value of a high-priority deal.
	HighPriorityThreshold decimal.Decimal
	// AtRiskHealthBelow flags active deals scoring strictly below it.
	AtRiskHealthBelow int
	// StaleContactAfter flags active deals without contact for longer than this.
	StaleContactAfter time.Duration
	// UpcomingHorizon is the look-ahead of the report and closing_soon_count.
	UpcomingHorizon time.Duration
	// WeeklyHorizon is the look-ahead of the weekly summary sentence.
	WeeklyHorizon time.Duration
	// ReportTopN truncates the at-risk and high-priority report sections.
	ReportTopN int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		HighPriorityThreshold: decimal.NewFromInt(100000),
		AtRiskHealthBelow:     40,
		StaleContactAfter:     7 * 24 * time.Hour,
		UpcomingHorizon:       14 * 24 * time.Hour,
		WeeklyHorizon:         7 * 24 * time.Hour,
		ReportTopN:            5,
	}
}
