package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig is the YAML overlay. Keys missing from the file keep their defaults.
//
//	health_alert_threshold: 40
//	cors_origins: ["https://app.example.com"]
//	insights:
//	  high_priority_threshold: "100000"
//	  at_risk_health_below: 40
//	  stale_contact_after: 168h
//	  upcoming_horizon: 336h
//	  weekly_horizon: 168h
//	  report_top_n: 5
type fileConfig struct {
	HealthAlertThreshold int            `yaml:"health_alert_threshold"`
	CORSOrigins          []string       `yaml:"cors_origins"`
	Insights             insightsConfig `yaml:"insights"`
}

type insightsConfig struct {
	HighPriorityThreshold string        `yaml:"high_priority_threshold"`
	AtRiskHealthBelow     int           `yaml:"at_risk_health_below"`
	StaleContactAfter     time.Duration `yaml:"stale_contact_after"`
	UpcomingHorizon       time.Duration `yaml:"upcoming_horizon"`
	WeeklyHorizon         time.Duration `yaml:"weekly_horizon"`
	ReportTopN            int           `yaml:"report_top_n"`
}

func defaultFile() fileConfig {
	return fileConfig{
		HealthAlertThreshold: 40,
		CORSOrigins:          []string{"http://localhost:5173", "http://localhost:3000"},
		Insights: insightsConfig{
			HighPriorityThreshold: "100000",
			AtRiskHealthBelow:     40,
			StaleContactAfter:     7 * 24 * time.Hour,
			UpcomingHorizon:       14 * 24 * time.Hour,
			WeeklyHorizon:         7 * 24 * time.Hour,
			ReportTopN:            5,
		},
	}
}

func (f *fileConfig) load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, f); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}
