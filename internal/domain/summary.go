package domain

import (
	"fmt"
	"math"
)

// RiskSummary aggregates record counts per risk level for reporting.
type RiskSummary struct {
	Total   int `json:"total"`
	High    int `json:"high"`
	Medium  int `json:"medium"`
	Low     int `json:"low"`
	Unknown int `json:"unknown"`
}

// Summarize counts records by their original risk level.
func Summarize(records []ClauseRecord) RiskSummary {
	s := RiskSummary{Total: len(records)}
	for _, r := range records {
		switch r.RiskLevel {
		case RiskHigh:
			s.High++
		case RiskMedium:
			s.Medium++
		case RiskLow:
			s.Low++
		default:
			s.Unknown++
		}
	}
	return s
}

// Share returns count as a percentage of Total, rounded to one decimal.
// It returns 0 when Total is 0.
func (s RiskSummary) Share(count int) float64 {
	if s.Total <= 0 {
		return 0
	}
	return math.Round(float64(count)/float64(s.Total)*1000) / 10
}

// Percent formats Share for display, e.g. "33.3%". An empty summary
// renders as "0%".
func (s RiskSummary) Percent(count int) string {
	if s.Total <= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.1f%%", s.Share(count))
}

// HighRisk returns the records whose original risk level is High.
func HighRisk(records []ClauseRecord) []ClauseRecord {
	var out []ClauseRecord
	for _, r := range records {
		if r.RiskLevel == RiskHigh {
			out = append(out, r)
		}
	}
	return out
}
