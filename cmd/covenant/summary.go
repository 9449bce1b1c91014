package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ahrav/go-covenant/infrastructure/middleware"
	"github.com/ahrav/go-covenant/internal/application"
	"github.com/ahrav/go-covenant/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA")).
			Width(16)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	levelColors = map[domain.RiskLevel]lipgloss.Color{
		domain.RiskHigh:    lipgloss.Color("#FF4D4F"),
		domain.RiskMedium:  lipgloss.Color("#FAAD14"),
		domain.RiskLow:     lipgloss.Color("#52C41A"),
		domain.RiskUnknown: lipgloss.Color("#888888"),
	}
)

// renderSummary draws the end-of-run box printed to stdout.
func renderSummary(name, runID string, res *application.JobResult, usage middleware.Usage) string {
	s := res.Summary
	lines := []string{
		titleStyle.Render("COVENANT · " + name),
		row("Run", runID),
		row("Clauses", fmt.Sprint(s.Total)),
		levelRow(domain.RiskHigh, s.High, s),
		levelRow(domain.RiskMedium, s.Medium, s),
		levelRow(domain.RiskLow, s.Low, s),
	}
	if s.Unknown > 0 {
		lines = append(lines, levelRow(domain.RiskUnknown, s.Unknown, s))
	}
	lines = append(lines,
		row("Model calls", fmt.Sprint(usage.Calls)),
		row("Tokens", fmt.Sprint(usage.Tokens)),
		row("Elapsed", res.Elapsed.Round(time.Millisecond).String()),
	)
	if res.ReportLink != "" {
		lines = append(lines, row("Report", res.ReportLink))
	}
	if res.DigestPath != "" {
		lines = append(lines, row("Rewrites", res.DigestPath))
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}

func levelRow(level domain.RiskLevel, count int, s domain.RiskSummary) string {
	value := lipgloss.NewStyle().
		Foreground(levelColors[level]).
		Render(fmt.Sprintf("%d (%s)", count, s.Percent(count)))
	return row(level.String(), value)
}
