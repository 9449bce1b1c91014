package report

import (
	"bytes"
	"fmt"
	"html/template"
	"path/filepath"

	"github.com/ahrav/go-covenant/internal/domain"
	"github.com/ahrav/go-covenant/internal/ports"
)

const alertTemplate = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width,initial-scale=1">
<style>
body { font-family: 'Helvetica Neue', Arial, sans-serif; background: #f7f8fb; margin: 0; padding: 20px; color: #333333; }
.card { max-width: 800px; margin: 0 auto; background: #ffffff; border-radius: 12px; overflow: hidden; }
.hero { padding: 26px 28px; background: linear-gradient(90deg, #977DFF, #0033FF); color: #fff; }
.hero h1 { margin: 0; font-size: 22px; }
.content { padding: 22px 28px; }
.section-title { font-size: 14px; font-weight: 600; margin-bottom: 10px; }
.summary-grid { display: flex; gap: 12px; flex-wrap: wrap; margin-bottom: 16px; }
.metric { flex: 1 1 140px; padding: 12px; border-radius: 10px; text-align: center; }
.metric .value { font-size: 18px; font-weight: 700; color: #0033FF; }
.metric .label { font-size: 12px; color: #666; }
.track { width: 100%; background: #eee; border-radius: 6px; overflow: hidden; }
.btn { display: inline-block; background: #21c66b; color: #fff; padding: 12px 20px; border-radius: 10px; text-decoration: none; font-weight: 700; }
.next-steps { margin-top: 18px; padding: 14px; border-radius: 10px; background: #fbfbff; font-size: 13px; }
.footer { font-size: 12px; color: #888; padding: 18px 28px; text-align: center; }
</style>
</head>
<body>
<div class="card">
  <div class="hero">
    <h1>Compliance Risk Report</h1>
    <p>Automated analysis for <strong>{{.ContractName}}</strong></p>
  </div>
  <div class="content">
    <p><strong>Greetings,</strong></p>
    <p>Below is the summary of the compliance analysis for <strong>{{.ContractName}}</strong>.
    {{- if .ContractDescription}}<em style="display:block; margin-top:8px; color:#666;">{{.ContractDescription}}</em>{{end}}</p>

    <div class="section-title">Summary: Key Metrics</div>
    <div class="summary-grid">
      <div class="metric"><div class="value">{{.Total}}</div><div class="label">Total Clauses</div></div>
      {{- range .Levels}}
      <div class="metric"><div class="value">{{.Count}} ({{.Percent}})</div><div class="label">{{.Name}} Risk</div></div>
      {{- end}}
    </div>

    <div class="section-title">Risk Distribution</div>
    {{- range .Levels}}
    <div style="font-size:12px; margin:10px 0 4px;">{{.Name}} Risk ({{.Count}})</div>
    <div class="track"><div style="width:{{.Width}}%; background:{{.Color}}; height:10px;"></div></div>
    {{- end}}

    {{- if .ReportLink}}
    <div style="text-align:center; margin-top:18px;">
      <div style="font-size:13px; margin-bottom:8px; font-weight:600;">Full Report</div>
      <a class="btn" href="{{.ReportLink}}" target="_blank">Open Report</a>
    </div>
    {{- end}}

    <div class="next-steps">
      <div style="font-weight:700; margin-bottom:8px;">Recommended Next Steps</div>
      <ol>
        <li>Review the detailed compliance report and analysis.</li>
        <li>Examine AI-rewritten clauses for safer alternatives.</li>
        <li>Evaluate AI-provided suggestions for risk mitigation.</li>
        <li>Implement corrective measures to reduce risks across all levels.</li>
      </ol>
    </div>

    <div style="margin-top:14px; font-size:13px;">
      <div style="font-weight:700; margin-bottom:8px;">Attachments</div>
      <ul>
      {{- range .Attachments}}
        <li>{{.}} (attached)</li>
      {{- else}}
        <li>No AI-modified clause files attached.</li>
      {{- end}}
      </ul>
    </div>

    <p style="margin-top:18px; color:#666;">Closing,<br/>Compliance Automation Team</p>
  </div>
  <div class="footer">This report was generated automatically. If you prefer different recipients or need help, reply to this email.</div>
</div>
</body>
</html>
`

var alertHTML = template.Must(template.New("alert").Parse(alertTemplate))

type levelView struct {
	Name    string
	Count   int
	Percent string
	Width   string
	Color   string
}

type alertView struct {
	ContractName        string
	ContractDescription string
	Total               int
	Levels              []levelView
	ReportLink          string
	Attachments         []string
}

// RenderAlertHTML renders the HTML body of a compliance alert.
func RenderAlertHTML(alert ports.Alert) (string, error) {
	summary := domain.RiskSummary{
		Total:  alert.Total,
		High:   alert.High,
		Medium: alert.Medium,
		Low:    alert.Low,
	}

	name := alert.ContractName
	if name == "" {
		name = "Contract"
	}
	view := alertView{
		ContractName:        name,
		ContractDescription: alert.ContractDescription,
		Total:               alert.Total,
		ReportLink:          alert.ReportLink,
		Levels: []levelView{
			level(summary, "High", alert.High, "#ff4d4f"),
			level(summary, "Medium", alert.Medium, "#faad14"),
			level(summary, "Low", alert.Low, "#52c41a"),
		},
	}
	for _, path := range alert.Attachments {
		view.Attachments = append(view.Attachments, filepath.Base(path))
	}

	var buf bytes.Buffer
	if err := alertHTML.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to render alert: %w", err)
	}
	return buf.String(), nil
}

func level(s domain.RiskSummary, name string, count int, color string) levelView {
	return levelView{
		Name:    name,
		Count:   count,
		Percent: s.Percent(count),
		Width:   fmt.Sprintf("%.1f", s.Share(count)),
		Color:   color,
	}
}
