package report

import (
	"fmt"
	"strings"

	"github.com/ahrav/go-covenant/internal/domain"
)

// DigestName is the attachment name used for the rewrite digest.
const DigestName = "ai_modified_clauses.txt"

// RewriteDigest renders the High-risk clauses next to their AI rewrites as
// plain text.
func RewriteDigest(records []domain.ClauseRecord) string {
	var b strings.Builder
	b.WriteString("AI-Rewritten Contract Clauses Report\n")
	b.WriteString(strings.Repeat("=", 36))
	b.WriteString("\n\n")

	high := domain.HighRisk(records)
	if len(high) == 0 {
		b.WriteString("No high-risk clauses found.\n")
		return b.String()
	}

	for _, r := range high {
		fmt.Fprintf(&b, "Clause ID: %d\n", r.ClauseID)
		fmt.Fprintf(&b, "Regulation: %s\n", r.Regulation)
		fmt.Fprintf(&b, "Original Risk Level: %s (%s)\n", r.RiskLevel, r.RiskScore)
		fmt.Fprintf(&b, "Original Clause: %s\n", r.ContractClause)
		fmt.Fprintf(&b, "AI-Modified Clause: %s\n", r.AIModifiedClause)
		fmt.Fprintf(&b, "AI-Modified Risk Level: %s\n", r.AIModifiedRiskLevel)
		fmt.Fprintf(&b, "Feedback: %s\n\n", r.ClauseFeedbackFix)
	}
	return b.String()
}
