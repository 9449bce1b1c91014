// Package domain holds the value types that flow through the clause risk
// pipeline: the ClauseRecord output unit, the RiskLevel enumeration, and
// the canonical field vocabulary shared by parsers and tabular sinks.
package domain

import "strconv"

// RiskLevel is the categorical severity assigned to a clause.
type RiskLevel string

// Risk levels. Unknown is a valid terminal state, not an error.
const (
	RiskHigh    RiskLevel = "High"
	RiskMedium  RiskLevel = "Medium"
	RiskLow     RiskLevel = "Low"
	RiskUnknown RiskLevel = "Unknown"
)

// String returns the canonical spelling of the level.
func (r RiskLevel) String() string { return string(r) }

// Known reports whether the level is one of High, Medium or Low.
func (r RiskLevel) Known() bool {
	return r == RiskHigh || r == RiskMedium || r == RiskLow
}

// Canonical field names as they appear in model output and in the header
// row handed to tabular sinks. Order matters for Header.
const (
	FieldClauseID             = "Clause ID"
	FieldContractClause       = "Contract Clause"
	FieldRegulation           = "Regulation"
	FieldRiskLevel            = "Risk Level"
	FieldRiskScore            = "Risk Score"
	FieldClauseIdentification = "Clause Identification"
	FieldClauseFeedbackFix    = "Clause Feedback & Fix"
	FieldAIModifiedClause     = "AI-Modified Clause"
	FieldAIModifiedRiskLevel  = "AI-Modified Risk Level"
)

// Default values for fields the model did not supply.
const (
	UnknownValue          = "Unknown"
	DefaultRiskScore      = "0%"
	DefaultFeedback       = "No feedback or recommendation available."
	DefaultModifiedClause = "No AI-modified clause available."
)

// Header returns the nine canonical column names in output order.
func Header() []string {
	return []string{
		FieldClauseID,
		FieldContractClause,
		FieldRegulation,
		FieldRiskLevel,
		FieldRiskScore,
		FieldClauseIdentification,
		FieldClauseFeedbackFix,
		FieldAIModifiedClause,
		FieldAIModifiedRiskLevel,
	}
}

// ClauseRecord is the structured risk assessment for one validated clause.
// Records are created by the response parser and are treated as immutable
// once the pipeline returns them.
type ClauseRecord struct {
	// ClauseID is derived from input position plus batch offset.
	ClauseID int `json:"Clause ID"`

	// ContractClause is the whitespace-collapsed input clause text.
	ContractClause string `json:"Contract Clause"`

	// Regulation names the best matching regulation(s), or "Unknown".
	Regulation string `json:"Regulation"`

	RiskLevel RiskLevel `json:"Risk Level"`

	// RiskScore always has the form "<0-100>%".
	RiskScore string `json:"Risk Score"`

	ClauseIdentification string `json:"Clause Identification"`
	ClauseFeedbackFix    string `json:"Clause Feedback & Fix"`
	AIModifiedClause     string `json:"AI-Modified Clause"`

	// AIModifiedRiskLevel is never High.
	AIModifiedRiskLevel RiskLevel `json:"AI-Modified Risk Level"`
}

// NewClauseRecord returns a record for the given clause carrying every
// default value.
func NewClauseRecord(id int, clause string) ClauseRecord {
	return ClauseRecord{
		ClauseID:             id,
		ContractClause:       clause,
		Regulation:           UnknownValue,
		RiskLevel:            RiskUnknown,
		RiskScore:            DefaultRiskScore,
		ClauseIdentification: UnknownValue,
		ClauseFeedbackFix:    DefaultFeedback,
		AIModifiedClause:     DefaultModifiedClause,
		AIModifiedRiskLevel:  RiskUnknown,
	}
}

// HasRewrite reports whether the model supplied a rewritten clause.
func (c ClauseRecord) HasRewrite() bool {
	return c.AIModifiedClause != "" && c.AIModifiedClause != DefaultModifiedClause
}

// NeedsReconciliation reports whether the classification is incomplete.
// A record is considered failed when either its risk level or its
// regulation is still unknown.
func (c ClauseRecord) NeedsReconciliation() bool {
	return c.RiskLevel == RiskUnknown || c.Regulation == UnknownValue
}

// Row renders the record in Header order.
func (c ClauseRecord) Row() []string {
	return []string{
		strconv.Itoa(c.ClauseID),
		c.ContractClause,
		c.Regulation,
		c.RiskLevel.String(),
		c.RiskScore,
		c.ClauseIdentification,
		c.ClauseFeedbackFix,
		c.AIModifiedClause,
		c.AIModifiedRiskLevel.String(),
	}
}

// Rows renders a slice of records in Header order.
func Rows(records []ClauseRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, r.Row())
	}
	return rows
}
