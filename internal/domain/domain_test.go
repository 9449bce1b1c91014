package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClauseRecord_Defaults(t *testing.T) {
	r := NewClauseRecord(7, "The supplier shall retain records for five years.")

	assert.Equal(t, 7, r.ClauseID)
	assert.Equal(t, UnknownValue, r.Regulation)
	assert.Equal(t, RiskUnknown, r.RiskLevel)
	assert.Equal(t, DefaultRiskScore, r.RiskScore)
	assert.Equal(t, UnknownValue, r.ClauseIdentification)
	assert.Equal(t, DefaultFeedback, r.ClauseFeedbackFix)
	assert.Equal(t, DefaultModifiedClause, r.AIModifiedClause)
	assert.Equal(t, RiskUnknown, r.AIModifiedRiskLevel)
	assert.False(t, r.HasRewrite())
	assert.True(t, r.NeedsReconciliation())
}

func TestClauseRecord_NeedsReconciliation(t *testing.T) {
	tests := []struct {
		name       string
		level      RiskLevel
		regulation string
		want       bool
	}{
		{"both known", RiskHigh, "GDPR", false},
		{"unknown level", RiskUnknown, "GDPR", true},
		{"unknown regulation", RiskLow, UnknownValue, true},
		{"both unknown", RiskUnknown, UnknownValue, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewClauseRecord(1, "clause")
			r.RiskLevel = tt.level
			r.Regulation = tt.regulation
			assert.Equal(t, tt.want, r.NeedsReconciliation())
		})
	}
}

func TestRows_FollowHeaderOrder(t *testing.T) {
	r := NewClauseRecord(3, "Clause text goes here for sure.")
	r.Regulation = "HIPAA"
	r.RiskLevel = RiskMedium
	r.RiskScore = "55%"

	rows := Rows([]ClauseRecord{r})

	require.Len(t, rows, 1)
	require.Len(t, rows[0], len(Header()))
	assert.Equal(t, []string{
		"3", "Clause text goes here for sure.", "HIPAA", "Medium", "55%",
		UnknownValue, DefaultFeedback, DefaultModifiedClause, "Unknown",
	}, rows[0])
}

func TestSummarize(t *testing.T) {
	levels := []RiskLevel{RiskHigh, RiskHigh, RiskMedium, RiskLow, RiskUnknown, RiskLow}
	records := make([]ClauseRecord, 0, len(levels))
	for i, l := range levels {
		r := NewClauseRecord(i+1, "clause")
		r.RiskLevel = l
		records = append(records, r)
	}

	s := Summarize(records)

	assert.Equal(t, RiskSummary{Total: 6, High: 2, Medium: 1, Low: 2, Unknown: 1}, s)
	assert.Equal(t, "33.3%", s.Percent(s.High))
	assert.Equal(t, "16.7%", s.Percent(s.Medium))
	assert.Len(t, HighRisk(records), 2)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)

	assert.Zero(t, s.Total)
	assert.Equal(t, "0%", s.Percent(0))
	assert.Zero(t, s.Share(0))
}

func TestValidationError(t *testing.T) {
	ve := NewValidationError("config")
	assert.False(t, ve.HasErrors())

	ve.AddError("batch_size must be at least 1")
	assert.True(t, ve.HasErrors())
	assert.Equal(t, "validation error for config: batch_size must be at least 1", ve.Error())

	ve.AddError("models is required")
	assert.Contains(t, ve.Error(), "validation errors for config")
	assert.True(t, errors.Is(ve, ErrInvalidConfiguration))
}
