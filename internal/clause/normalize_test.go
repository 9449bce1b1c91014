package clause

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-covenant/internal/domain"
)

var scorePattern = regexp.MustCompile(`^\d{1,3}%$`)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"already clean", "a b c", "a b c"},
		{"trims ends", "  a b  ", "a b"},
		{"collapses runs and newlines", "a \n\n b\t\tc\r\nd", "a b c d"},
		{"unicode spaces", "a\u00a0\u2003b", "a b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.in))
		})
	}
}

func TestNormalizeRiskScore(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"nil", nil, "0%"},
		{"empty string", "", "0%"},
		{"no digits", "very risky", "0%"},
		{"plain percent", "85%", "85%"},
		{"embedded number", "score is about 42 out of 100", "42%"},
		{"clamped above 100", "250", "100%"},
		{"first run of at most three digits", "12345", "100%"},
		{"zero", "0", "0%"},
		{"json number", json.Number("73"), "73%"},
		{"json number exponent", json.Number("1e5"), "100%"},
		{"json number small exponent", json.Number("4.2E1"), "42%"},
		{"json number fraction", json.Number("85.5"), "85%"},
		{"float exponent", 1e21, "100%"},
		{"float", 66.6, "66%"},
		{"int", 12, "12%"},
		{"bool", true, "0%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRiskScore(tt.raw))
		})
	}
}

func TestNormalizeRiskScore_IdempotentAndWellFormed(t *testing.T) {
	inputs := []any{nil, "", "abc", "7", "85%", "999", "-40", "3.14", "1e9", 120, json.Number("55"), []any{"90"}}
	for i := range 300 {
		inputs = append(inputs, strconv.Itoa(i*7), fmt.Sprintf("risk %d%%", i))
	}

	for _, in := range inputs {
		once := NormalizeRiskScore(in)
		twice := NormalizeRiskScore(once)

		assert.Equal(t, once, twice, "input %v", in)
		require.Regexp(t, scorePattern, once, "input %v", in)

		n, err := strconv.Atoi(strings.TrimSuffix(once, "%"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 0)
		assert.LessOrEqual(t, n, 100)
	}
}

func TestNormalizeRiskLevel(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want domain.RiskLevel
	}{
		{"nil", nil, domain.RiskUnknown},
		{"empty", "", domain.RiskUnknown},
		{"blank", "   ", domain.RiskUnknown},
		{"high", "High", domain.RiskHigh},
		{"keyword beats number", "HIGH risk, score 30", domain.RiskHigh},
		{"high checked before low", "low to high", domain.RiskHigh},
		{"medium abbreviation", "med", domain.RiskMedium},
		{"medium checked before low", "medium-low", domain.RiskMedium},
		{"low", "LOW", domain.RiskLow},
		{"numeric high", "85", domain.RiskHigh},
		{"numeric boundary high", "70", domain.RiskHigh},
		{"numeric medium", "55", domain.RiskMedium},
		{"numeric boundary medium", "40", domain.RiskMedium},
		{"numeric low", "10", domain.RiskLow},
		{"json number", json.Number("90"), domain.RiskHigh},
		{"json number exponent", json.Number("1e2"), domain.RiskHigh},
		{"json number negative exponent", json.Number("5e-1"), domain.RiskLow},
		{"float", 45.0, domain.RiskMedium},
		{"gibberish", "severe", domain.RiskUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRiskLevel(tt.raw))
		})
	}
}

func TestNormalizeModifiedRiskLevel_NeverHigh(t *testing.T) {
	for _, raw := range []any{"High", "HIGH", "95", json.Number("100"), "high-ish"} {
		assert.Equal(t, domain.RiskMedium, NormalizeModifiedRiskLevel(raw), "input %v", raw)
	}
	assert.Equal(t, domain.RiskLow, NormalizeModifiedRiskLevel("low"))
	assert.Equal(t, domain.RiskUnknown, NormalizeModifiedRiskLevel(nil))
}

func TestInferModifiedRiskLevel(t *testing.T) {
	tests := []struct {
		original domain.RiskLevel
		want     domain.RiskLevel
	}{
		{domain.RiskHigh, domain.RiskMedium},
		{domain.RiskMedium, domain.RiskLow},
		{domain.RiskLow, domain.RiskLow},
		{domain.RiskUnknown, domain.RiskMedium},
	}

	for _, tt := range tests {
		t.Run(tt.original.String(), func(t *testing.T) {
			got := InferModifiedRiskLevel(tt.original)
			assert.Equal(t, tt.want, got)
			assert.NotEqual(t, domain.RiskHigh, got)
		})
	}
}

func TestStringify(t *testing.T) {
	assert.Equal(t, "", Stringify(nil))
	assert.Equal(t, "text", Stringify("text"))
	assert.Equal(t, "0.50", Stringify(json.Number("0.50")))
	assert.Equal(t, "true", Stringify(true))
	assert.Equal(t, `["a","b"]`, Stringify([]any{"a", "b"}))
	assert.Equal(t, `{"k":1}`, Stringify(map[string]any{"k": 1}))
}
