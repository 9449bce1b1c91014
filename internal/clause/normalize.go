package clause

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ahrav/go-covenant/internal/domain"
)

// Risk level thresholds used when a level is expressed as a number.
const (
	highThreshold   = 70
	mediumThreshold = 40
)

var firstNumber = regexp.MustCompile(`\d{1,3}`)

// CleanText collapses every whitespace run, newlines included, into a
// single space and trims both ends.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeRiskScore coerces an arbitrary model value into "<n>%" with n
// clamped to [0,100]. The first run of one to three digits wins; inputs
// without digits yield "0%".
func NormalizeRiskScore(raw any) string {
	if raw == nil {
		return domain.DefaultRiskScore
	}

	n, ok := leadingNumber(numericText(raw))
	if !ok {
		return domain.DefaultRiskScore
	}
	return strconv.Itoa(min(max(n, 0), 100)) + "%"
}

// NormalizeRiskLevel maps an arbitrary model value onto a RiskLevel.
// Keywords are checked in priority order high, med, low; failing that a
// numeric value is bucketed by threshold.
func NormalizeRiskLevel(raw any) domain.RiskLevel {
	if raw == nil {
		return domain.RiskUnknown
	}

	s := strings.ToLower(strings.TrimSpace(numericText(raw)))
	if s == "" {
		return domain.RiskUnknown
	}

	switch {
	case strings.Contains(s, "high"):
		return domain.RiskHigh
	case strings.Contains(s, "med"):
		return domain.RiskMedium
	case strings.Contains(s, "low"):
		return domain.RiskLow
	}

	n, ok := leadingNumber(s)
	if !ok {
		return domain.RiskUnknown
	}
	switch {
	case n >= highThreshold:
		return domain.RiskHigh
	case n >= mediumThreshold:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// NormalizeModifiedRiskLevel normalizes the level of a rewritten clause.
// A rewrite may never stay High, so High is lowered to Medium.
func NormalizeModifiedRiskLevel(raw any) domain.RiskLevel {
	level := NormalizeRiskLevel(raw)
	if level == domain.RiskHigh {
		return domain.RiskMedium
	}
	return level
}

// InferModifiedRiskLevel derives a rewrite's level from the original
// clause level: one step down, never below Low, Medium when unknown.
func InferModifiedRiskLevel(original domain.RiskLevel) domain.RiskLevel {
	switch original {
	case domain.RiskHigh:
		return domain.RiskMedium
	case domain.RiskMedium, domain.RiskLow:
		return domain.RiskLow
	default:
		return domain.RiskMedium
	}
}

// Stringify renders a decoded JSON value as text. json.Number keeps its
// literal spelling; arrays and objects are re-encoded compactly.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool, float64, float32, int, int64:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// numericText is Stringify with numbers spelled in plain decimal, so an
// exponent such as 1e5 reads as 100000 rather than as its mantissa.
func numericText(v any) string {
	switch t := v.(type) {
	case json.Number:
		if !strings.ContainsAny(string(t), "eE.") {
			return string(t)
		}
		f, err := t.Float64()
		if err != nil {
			return string(t)
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	}
	return Stringify(v)
}

func leadingNumber(s string) (int, bool) {
	m := firstNumber.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}
