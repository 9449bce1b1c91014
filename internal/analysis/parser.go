package analysis

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ahrav/go-covenant/internal/clause"
	"github.com/ahrav/go-covenant/internal/domain"
)

// embeddedArray matches the first bracketed block that holds at least one
// object. The match is non-greedy so trailing prose with brackets is left
// alone.
var embeddedArray = regexp.MustCompile(`(?s)\[\s*\{.*?\}\s*\]`)

// allowedFields is the set of keys copied from a model element. Anything
// else the model returns is dropped.
var allowedFields = map[string]bool{
	domain.FieldClauseID:             true,
	domain.FieldContractClause:       true,
	domain.FieldRegulation:           true,
	domain.FieldRiskLevel:            true,
	domain.FieldRiskScore:            true,
	domain.FieldClauseIdentification: true,
	domain.FieldClauseFeedbackFix:    true,
	domain.FieldAIModifiedClause:     true,
	domain.FieldAIModifiedRiskLevel:  true,
}

// ResponseParser converts raw model completions into ClauseRecords. It
// never fails: output it cannot read is treated as an empty array and
// every valid clause still receives a record carrying defaults.
type ResponseParser struct {
	regulations *clause.RegulationMatcher
}

// NewResponseParser returns a parser that canonicalizes regulation names
// with m. A nil matcher uses the default vocabulary.
func NewResponseParser(m *clause.RegulationMatcher) *ResponseParser {
	if m == nil {
		m = clause.NewRegulationMatcher(nil)
	}
	return &ResponseParser{regulations: m}
}

// Regulations returns the matcher used for the Regulation field.
func (p *ResponseParser) Regulations() *clause.RegulationMatcher { return p.regulations }

// Parse pairs the elements of raw with clauses by position. Clauses that
// fail validation are skipped but still consume their position, so the
// record for clauses[i] always carries ClauseID startID+i.
func (p *ResponseParser) Parse(raw string, clauses []string, startID int) []domain.ClauseRecord {
	elements := decodeElements(raw)

	records := make([]domain.ClauseRecord, 0, len(clauses))
	for i, text := range clauses {
		if !clause.IsValid(text) {
			continue
		}

		rec := domain.NewClauseRecord(startID+i, clause.CleanText(text))
		if i < len(elements) {
			if obj, ok := elements[i].(map[string]any); ok {
				p.overlay(&rec, obj)
			}
		}
		if rec.AIModifiedRiskLevel == domain.RiskUnknown && rec.HasRewrite() {
			rec.AIModifiedRiskLevel = clause.InferModifiedRiskLevel(rec.RiskLevel)
		}
		records = append(records, rec)
	}
	return records
}

// overlay copies allow-listed fields from obj onto rec. Null and blank
// values leave the default in place. Clause ID and Contract Clause are
// accepted but stay pinned to the position and the input text.
func (p *ResponseParser) overlay(rec *domain.ClauseRecord, obj map[string]any) {
	for key, v := range obj {
		if !allowedFields[key] || v == nil {
			continue
		}

		switch key {
		case domain.FieldRiskScore:
			rec.RiskScore = clause.NormalizeRiskScore(v)
		case domain.FieldRiskLevel:
			rec.RiskLevel = clause.NormalizeRiskLevel(v)
		case domain.FieldAIModifiedRiskLevel:
			rec.AIModifiedRiskLevel = clause.NormalizeModifiedRiskLevel(v)
		case domain.FieldRegulation:
			if s := freeText(v); s != "" {
				rec.Regulation = p.regulations.Canonicalize(s)
			}
		case domain.FieldClauseIdentification:
			if s := freeText(v); s != "" {
				rec.ClauseIdentification = s
			}
		case domain.FieldClauseFeedbackFix:
			if s := freeText(v); s != "" {
				rec.ClauseFeedbackFix = s
			}
		case domain.FieldAIModifiedClause:
			if s := freeText(v); s != "" {
				rec.AIModifiedClause = s
			}
		}
	}
}

// freeText cleans string values and renders anything else verbatim.
func freeText(v any) string {
	if s, ok := v.(string); ok {
		return clause.CleanText(s)
	}
	return clause.Stringify(v)
}

// decodeElements returns the elements of the first JSON array found in
// raw: the whole text first, then the first embedded array. It returns nil
// when neither decodes.
func decodeElements(raw string) []any {
	if elems, ok := decodeArray(strings.TrimSpace(raw)); ok {
		return elems
	}
	if m := embeddedArray.FindString(raw); m != "" {
		if elems, ok := decodeArray(m); ok {
			return elems
		}
	}
	return nil
}

func decodeArray(s string) ([]any, bool) {
	if s == "" {
		return nil, false
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var elems []any
	if err := dec.Decode(&elems); err != nil {
		return nil, false
	}
	// Trailing content means raw was not a single array.
	if dec.More() {
		return nil, false
	}
	return elems, true
}
