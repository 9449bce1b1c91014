package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/ahrav/go-covenant/internal/clause"
)

// SystemPrompt is sent as the system message of every batch request.
const SystemPrompt = "You are a legal compliance analyst. Respond ONLY with valid JSON. Risk Score must include %."

// DefaultPromptTemplate asks for one JSON object per clause, in input
// order, and restates the rule that a rewrite must leave High risk behind.
// It receives .Regulations (a comma separated list) and .Clauses (a JSON
// array of {"Clause ID", "Contract Clause"} objects).
const DefaultPromptTemplate = `You are a legal compliance analyst. Analyze the following contract clauses.

For each contract clause, analyze risks and rewrite it into an "AI-Modified Clause" that strictly reduces risk.

Rules:
- The rewritten "AI-Modified Clause" must always reduce High risk into Medium/Low.
- Preserve the intent of the original clause but make it safer and compliant.
- Return exactly one object per clause, in the order the clauses are given.
For each clause, return ONLY valid JSON in this format:

[
  {
    "Clause ID": 1,
    "Contract Clause": "...",
    "Regulation": "Best matching regulation(s) from: {{.Regulations}}",
    "Risk Level": "High/Medium/Low (determine strictly based on regulation compliance risk. Never use Unknown.)",
    "Risk Score": "0%-100% (strictly must always include % sign)",
    "Clause Identification": "short explanation (max 100 words)",
    "Clause Feedback & Fix": "feedback with fix (max 100 words)",
    "AI-Modified Clause": "rewritten safer clause which always reduce High risk into Medium/Low",
    "AI-Modified Risk Level": "Reassess the rewritten clause's risk. Must be either Medium or Low, never High or Unknown."
  }
]

Clauses:
{{.Clauses}}
`

// PromptBuilder renders the batch prompt. It is immutable after
// construction and safe for concurrent use.
type PromptBuilder struct {
	tmpl        *template.Template
	regulations string
}

type promptData struct {
	Regulations string
	Clauses     string
}

type promptClause struct {
	ID     int    `json:"Clause ID"`
	Clause string `json:"Contract Clause"`
}

// NewPromptBuilder parses text as a text/template. Empty text selects
// DefaultPromptTemplate.
func NewPromptBuilder(text string, regulations *clause.RegulationMatcher) (*PromptBuilder, error) {
	if strings.TrimSpace(text) == "" {
		text = DefaultPromptTemplate
	}
	if regulations == nil {
		regulations = clause.NewRegulationMatcher(nil)
	}

	tmpl, err := template.New("batch").Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt template: %w", err)
	}
	return &PromptBuilder{tmpl: tmpl, regulations: regulations.PromptList()}, nil
}

// Build renders the prompt for clauses, numbering them from startID.
// Callers pass clauses that are already validated and cleaned.
func (b *PromptBuilder) Build(clauses []string, startID int) (string, error) {
	items := make([]promptClause, len(clauses))
	for i, c := range clauses {
		items[i] = promptClause{ID: startID + i, Clause: c}
	}

	var js bytes.Buffer
	enc := json.NewEncoder(&js)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return "", fmt.Errorf("failed to encode clauses: %w", err)
	}

	var out bytes.Buffer
	data := promptData{
		Regulations: b.regulations,
		Clauses:     strings.TrimSpace(js.String()),
	}
	if err := b.tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return out.String(), nil
}
