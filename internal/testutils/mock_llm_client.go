// Package testutils provides scripted LLM clients for exercising the clause
// risk pipeline without network access.
package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ahrav/go-covenant/internal/domain"
	"github.com/ahrav/go-covenant/internal/ports"
)

// ErrScriptedFailure is the error returned by failing mock calls unless a
// step supplies its own.
var ErrScriptedFailure = errors.New("scripted failure")

// clausesMarker precedes the JSON clause list in batch prompts.
const clausesMarker = "Clauses:"

// MockCall records one Complete invocation.
type MockCall struct {
	Model   string
	Prompt  string
	Options map[string]any
}

// MockStep is one scripted reply. A step with Err set fails the call;
// otherwise Response is returned, or, when Response is empty, a reply is
// generated by Responder.
type MockStep struct {
	Response string
	Err      error
}

// Responder builds a reply from the clauses embedded in a batch prompt.
type Responder func(clauses []PromptClause) string

// PromptClause is one entry of the clause list embedded in a prompt.
type PromptClause struct {
	ID     int    `json:"Clause ID"`
	Clause string `json:"Contract Clause"`
}

// MockLLMClient implements ports.LLMClient with scripted replies. Steps
// are consumed in order; once they run out every call is answered by the
// responder. It is safe for concurrent use.
type MockLLMClient struct {
	mu        sync.Mutex
	model     string
	steps     []MockStep
	responder Responder
	calls     []MockCall
}

// NewMockLLMClient returns a client for model that classifies every clause
// as Low risk under GDPR unless scripted otherwise.
func NewMockLLMClient(model string, steps ...MockStep) *MockLLMClient {
	return &MockLLMClient{
		model:     model,
		steps:     steps,
		responder: Classify(domain.RiskLow, "GDPR"),
	}
}

// WithResponder replaces the reply used once the script is exhausted.
func (m *MockLLMClient) WithResponder(r Responder) *MockLLMClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responder = r
	return m
}

// Complete implements ports.LLMClient.
func (m *MockLLMClient) Complete(ctx context.Context, prompt string, options map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	m.mu.Lock()
	model := m.model
	if v, ok := options["model"].(string); ok && v != "" {
		model = v
	}
	m.calls = append(m.calls, MockCall{Model: model, Prompt: prompt, Options: options})

	var step MockStep
	if len(m.steps) > 0 {
		step = m.steps[0]
		m.steps = m.steps[1:]
	}
	responder := m.responder
	m.mu.Unlock()

	if step.Err != nil {
		return "", step.Err
	}
	if step.Response != "" {
		return step.Response, nil
	}
	if responder == nil {
		return "[]", nil
	}
	return responder(ExtractPromptClauses(prompt)), nil
}

// EstimateTokens implements ports.LLMClient at roughly four characters per
// token.
func (m *MockLLMClient) EstimateTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	return max(len(text)/4, 1), nil
}

// GetModel implements ports.LLMClient.
func (m *MockLLMClient) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.model
}

// Calls returns a copy of the recorded calls.
func (m *MockLLMClient) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Complete calls.
func (m *MockLLMClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Fail returns a step that fails with ErrScriptedFailure.
func Fail() MockStep { return MockStep{Err: ErrScriptedFailure} }

// Reply returns a step answering with response.
func Reply(response string) MockStep { return MockStep{Response: response} }

// ExtractPromptClauses decodes the clause list that follows the "Clauses:"
// marker in a batch prompt. It returns nil when the prompt has none.
func ExtractPromptClauses(prompt string) []PromptClause {
	i := strings.LastIndex(prompt, clausesMarker)
	if i < 0 {
		return nil
	}
	var out []PromptClause
	if err := json.Unmarshal([]byte(strings.TrimSpace(prompt[i+len(clausesMarker):])), &out); err != nil {
		return nil
	}
	return out
}

// Classify answers every clause with the same level and regulation and a
// rewrite marked Low.
func Classify(level domain.RiskLevel, regulation string) Responder {
	return func(clauses []PromptClause) string {
		out := make([]map[string]any, len(clauses))
		for i, c := range clauses {
			out[i] = map[string]any{
				domain.FieldClauseID:             c.ID,
				domain.FieldContractClause:       c.Clause,
				domain.FieldRegulation:           regulation,
				domain.FieldRiskLevel:            string(level),
				domain.FieldRiskScore:            "42%",
				domain.FieldClauseIdentification: "Scripted identification.",
				domain.FieldClauseFeedbackFix:    "Scripted feedback.",
				domain.FieldAIModifiedClause:     "Scripted rewrite of clause " + fmt.Sprint(c.ID) + ".",
				domain.FieldAIModifiedRiskLevel:  string(domain.RiskLow),
			}
		}
		b, _ := json.Marshal(out)
		return string(b)
	}
}

// Unclassified answers every clause without a risk level or regulation.
func Unclassified() Responder {
	return func(clauses []PromptClause) string {
		out := make([]map[string]any, len(clauses))
		for i, c := range clauses {
			out[i] = map[string]any{domain.FieldClauseID: c.ID}
		}
		b, _ := json.Marshal(out)
		return string(b)
	}
}

// MockClientSource resolves every spec to the same client, recording the
// specs requested. Specs listed in Fail are answered with an error.
type MockClientSource struct {
	Client *MockLLMClient
	Fail   map[string]error

	mu    sync.Mutex
	specs []string
}

// GetClient returns Client or the error registered for spec.
func (s *MockClientSource) GetClient(spec string) (ports.LLMClient, error) {
	s.mu.Lock()
	s.specs = append(s.specs, spec)
	s.mu.Unlock()

	if err, ok := s.Fail[spec]; ok {
		return nil, err
	}
	return &boundClient{MockLLMClient: s.Client, model: spec}, nil
}

// Specs returns the specs requested so far, in order.
func (s *MockClientSource) Specs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.specs))
	copy(out, s.specs)
	return out
}

// boundClient reports spec as its model so calls are attributed to it.
type boundClient struct {
	*MockLLMClient
	model string
}

func (b *boundClient) GetModel() string { return b.model }

var (
	_ ports.LLMClient = (*MockLLMClient)(nil)
	_ ports.LLMClient = (*boundClient)(nil)
)
