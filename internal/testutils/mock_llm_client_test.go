package testutils

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-covenant/internal/domain"
)

const samplePrompt = `Analyze these.

Clauses:
[{"Clause ID":3,"Contract Clause":"The supplier shall process personal data lawfully."},{"Clause ID":4,"Contract Clause":"Either party may terminate with thirty days notice."}]`

func TestMockLLMClient_ScriptThenResponder(t *testing.T) {
	// Given a client scripted to fail once and then reply verbatim
	client := NewMockLLMClient("groq/test", Fail(), Reply(`[{"Risk Level":"High"}]`))
	ctx := context.Background()

	// When it is called three times
	_, err1 := client.Complete(ctx, samplePrompt, nil)
	resp2, err2 := client.Complete(ctx, samplePrompt, nil)
	resp3, err3 := client.Complete(ctx, samplePrompt, map[string]any{"model": "other"})

	// Then the script is consumed in order before the responder takes over
	assert.ErrorIs(t, err1, ErrScriptedFailure)
	require.NoError(t, err2)
	assert.Equal(t, `[{"Risk Level":"High"}]`, resp2)
	require.NoError(t, err3)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resp3), &got))
	require.Len(t, got, 2)
	assert.Equal(t, float64(3), got[0][domain.FieldClauseID])
	assert.Equal(t, "Low", got[1][domain.FieldRiskLevel])

	calls := client.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "groq/test", calls[0].Model)
	assert.Equal(t, "other", calls[2].Model)
}

func TestMockLLMClient_Validation(t *testing.T) {
	client := NewMockLLMClient("m")

	_, err := client.Complete(context.Background(), "", nil)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Complete(ctx, samplePrompt, nil)
	assert.ErrorIs(t, err, context.Canceled)

	n, err := client.EstimateTokens("abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestExtractPromptClauses(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   int
	}{
		{name: "embedded list", prompt: samplePrompt, want: 2},
		{name: "no marker", prompt: "nothing here", want: 0},
		{name: "broken json", prompt: "Clauses:\n[{", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, ExtractPromptClauses(tt.prompt), tt.want)
		})
	}
}

func TestMockClientSource(t *testing.T) {
	// Given a source with one failing spec
	boom := errors.New("no such model")
	src := &MockClientSource{
		Client: NewMockLLMClient("base").WithResponder(Unclassified()),
		Fail:   map[string]error{"groq/bad": boom},
	}

	// When both specs are resolved
	good, err := src.GetClient("groq/good")
	require.NoError(t, err)
	_, err = src.GetClient("groq/bad")

	// Then the failing spec errors and the good one reports its spec
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "groq/good", good.GetModel())
	assert.Equal(t, []string{"groq/good", "groq/bad"}, src.Specs())

	resp, err := good.Complete(context.Background(), samplePrompt, nil)
	require.NoError(t, err)
	assert.NotContains(t, resp, domain.FieldRiskLevel)
}
