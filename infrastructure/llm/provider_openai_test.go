package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-covenant/internal/ports"
)

type capturedChatRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newChatServer(t *testing.T, status int, body string, captured *capturedChatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if captured != nil {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okChatBody = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "model": "llama-3.3-70b-versatile",
  "choices": [{"index": 0, "message": {"role": "assistant", "content": "[{\"Risk Level\":\"High\"}]"}, "finish_reason": "stop"}],
  "usage": {"prompt_tokens": 120, "completion_tokens": 30, "total_tokens": 150}
}`

func TestOpenAICompatibleProvider_DoRequest(t *testing.T) {
	// Given a Groq-style endpoint
	var captured capturedChatRequest
	srv := newChatServer(t, http.StatusOK, okChatBody, &captured)
	factory := openAICompatibleFactory("groq", srv.URL+"/v1")
	core, err := factory(ClientConfig{APIKey: "test-key", Model: "llama-3.3-70b-versatile"})
	require.NoError(t, err)

	// When a request carries the analyzer's options
	resp, in, out, err := core.DoRequest(context.Background(), "analyze these clauses", map[string]any{
		"model":       "qwen/qwen3-32b",
		"system":      "You are a contract compliance analyst.",
		"temperature": 0.0,
		"max_tokens":  2000,
	})

	// Then the wire request and the parsed response line up
	require.NoError(t, err)
	assert.Equal(t, `[{"Risk Level":"High"}]`, resp)
	assert.Equal(t, 120, in)
	assert.Equal(t, 30, out)

	assert.Equal(t, "qwen/qwen3-32b", captured.Model)
	assert.Equal(t, 2000, captured.MaxTokens)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "You are a contract compliance analyst.", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, "analyze these clauses", captured.Messages[1].Content)
}

func TestOpenAICompatibleProvider_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		errType  ErrorType
	}{
		{"rate limited", http.StatusTooManyRequests,
			`{"error":{"message":"Rate limit reached","type":"tokens"}}`, ports.ErrRateLimited, ErrorTypeRateLimit},
		{"unauthorized", http.StatusUnauthorized,
			`{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`, ports.ErrAuthenticationFailed, ErrorTypeAuthentication},
		{"server error", http.StatusServiceUnavailable,
			`{"error":{"message":"over capacity","type":"server_error"}}`, ports.ErrServiceUnavailable, ErrorTypeServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newChatServer(t, tt.status, tt.body, nil)
			core, err := openAICompatibleFactory("groq", srv.URL+"/v1")(ClientConfig{APIKey: "test-key", Model: "m"})
			require.NoError(t, err)

			_, _, _, err = core.DoRequest(context.Background(), "p", nil)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.sentinel)
			var pe *ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.errType, pe.Type)
			assert.Equal(t, "groq", pe.Provider)
		})
	}
}

func TestOpenAICompatibleProvider_NoChoices(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, `{"id":"x","choices":[],"usage":{}}`, nil)
	core, err := openAICompatibleFactory("openai", srv.URL+"/v1")(ClientConfig{APIKey: "test-key", Model: "m"})
	require.NoError(t, err)

	_, _, _, err = core.DoRequest(context.Background(), "p", nil)

	assert.ErrorIs(t, err, ErrNoResponseChoice)
}

func TestOpenAICompatibleProvider_ContextDeadline(t *testing.T) {
	srv := newChatServer(t, http.StatusOK, okChatBody, nil)
	core, err := openAICompatibleFactory("groq", srv.URL+"/v1")(ClientConfig{APIKey: "test-key", Model: "m"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, _, err = core.DoRequest(ctx, "p", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
