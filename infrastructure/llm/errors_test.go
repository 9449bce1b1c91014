package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ahrav/go-covenant/internal/ports"
)

func TestErrorClassifier_ClassifyHTTPError(t *testing.T) {
	ec := &ErrorClassifier{Provider: "groq"}

	tests := []struct {
		status    int
		wantType  ErrorType
		sentinel  error
		retryable bool
	}{
		{401, ErrorTypeAuthentication, ports.ErrAuthenticationFailed, false},
		{403, ErrorTypeAuthentication, ports.ErrAuthenticationFailed, false},
		{429, ErrorTypeRateLimit, ports.ErrRateLimited, true},
		{400, ErrorTypeBadRequest, nil, false},
		{404, ErrorTypeNotFound, nil, false},
		{408, ErrorTypeTimeout, ports.ErrTimeout, true},
		{500, ErrorTypeServerError, ports.ErrServiceUnavailable, true},
		{503, ErrorTypeServerError, ports.ErrServiceUnavailable, true},
		{504, ErrorTypeTimeout, ports.ErrTimeout, true},
		{422, ErrorTypeBadRequest, nil, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := ec.ClassifyHTTPError(tt.status, "msg", errors.New("raw"))

			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.retryable, err.IsRetryable())
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
			assert.Contains(t, err.Error(), "groq error")
		})
	}
}

func TestErrorClassifier_ClassifyContextError(t *testing.T) {
	ec := &ErrorClassifier{Provider: "openai"}

	deadline := ec.ClassifyContextError(context.DeadlineExceeded)
	assert.Equal(t, ErrorTypeTimeout, deadline.Type)
	assert.ErrorIs(t, deadline, ports.ErrTimeout)
	assert.ErrorIs(t, deadline, context.DeadlineExceeded)

	canceled := ec.ClassifyContextError(context.Canceled)
	assert.Equal(t, ErrorTypeNetwork, canceled.Type)
	assert.ErrorIs(t, canceled, context.Canceled)
}

func TestProviderError_WrappedInLLMError(t *testing.T) {
	// Given a provider error wrapped the way the analyzer reports attempts
	pe := NewProviderError("groq", ErrorTypeRateLimit, 429, "slow down", nil)
	err := ports.NewLLMError("groq/qwen/qwen3-32b", "complete", 2, pe)

	// Then the ports-level classification sees through both layers
	assert.True(t, err.IsRetryable())
	assert.ErrorIs(t, err, ports.ErrRateLimited)
	assert.Equal(t, "groq error (HTTP 429) [rate_limit]: slow down", pe.Error())
}

func TestErrCircuitOpen_IsServiceUnavailable(t *testing.T) {
	assert.ErrorIs(t, ErrCircuitOpen, ports.ErrServiceUnavailable)
}
