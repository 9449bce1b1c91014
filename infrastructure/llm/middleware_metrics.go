package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ahrav/go-covenant/internal/ports"
)

type metricsLLM struct {
	next      CoreLLM
	collector ports.MetricsCollector
}

// MetricsMiddleware records latency, request counts and token usage for
// every request, labelled by provider family, model and status.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		if collector == nil {
			return next
		}
		return &metricsLLM{next: next, collector: collector}
	}
}

// DoRequest implements CoreLLM.
func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	start := time.Now()
	response, tokensIn, tokensOut, err := m.next.DoRequest(ctx, prompt, opts)

	model := ParseRequestOptions(opts, m.next.GetModel()).Model
	labels := map[string]string{
		"provider": providerFamily(model),
		"model":    model,
		"status":   requestStatus(ctx, err),
	}

	m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)

	if err == nil {
		in := copyLabels(labels)
		in["token_type"] = "input"
		m.collector.RecordCounter("llm_tokens_total", float64(tokensIn), in)

		out := copyLabels(labels)
		out["token_type"] = "output"
		m.collector.RecordCounter("llm_tokens_total", float64(tokensOut), out)
	}

	return response, tokensIn, tokensOut, err
}

func requestStatus(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ports.ErrTimeout), ctx.Err() != nil:
		return "timeout"
	case errors.Is(err, ports.ErrRateLimited):
		return "rate_limited"
	default:
		return "error"
	}
}

// providerFamily guesses the vendor family from a model name. It only
// feeds metric labels.
func providerFamily(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return "openai"
	case strings.Contains(m, "claude"):
		return "anthropic"
	case strings.Contains(m, "gemini"):
		return "google"
	case strings.Contains(m, "llama"), strings.Contains(m, "mixtral"), strings.Contains(m, "gemma"),
		strings.Contains(m, "qwen"), strings.Contains(m, "deepseek"), strings.Contains(m, "mistral"),
		strings.Contains(m, "compound"), strings.Contains(m, "allam"):
		return "groq"
	default:
		return "unknown"
	}
}

func copyLabels(in map[string]string) map[string]string {
	out := make(map[string]string, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *metricsLLM) GetModel() string      { return m.next.GetModel() }
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
