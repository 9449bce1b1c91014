package llm

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/ahrav/go-covenant/internal/ports"
)

// Request parameter bounds shared by all providers.
const (
	DefaultMaxTokens = 2000

	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinTopP        = 0.0
	MaxTopP        = 1.0

	MinTimeout = 1 * time.Second
	MaxTimeout = 10 * time.Minute
)

// BaseProvider holds the mutable model name shared by every provider.
type BaseProvider struct {
	mu    sync.RWMutex
	model string
}

// GetModel is safe for concurrent use.
func (b *BaseProvider) GetModel() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model
}

// SetModel is safe for concurrent use.
func (b *BaseProvider) SetModel(model string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.model = model
}

// RequestOptions is the provider-neutral view of a request option map.
type RequestOptions struct {
	MaxTokens int
	Model     string
	// Temperature is nil when the caller left it to the provider.
	Temperature *float64
	TopP        *float64
	System      string
	// Extra carries options no standard field claims.
	Extra map[string]any
}

// ParseRequestOptions reads the standard keys "model", "system",
// "temperature", "top_p" and "max_tokens" from opts. Missing or invalid
// values fall back to defaults.
func ParseRequestOptions(opts map[string]any, defaultModel string) RequestOptions {
	options := RequestOptions{
		MaxTokens: extractInt(opts, "max_tokens", DefaultMaxTokens, isPositive),
		Model:     extractString(opts, "model", defaultModel, isNonEmpty),
		System:    extractString(opts, "system", "", nil),
		Extra:     make(map[string]any),
	}

	if temp, ok := extractFloat(opts, "temperature", isValidTemperature); ok {
		options.Temperature = &temp
	}
	if topP, ok := extractFloat(opts, "top_p", isValidTopP); ok {
		options.TopP = &topP
	}

	for k, v := range opts {
		switch k {
		case "max_tokens", "model", "system", "temperature", "top_p", ports.OptionNoCache:
		default:
			options.Extra[k] = v
		}
	}
	return options
}

func extractInt(opts map[string]any, key string, def int, valid func(int) bool) int {
	v, ok := opts[key]
	if !ok {
		return def
	}
	n, ok := SafeInt(v)
	if !ok || (valid != nil && !valid(n)) {
		return def
	}
	return n
}

func extractString(opts map[string]any, key, def string, valid func(string) bool) string {
	s, ok := opts[key].(string)
	if !ok || (valid != nil && !valid(s)) {
		return def
	}
	return s
}

// extractFloat accepts float64, float32 and int values.
func extractFloat(opts map[string]any, key string, valid func(float64) bool) (float64, bool) {
	var f float64
	switch v := opts[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	default:
		return 0, false
	}
	if valid != nil && !valid(f) {
		return 0, false
	}
	return f, true
}

func isPositive(n int) bool { return n > 0 }

func isNonEmpty(s string) bool { return s != "" }

func isValidTemperature(v float64) bool { return v >= MinTemperature && v <= MaxTemperature }

func isValidTopP(v float64) bool { return v >= MinTopP && v <= MaxTopP }

// ValidateBaseURL checks that baseURL is an absolute http(s) URL. An empty
// string is valid and selects the provider default.
func ValidateBaseURL(baseURL string) (string, error) {
	if baseURL == "" {
		return "", nil
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("URL scheme must be http or https, but got: %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL must include a host")
	}
	return u.String(), nil
}

// ValidateTimeout clamps timeout into [MinTimeout, MaxTimeout]. Zero or
// negative values return zero, meaning "no client-level timeout".
func ValidateTimeout(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return 0
	}
	return min(max(timeout, MinTimeout), MaxTimeout)
}

// SafeInt converts numeric option values to int.
func SafeInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		if int64(int(v)) != v {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != v || v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	default:
		return 0, false
	}
}

// ClampFloat64 restricts val to [lo, hi].
func ClampFloat64(val, lo, hi float64) float64 {
	return min(max(val, lo), hi)
}
