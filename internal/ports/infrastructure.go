// Package ports declares the interfaces the clause risk pipeline consumes
// and produces. Concrete adapters live under infrastructure/.
package ports

import (
	"context"
	"time"
)

// OptionNoCache is the request option that makes a caching layer answer
// from the model and refresh its entry instead of replaying a stored
// completion.
const OptionNoCache = "no_cache"

// LLMClient defines the interface for interacting with Large Language
// Model providers.
// Implementations handle provider-specific details like authentication,
// request formatting, and response parsing.
type LLMClient interface {
	// Complete sends one chat-completion request and returns the raw text.
	//
	// Recognized options:
	//   - "model": string, overrides the client's default model
	//   - "system": string, the system prompt
	//   - "temperature": float64
	//   - "max_tokens": int
	//   - OptionNoCache: bool, skip cached completions for this request
	//
	// The per-call timeout is carried by ctx.
	Complete(ctx context.Context, prompt string, options map[string]any) (string, error)

	// EstimateTokens calculates the approximate token count for a given text.
	EstimateTokens(text string) (int, error)

	// GetModel returns the default model identifier used by this client.
	GetModel() string
}

// CacheStore defines the interface for caching completion results.
type CacheStore interface {
	// Get retrieves a cached value by key.
	// Returns the value and true if found, or nil and false if not found.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set stores a value in the cache with an expiration time.
	// A zero duration means the store's default expiry applies.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error

	// Delete removes a value from the cache.
	// Returns nil if the key doesn't exist.
	Delete(ctx context.Context, key string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations integrate with observability platforms like Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}

// DocumentChunker produces raw candidate clause chunks from a source
// document. Order is significant: it becomes the initial ClauseID order.
type DocumentChunker interface {
	ExtractClauses(ctx context.Context, documentPath string) ([]string, error)
}

// TabularStore is a spreadsheet-shaped sink for analysis results.
// UpsertRows receives the canonical header row and one row per record.
type TabularStore interface {
	UpsertRows(ctx context.Context, header []string, rows [][]string) error
}

// ReportStore publishes a rendered report and returns a link to it.
type ReportStore interface {
	Publish(ctx context.Context, runID, name string, content []byte, contentType string) (string, error)
}

// Alert is the payload handed to an AlertNotifier.
type Alert struct {
	Subject             string
	Recipient           string
	ContractName        string
	ContractDescription string
	Total               int
	High                int
	Medium              int
	Low                 int
	ReportLink          string
	// Attachments are local file paths attached to the message.
	Attachments []string
}

// AlertNotifier delivers a compliance alert.
type AlertNotifier interface {
	Send(ctx context.Context, alert Alert) error
}
