package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-covenant/internal/clause"
	"github.com/ahrav/go-covenant/internal/domain"
	"github.com/ahrav/go-covenant/internal/ports"
)

const tracerName = "github.com/ahrav/go-covenant/internal/analysis"

// Batch analysis defaults.
const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 30 * time.Second
	DefaultBackoff    = 2 * time.Second
	DefaultMaxTokens  = 2000
)

// emptyResponse is parsed when every attempt failed.
const emptyResponse = "[]"

// Construction errors.
var (
	ErrNilClientSource = errors.New("client source cannot be nil")
	ErrNilAnalyzer     = errors.New("analyzer cannot be nil")
)

// ClientSource resolves a model spec from the pool into a client whose
// default model is that spec's model.
type ClientSource interface {
	GetClient(spec string) (ports.LLMClient, error)
}

// ClientSourceFunc adapts a function to ClientSource.
type ClientSourceFunc func(spec string) (ports.LLMClient, error)

// GetClient implements ClientSource.
func (f ClientSourceFunc) GetClient(spec string) (ports.LLMClient, error) { return f(spec) }

// Outcome is the terminal state of a batch.
type Outcome int

const (
	// OutcomeSucceeded means a model answered and its text was parsed.
	OutcomeSucceeded Outcome = iota
	// OutcomeFallback means every attempt failed and defaults were used.
	OutcomeFallback
	// OutcomeEmpty means no clause in the batch passed validation and no
	// model was called.
	OutcomeEmpty
)

// String returns a label suitable for logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFallback:
		return "fallback"
	case OutcomeEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// BatchResult reports what happened to one batch.
type BatchResult struct {
	Records []domain.ClauseRecord
	Outcome Outcome
	// Model is the spec that produced the parsed text, empty on fallback.
	Model string
	// Attempts counts model requests issued.
	Attempts int
	// Errors holds one *ports.LLMError per failed attempt.
	Errors []error
}

// BatchAnalyzer sends one batch of clauses to the model pool. Each batch
// makes at most MaxRetries attempts, each against the next model from the
// shared rotator, and always returns one record per valid clause. Within a
// batch, consecutive attempts never use the same model unless the pool
// offers no other.
//
// BatchAnalyzer is safe for concurrent use as long as its ClientSource is.
type BatchAnalyzer struct {
	source      ClientSource
	rotator     *ModelRotator
	parser      *ResponseParser
	prompts     *PromptBuilder
	maxRetries  int
	timeout     time.Duration
	backoff     time.Duration
	maxTokens   int
	temperature float64
	sleep       func(context.Context, time.Duration) error
	logger      *slog.Logger
	tracer      trace.Tracer
	metrics     ports.MetricsCollector
}

// AnalyzerOption configures a BatchAnalyzer.
type AnalyzerOption func(*BatchAnalyzer)

// WithMaxRetries bounds the attempts per batch. Values below one are
// ignored.
func WithMaxRetries(n int) AnalyzerOption {
	return func(a *BatchAnalyzer) {
		if n > 0 {
			a.maxRetries = n
		}
	}
}

// WithTimeout sets the hard deadline of a single model request.
func WithTimeout(d time.Duration) AnalyzerOption {
	return func(a *BatchAnalyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithBackoff sets the pause between failed attempts. Zero disables it.
func WithBackoff(d time.Duration) AnalyzerOption {
	return func(a *BatchAnalyzer) {
		if d >= 0 {
			a.backoff = d
		}
	}
}

// WithSleep replaces the function used to wait out the backoff.
func WithSleep(fn func(context.Context, time.Duration) error) AnalyzerOption {
	return func(a *BatchAnalyzer) {
		if fn != nil {
			a.sleep = fn
		}
	}
}

// WithMaxTokens sets the completion token ceiling.
func WithMaxTokens(n int) AnalyzerOption {
	return func(a *BatchAnalyzer) {
		if n > 0 {
			a.maxTokens = n
		}
	}
}

// WithTemperature sets the sampling temperature. The default is 0.
func WithTemperature(t float64) AnalyzerOption {
	return func(a *BatchAnalyzer) { a.temperature = t }
}

// WithParser replaces the default response parser.
func WithParser(p *ResponseParser) AnalyzerOption {
	return func(a *BatchAnalyzer) {
		if p != nil {
			a.parser = p
		}
	}
}

// WithPromptBuilder replaces the default prompt.
func WithPromptBuilder(b *PromptBuilder) AnalyzerOption {
	return func(a *BatchAnalyzer) {
		if b != nil {
			a.prompts = b
		}
	}
}

// WithLogger sets the logger. Nil keeps the discard logger.
func WithLogger(l *slog.Logger) AnalyzerOption {
	return func(a *BatchAnalyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracerProvider sets the provider used for batch spans.
func WithTracerProvider(tp trace.TracerProvider) AnalyzerOption {
	return func(a *BatchAnalyzer) {
		if tp != nil {
			a.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m ports.MetricsCollector) AnalyzerOption {
	return func(a *BatchAnalyzer) { a.metrics = m }
}

// NewBatchAnalyzer returns an analyzer that draws models from rotator and
// resolves them through source.
func NewBatchAnalyzer(source ClientSource, rotator *ModelRotator, opts ...AnalyzerOption) (*BatchAnalyzer, error) {
	if source == nil {
		return nil, ErrNilClientSource
	}
	if rotator == nil {
		return nil, domain.ErrEmptyModelPool
	}

	a := &BatchAnalyzer{
		source:     source,
		rotator:    rotator,
		maxRetries: DefaultMaxRetries,
		timeout:    DefaultTimeout,
		backoff:    DefaultBackoff,
		maxTokens:  DefaultMaxTokens,
		sleep:      sleepContext,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer:     otel.GetTracerProvider().Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.parser == nil {
		a.parser = NewResponseParser(nil)
	}
	if a.prompts == nil {
		b, err := NewPromptBuilder("", a.parser.Regulations())
		if err != nil {
			return nil, err
		}
		a.prompts = b
	}
	return a, nil
}

// Analyze returns one record per valid clause. It never fails: exhausting
// every attempt yields records carrying default values.
func (a *BatchAnalyzer) Analyze(ctx context.Context, clauses []string, startID int) []domain.ClauseRecord {
	return a.AnalyzeBatch(ctx, clauses, startID).Records
}

// AnalyzeBatch is Analyze with the attempt history attached.
//
// Clauses are validated and cleaned first, so IDs are assigned over the
// surviving clauses: the k-th valid clause gets startID+k.
func (a *BatchAnalyzer) AnalyzeBatch(ctx context.Context, clauses []string, startID int) *BatchResult {
	start := time.Now()
	valid := clause.FilterValid(clauses)

	ctx, span := a.tracer.Start(ctx, "analysis.batch", trace.WithAttributes(
		attribute.Int("batch.start_id", startID),
		attribute.Int("batch.clauses", len(clauses)),
		attribute.Int("batch.valid_clauses", len(valid)),
	))
	defer span.End()

	result := a.run(ctx, span, valid, startID)

	span.SetAttributes(
		attribute.String("batch.outcome", result.Outcome.String()),
		attribute.Int("batch.attempts", result.Attempts),
		attribute.Int("batch.records", len(result.Records)),
	)
	if result.Outcome == OutcomeFallback {
		span.SetStatus(codes.Error, "all attempts failed")
	}
	a.observe(result, time.Since(start))
	return result
}

func (a *BatchAnalyzer) run(ctx context.Context, span trace.Span, valid []string, startID int) *BatchResult {
	if len(valid) == 0 {
		return &BatchResult{Outcome: OutcomeEmpty}
	}

	prompt, err := a.prompts.Build(valid, startID)
	if err != nil {
		// Without a prompt no request can be made; degrade like an
		// exhausted batch.
		a.logger.ErrorContext(ctx, "failed to build prompt", "start_id", startID, "error", err)
		return &BatchResult{
			Records: a.parser.Parse(emptyResponse, valid, startID),
			Outcome: OutcomeFallback,
			Errors:  []error{err},
		}
	}

	m := newAttemptMachine(a.maxRetries)
	var model string
	for m.state == stateAttempting {
		model = a.rotator.NextAfter(model)
		raw, err := a.attempt(ctx, model, prompt)
		m.record(model, raw, err)
		a.countAttempt(model, err)

		if err != nil {
			lerr := ports.NewLLMError(model, "analyze_batch", m.attempt, err)
			m.errs = append(m.errs, lerr)
			span.AddEvent("attempt_failed", trace.WithAttributes(
				attribute.Int("attempt", m.attempt),
				attribute.String("model", model),
			))
			a.logger.WarnContext(ctx, "model attempt failed",
				"attempt", m.attempt,
				"model", model,
				"start_id", startID,
				"error", err,
			)
			if m.state == stateAttempting {
				if err := a.sleep(ctx, a.backoff); err != nil {
					m.abandon()
				}
			}
		}
	}

	result := &BatchResult{Attempts: m.attempt, Errors: m.errs}
	switch m.state {
	case stateSucceeded:
		result.Outcome = OutcomeSucceeded
		result.Model = m.model
		result.Records = a.parser.Parse(m.raw, valid, startID)
	default:
		a.logger.WarnContext(ctx, "all attempts failed, using fallback",
			"start_id", startID,
			"attempts", m.attempt,
			"clauses", len(valid),
		)
		result.Outcome = OutcomeFallback
		result.Records = a.parser.Parse(emptyResponse, valid, startID)
	}
	return result
}

// attempt issues one request against model under the per-call deadline.
func (a *BatchAnalyzer) attempt(ctx context.Context, spec, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client, err := a.source.GetClient(spec)
	if err != nil {
		return "", fmt.Errorf("resolve model %q: %w", spec, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	opts := map[string]any{
		"model":       client.GetModel(),
		"system":      SystemPrompt,
		"temperature": a.temperature,
		"max_tokens":  a.maxTokens,
	}
	if freshCompletions(ctx) {
		opts[ports.OptionNoCache] = true
	}
	return client.Complete(callCtx, prompt, opts)
}

func (a *BatchAnalyzer) observe(r *BatchResult, elapsed time.Duration) {
	if a.metrics == nil {
		return
	}

	outcome := map[string]string{"outcome": r.Outcome.String()}
	a.metrics.RecordCounter("covenant_batches_total", 1, outcome)
	a.metrics.RecordLatency("batch", elapsed, outcome)
	if r.Outcome == OutcomeFallback {
		a.metrics.RecordCounter("covenant_fallbacks_total", 1, nil)
	}
	for _, rec := range r.Records {
		a.metrics.RecordCounter("covenant_records_total", 1, map[string]string{
			"risk_level": rec.RiskLevel.String(),
		})
	}
}

func (a *BatchAnalyzer) countAttempt(model string, err error) {
	if a.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	a.metrics.RecordCounter("covenant_model_attempts_total", 1, map[string]string{
		"model":  model,
		"status": status,
	})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
