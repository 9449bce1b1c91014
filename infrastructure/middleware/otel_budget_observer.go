package middleware

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/go-covenant/internal/ports"
)

var _ BudgetObserver = (*OTelBudgetObserver)(nil)

// Usage ratios that raise span events.
const (
	warningThreshold  = 0.8
	criticalThreshold = 0.9
)

// OTelBudgetObserver traces every budgeted request in a "llm.budget" span
// and mirrors usage into gauges. It keeps no per-request state, so one
// observer serves concurrent requests.
type OTelBudgetObserver struct {
	metrics ports.MetricsCollector
	tracer  trace.Tracer
}

// NewOTelBudgetObserver uses the global tracer provider. metrics may be nil.
func NewOTelBudgetObserver(metrics ports.MetricsCollector) *OTelBudgetObserver {
	return NewOTelBudgetObserverWithProvider(metrics, otel.GetTracerProvider())
}

// NewOTelBudgetObserverWithProvider uses tp for spans.
func NewOTelBudgetObserverWithProvider(metrics ports.MetricsCollector, tp trace.TracerProvider) *OTelBudgetObserver {
	return &OTelBudgetObserver{
		metrics: metrics,
		tracer:  tp.Tracer("github.com/ahrav/go-covenant/infrastructure/middleware"),
	}
}

// PreCheck starts the span and flags usage nearing a limit.
func (o *OTelBudgetObserver) PreCheck(ctx context.Context, usage Usage, budget Budget) context.Context {
	ctx, span := o.tracer.Start(ctx, "llm.budget")
	addSpanAttributes(span, usage, budget)
	thresholdEvent(span, "tokens", usage.Tokens, budget.MaxTokens)
	thresholdEvent(span, "calls", usage.Calls, budget.MaxCalls)
	return ctx
}

// PostCheck records the outcome and ends the span started by PreCheck.
func (o *OTelBudgetObserver) PostCheck(ctx context.Context, usage Usage, budget Budget, elapsed time.Duration, err error) {
	span := trace.SpanFromContext(ctx)
	defer span.End()

	addSpanAttributes(span, usage, budget)

	var budgetErr *BudgetExceededError
	switch {
	case errors.As(err, &budgetErr):
		span.AddEvent("budget.exceeded", trace.WithAttributes(
			attribute.String("limit_type", budgetErr.LimitType),
			attribute.Int64("limit_value", budgetErr.Limit),
			attribute.Int64("used_value", budgetErr.Used),
		))
		span.SetStatus(codes.Error, "budget limit exceeded")
		if o.metrics != nil {
			o.metrics.RecordCounter("budget_exceeded_total", 1, map[string]string{"limit_type": budgetErr.LimitType})
		}
		return
	case err != nil:
		span.SetStatus(codes.Error, err.Error())
	default:
		span.SetStatus(codes.Ok, "")
	}

	if o.metrics != nil {
		o.metrics.RecordLatency("budgeted_request", elapsed, nil)
		o.metrics.RecordGauge("budget_tokens_used", float64(usage.Tokens), nil)
		o.metrics.RecordGauge("budget_calls_used", float64(usage.Calls), nil)
		if budget.MaxTokens > 0 {
			o.metrics.RecordGauge("budget_remaining_tokens", float64(budget.MaxTokens-usage.Tokens), nil)
		}
		if budget.MaxCalls > 0 {
			o.metrics.RecordGauge("budget_remaining_calls", float64(budget.MaxCalls-usage.Calls), nil)
		}
	}
}

func addSpanAttributes(span trace.Span, usage Usage, budget Budget) {
	span.SetAttributes(
		attribute.Int64("budget.tokens_used", usage.Tokens),
		attribute.Int64("budget.calls_made", usage.Calls),
	)
	if budget.MaxTokens > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_tokens", budget.MaxTokens),
			attribute.Int64("budget.remaining_tokens", budget.MaxTokens-usage.Tokens),
		)
	}
	if budget.MaxCalls > 0 {
		span.SetAttributes(
			attribute.Int64("budget.max_calls", budget.MaxCalls),
			attribute.Int64("budget.remaining_calls", budget.MaxCalls-usage.Calls),
		)
	}
}

func thresholdEvent(span trace.Span, resource string, used, limit int64) {
	if limit <= 0 {
		return
	}
	ratio := float64(used) / float64(limit)
	var name string
	switch {
	case ratio >= criticalThreshold:
		name = "budget.threshold.critical"
	case ratio >= warningThreshold:
		name = "budget.threshold.warning"
	default:
		return
	}
	span.AddEvent(name, trace.WithAttributes(
		attribute.String("resource_type", resource),
		attribute.Float64("usage_percentage", ratio*100),
	))
}
