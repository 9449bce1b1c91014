package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-covenant/internal/ports"
)

// ErrCircuitOpen is returned without contacting the provider while a
// model's breaker is open. It matches ports.ErrServiceUnavailable.
var ErrCircuitOpen = fmt.Errorf("circuit breaker is open: %w", ports.ErrServiceUnavailable)

// CircuitBreakerState is the breaker's position.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// CircuitBreaker opens after maxFailures consecutive failures and admits
// a single probe once cooldown has elapsed.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        CircuitBreakerState
	failureCount int
	maxFailures  int
	cooldown     time.Duration
	openedAt     time.Time
	probing      bool
	now          func() time.Time
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{maxFailures: maxFailures, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a request may proceed. In half-open state only
// one probe is admitted at a time.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return nil
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

// Record feeds the outcome of an admitted request back into the breaker
// and reports whether this outcome tripped it open.
func (cb *CircuitBreaker) Record(err error) (tripped bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err == nil {
		cb.failureCount = 0
		cb.state = StateClosed
		return false
	}

	cb.failureCount++
	if cb.state == StateHalfOpen || cb.failureCount >= cb.maxFailures {
		tripped = cb.state != StateOpen
		cb.state = StateOpen
		cb.openedAt = cb.now()
	}
	return tripped
}

// release abandons an admitted request without recording an outcome.
func (cb *CircuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.probing = false
}

// GetState returns the current state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

type circuitBreakerLLM struct {
	next    CoreLLM
	cb      *CircuitBreaker
	metrics ports.MetricsCollector
}

// CircuitBreakerMiddleware gives every wrapped CoreLLM its own breaker.
// Registry clients are built per model, so a failing model is isolated
// without blocking the rest of the pool.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakerMiddlewareWithMetrics(maxFailures, cooldown, nil)
}

// CircuitBreakerMiddlewareWithMetrics also publishes breaker state and
// trips to metrics, labelled by model.
func CircuitBreakerMiddlewareWithMetrics(maxFailures int, cooldown time.Duration, metrics ports.MetricsCollector) Middleware {
	return func(next CoreLLM) CoreLLM {
		return &circuitBreakerLLM{
			next:    next,
			cb:      NewCircuitBreaker(maxFailures, cooldown),
			metrics: metrics,
		}
	}
}

// DoRequest fails fast while the breaker is open. Caller cancellation is
// not counted against the model.
func (c *circuitBreakerLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if err := c.cb.Allow(); err != nil {
		c.observe(false)
		return "", 0, 0, err
	}

	response, tokensIn, tokensOut, err := c.next.DoRequest(ctx, prompt, opts)
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		c.cb.release()
		return response, tokensIn, tokensOut, err
	}

	c.observe(c.cb.Record(err))
	return response, tokensIn, tokensOut, err
}

func (c *circuitBreakerLLM) observe(tripped bool) {
	if c.metrics == nil {
		return
	}
	labels := map[string]string{"model": c.next.GetModel()}
	if tripped {
		c.metrics.RecordCounter("llm_circuit_trips_total", 1, labels)
	}
	c.metrics.RecordGauge("llm_circuit_state", float64(c.cb.GetState()), labels)
}

func (c *circuitBreakerLLM) GetModel() string  { return c.next.GetModel() }
func (c *circuitBreakerLLM) SetModel(m string) { c.next.SetModel(m) }
