package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ahrav/go-covenant/infrastructure/llm"
)

// ErrBudgetExceeded matches every *BudgetExceededError.
var ErrBudgetExceeded = errors.New("llm budget exceeded")

// Budget caps the model usage of one pipeline run. Zero means unlimited.
type Budget struct {
	MaxTokens int64
	MaxCalls  int64
}

// Usage is the consumption recorded so far.
type Usage struct {
	Tokens int64
	Calls  int64
}

// BudgetExceededError reports which limit refused a request.
type BudgetExceededError struct {
	LimitType string
	Limit     int64
	Used      int64
}

// Error implements the error interface.
func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("llm budget exceeded: %s limit %d, used %d", e.LimitType, e.Limit, e.Used)
}

// Is matches ErrBudgetExceeded.
func (e *BudgetExceededError) Is(target error) bool { return target == ErrBudgetExceeded }

// BudgetObserver receives hooks around every budgeted request.
type BudgetObserver interface {
	// PreCheck runs before the request is admitted and may return a
	// derived context, e.g. one carrying a span.
	PreCheck(ctx context.Context, usage Usage, budget Budget) context.Context

	// PostCheck runs after the request with the updated usage.
	PostCheck(ctx context.Context, usage Usage, budget Budget, elapsed time.Duration, err error)
}

// BudgetManager enforces one Budget across every client that carries its
// middleware. A refused request returns a *BudgetExceededError, which the
// batch analyzer treats like any other failed attempt.
type BudgetManager struct {
	budget   Budget
	observer BudgetObserver

	mu    sync.Mutex
	usage Usage
}

// NewBudgetManager validates budget and returns a manager with zero usage.
func NewBudgetManager(budget Budget, observer BudgetObserver) (*BudgetManager, error) {
	if budget.MaxTokens < 0 {
		return nil, fmt.Errorf("budget manager: max_tokens cannot be negative, got %d", budget.MaxTokens)
	}
	if budget.MaxCalls < 0 {
		return nil, fmt.Errorf("budget manager: max_calls cannot be negative, got %d", budget.MaxCalls)
	}
	return &BudgetManager{budget: budget, observer: observer}, nil
}

// Usage returns a snapshot of the consumption so far.
func (bm *BudgetManager) Usage() Usage {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	return bm.usage
}

// Middleware returns an llm.Middleware bound to this manager. Every client
// wrapped with it draws from the same budget.
func (bm *BudgetManager) Middleware() llm.Middleware {
	return func(next llm.CoreLLM) llm.CoreLLM {
		return &budgetedLLM{next: next, bm: bm}
	}
}

// reserve admits one call if the limits allow it and counts it.
func (bm *BudgetManager) reserve() (Usage, error) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	if err := bm.check(bm.usage); err != nil {
		return bm.usage, err
	}
	bm.usage.Calls++
	return bm.usage, nil
}

func (bm *BudgetManager) addTokens(n int) Usage {
	bm.mu.Lock()
	defer bm.mu.Unlock()
	bm.usage.Tokens += int64(n)
	return bm.usage
}

// check refuses a new call once a limit has been reached.
func (bm *BudgetManager) check(u Usage) error {
	if bm.budget.MaxCalls > 0 && u.Calls >= bm.budget.MaxCalls {
		return &BudgetExceededError{LimitType: "calls", Limit: bm.budget.MaxCalls, Used: u.Calls}
	}
	if bm.budget.MaxTokens > 0 && u.Tokens >= bm.budget.MaxTokens {
		return &BudgetExceededError{LimitType: "tokens", Limit: bm.budget.MaxTokens, Used: u.Tokens}
	}
	return nil
}

type budgetedLLM struct {
	next llm.CoreLLM
	bm   *BudgetManager
}

// DoRequest implements llm.CoreLLM.
func (b *budgetedLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (string, int, int, error) {
	if b.bm.observer != nil {
		ctx = b.bm.observer.PreCheck(ctx, b.bm.Usage(), b.bm.budget)
	}

	start := time.Now()
	usage, err := b.bm.reserve()
	if err != nil {
		if b.bm.observer != nil {
			b.bm.observer.PostCheck(ctx, usage, b.bm.budget, time.Since(start), err)
		}
		return "", 0, 0, err
	}

	response, tokensIn, tokensOut, err := b.next.DoRequest(ctx, prompt, opts)
	usage = b.bm.addTokens(tokensIn + tokensOut)

	if b.bm.observer != nil {
		b.bm.observer.PostCheck(ctx, usage, b.bm.budget, time.Since(start), err)
	}
	return response, tokensIn, tokensOut, err
}

func (b *budgetedLLM) GetModel() string  { return b.next.GetModel() }
func (b *budgetedLLM) SetModel(m string) { b.next.SetModel(m) }
