package analysis

import (
	"context"
	"io"
	"log/slog"
	"slices"

	"github.com/ahrav/go-covenant/internal/domain"
	"github.com/ahrav/go-covenant/internal/ports"
)

// DefaultReconcileRetries is the number of retry rounds per batch.
const DefaultReconcileRetries = 1

// Analyzer is the batch analysis step the reconciler and driver depend
// on. *BatchAnalyzer implements it.
type Analyzer interface {
	Analyze(ctx context.Context, clauses []string, startID int) []domain.ClauseRecord
}

var _ Analyzer = (*BatchAnalyzer)(nil)

type freshKey struct{}

// withFreshCompletions marks ctx so that model requests issued under it
// bypass cached completions. The retry round resends a prompt identical
// to the one that produced the failed records.
func withFreshCompletions(ctx context.Context) context.Context {
	return context.WithValue(ctx, freshKey{}, true)
}

func freshCompletions(ctx context.Context) bool {
	v, _ := ctx.Value(freshKey{}).(bool)
	return v
}

// FailureReconciler gives records whose risk level or regulation is still
// Unknown one more pass through the analyzer.
type FailureReconciler struct {
	analyzer Analyzer
	retries  int
	logger   *slog.Logger
	metrics  ports.MetricsCollector
}

// NewFailureReconciler returns a reconciler that retries through analyzer.
// retries <= 0 disables the retry round; any positive value allows exactly
// one.
func NewFailureReconciler(analyzer Analyzer, retries int, logger *slog.Logger, metrics ports.MetricsCollector) *FailureReconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &FailureReconciler{
		analyzer: analyzer,
		retries:  retries,
		logger:   logger,
		metrics:  metrics,
	}
}

// Reconcile partitions records into classified and failed, re-analyzes the
// failed clause texts in a single round, and returns the union sorted by
// ClauseID.
//
// The retry batch starts at the first failed ClauseID, so its records are
// re-keyed by position onto the IDs of the records they replace. A failed
// record the retry does not cover is kept as is.
func (r *FailureReconciler) Reconcile(ctx context.Context, records []domain.ClauseRecord) []domain.ClauseRecord {
	ok := make([]domain.ClauseRecord, 0, len(records))
	var failed []domain.ClauseRecord
	for _, rec := range records {
		if rec.NeedsReconciliation() {
			failed = append(failed, rec)
		} else {
			ok = append(ok, rec)
		}
	}

	if len(failed) > 0 && r.retries > 0 && r.analyzer != nil && ctx.Err() == nil {
		r.logger.InfoContext(ctx, "retrying failed clauses",
			"count", len(failed),
			"start_id", failed[0].ClauseID,
		)
		if r.metrics != nil {
			r.metrics.RecordCounter("covenant_reconcile_retries_total", 1, nil)
			r.metrics.RecordCounter("covenant_reconcile_clauses_total", float64(len(failed)), nil)
		}
		failed = r.retry(ctx, failed)
	}

	out := append(ok, failed...)
	slices.SortStableFunc(out, func(a, b domain.ClauseRecord) int {
		return a.ClauseID - b.ClauseID
	})
	return out
}

func (r *FailureReconciler) retry(ctx context.Context, failed []domain.ClauseRecord) []domain.ClauseRecord {
	texts := make([]string, len(failed))
	for i, rec := range failed {
		texts[i] = rec.ContractClause
	}

	base := failed[0].ClauseID
	retried := r.analyzer.Analyze(withFreshCompletions(ctx), texts, base)

	out := slices.Clone(failed)
	for _, rec := range retried {
		pos := rec.ClauseID - base
		if pos < 0 || pos >= len(out) {
			continue
		}
		rec.ClauseID = failed[pos].ClauseID
		out[pos] = rec
	}

	still := 0
	for _, rec := range out {
		if rec.NeedsReconciliation() {
			still++
		}
	}
	if still > 0 {
		r.logger.InfoContext(ctx, "clauses still unresolved after retry", "count", still)
	}
	return out
}
