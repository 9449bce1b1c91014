package analysis

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ahrav/go-covenant/internal/domain"
	"github.com/ahrav/go-covenant/internal/ports"
)

// Pipeline defaults.
const (
	DefaultBatchSize  = 6
	DefaultMaxWorkers = 1
	DefaultStartID    = 1
)

// Pipeline splits clauses into contiguous batches, analyzes and reconciles
// each batch, and concatenates the results in batch order.
//
// Batches are independent, so up to MaxWorkers of them run at once. The
// output does not depend on the worker count.
type Pipeline struct {
	analyzer   Analyzer
	reconciler *FailureReconciler
	batchSize  int
	maxWorkers int
	logger     *slog.Logger
	metrics    ports.MetricsCollector
	progress   func(done, total int)
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	BatchSize        int
	MaxWorkers       int
	ReconcileRetries int
	Logger           *slog.Logger
	Metrics          ports.MetricsCollector
	// Progress, when set, is called after each batch finishes.
	Progress func(done, total int)
}

// NewPipeline returns a pipeline that runs batches through analyzer.
// BatchSize must be at least one; a zero MaxWorkers means one.
func NewPipeline(analyzer Analyzer, config PipelineConfig) (*Pipeline, error) {
	if analyzer == nil {
		return nil, ErrNilAnalyzer
	}
	if config.BatchSize < 1 {
		return nil, domain.ErrInvalidBatchSize
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	workers := config.MaxWorkers
	if workers < 1 {
		workers = DefaultMaxWorkers
	}

	return &Pipeline{
		analyzer:   analyzer,
		reconciler: NewFailureReconciler(analyzer, config.ReconcileRetries, logger, config.Metrics),
		batchSize:  config.BatchSize,
		maxWorkers: workers,
		logger:     logger,
		metrics:    config.Metrics,
		progress:   config.Progress,
	}, nil
}

// Run analyzes clauses with IDs counted from startID. Batch k starts at
// startID + k*BatchSize, so a clause rejected by validation leaves a gap
// in the ID sequence.
//
// Run stops scheduling batches once ctx is done and returns the batches
// finished so far together with ctx.Err(). Model failures are never
// returned as errors.
func (p *Pipeline) Run(ctx context.Context, clauses []string, startID int) ([]domain.ClauseRecord, error) {
	start := time.Now()
	batches := p.split(clauses)
	results := make([][]domain.ClauseRecord, len(batches))

	var (
		mu   sync.Mutex
		done int
	)

	var g errgroup.Group
	g.SetLimit(p.maxWorkers)

	for i, b := range batches {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			batchStart := startID + b.offset
			records := p.analyzer.Analyze(ctx, b.clauses, batchStart)
			results[i] = p.reconciler.Reconcile(ctx, records)

			mu.Lock()
			done++
			n := done
			mu.Unlock()

			p.logger.DebugContext(ctx, "batch complete",
				"batch", i+1,
				"of", len(batches),
				"start_id", batchStart,
				"records", len(results[i]),
			)
			if p.progress != nil {
				p.progress(n, len(batches))
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []domain.ClauseRecord
	for _, r := range results {
		out = append(out, r...)
	}

	p.logger.InfoContext(ctx, "pipeline finished",
		"clauses", len(clauses),
		"batches", len(batches),
		"records", len(out),
		"duration", time.Since(start),
	)
	if p.metrics != nil {
		p.metrics.RecordLatency("pipeline", time.Since(start), nil)
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

type batch struct {
	offset  int
	clauses []string
}

func (p *Pipeline) split(clauses []string) []batch {
	batches := make([]batch, 0, (len(clauses)+p.batchSize-1)/p.batchSize)
	for off := 0; off < len(clauses); off += p.batchSize {
		end := min(off+p.batchSize, len(clauses))
		batches = append(batches, batch{offset: off, clauses: clauses[off:end]})
	}
	return batches
}
