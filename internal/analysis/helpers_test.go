package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/ahrav/go-covenant/internal/domain"
)

// Clauses that pass validation.
const (
	clauseGoverning   = "This agreement shall be governed by the laws of the State of New York."
	clausePersonal    = "The Supplier shall process personal data only on documented instructions."
	clauseTermination = "Either party may terminate this Agreement with thirty days written notice."
	clauseLiability   = "The Vendor accepts unlimited liability for any breach of confidentiality."
)

// noSleep records requested backoffs without waiting.
type noSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (n *noSleep) sleep(ctx context.Context, d time.Duration) error {
	n.mu.Lock()
	n.waits = append(n.waits, d)
	n.mu.Unlock()
	return ctx.Err()
}

func (n *noSleep) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.waits)
}

// recordingCollector is an in-memory ports.MetricsCollector.
type recordingCollector struct {
	mu       sync.Mutex
	counters map[string]float64
	latency  map[string]int
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{counters: map[string]float64{}, latency: map[string]int{}}
}

func (c *recordingCollector) RecordLatency(op string, _ time.Duration, _ map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latency[op]++
}

func (c *recordingCollector) RecordCounter(metric string, v float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := metric
	for _, k := range []string{"outcome", "risk_level", "model", "status"} {
		if l, ok := labels[k]; ok {
			key += "|" + l
		}
	}
	c.counters[key] += v
}

func (c *recordingCollector) RecordGauge(string, float64, map[string]string)     {}
func (c *recordingCollector) RecordHistogram(string, float64, map[string]string) {}

func (c *recordingCollector) counter(key string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[key]
}

// scriptedAnalyzer returns canned records and remembers its calls.
type scriptedAnalyzer struct {
	mu    sync.Mutex
	calls []analyzeCall
	fn    func(clauses []string, startID int) []domain.ClauseRecord
}

type analyzeCall struct {
	clauses []string
	startID int
	fresh   bool
}

func (s *scriptedAnalyzer) Analyze(ctx context.Context, clauses []string, startID int) []domain.ClauseRecord {
	s.mu.Lock()
	s.calls = append(s.calls, analyzeCall{clauses: clauses, startID: startID, fresh: freshCompletions(ctx)})
	s.mu.Unlock()
	return s.fn(clauses, startID)
}

func (s *scriptedAnalyzer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func classified(id int, text string) domain.ClauseRecord {
	r := domain.NewClauseRecord(id, text)
	r.RiskLevel = domain.RiskMedium
	r.Regulation = "GDPR"
	return r
}
