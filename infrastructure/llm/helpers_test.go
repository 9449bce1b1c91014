package llm

import (
	"sync"
	"time"
)

type metricPoint struct {
	name   string
	value  float64
	labels map[string]string
}

// recordingCollector is a ports.MetricsCollector that keeps every call.
type recordingCollector struct {
	mu         sync.Mutex
	counters   []metricPoint
	gauges     []metricPoint
	histograms []metricPoint
}

func (c *recordingCollector) RecordLatency(op string, d time.Duration, labels map[string]string) {
	c.RecordHistogram(op, d.Seconds(), labels)
}

func (c *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = append(c.counters, metricPoint{metric, value, labels})
}

func (c *recordingCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges = append(c.gauges, metricPoint{metric, value, labels})
}

func (c *recordingCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histograms = append(c.histograms, metricPoint{metric, value, labels})
}

func (c *recordingCollector) counterSum(name string, match map[string]string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total float64
outer:
	for _, p := range c.counters {
		if p.name != name {
			continue
		}
		for k, v := range match {
			if p.labels[k] != v {
				continue outer
			}
		}
		total += p.value
	}
	return total
}
