package main

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// latencyStats tracks how long analyses take from submission to result.
type latencyStats struct {
	mu      sync.Mutex
	samples []float64 // ms
}

func (s *latencyStats) Add(d time.Duration) {
	s.mu.Lock()
	s.samples = append(s.samples, float64(d.Microseconds())/1000)
	s.mu.Unlock()
}

func (s *latencyStats) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

// Percentiles returns min, p50, p90, p95 and max in milliseconds.
func (s *latencyStats) Percentiles() ([5]float64, bool) {
	s.mu.Lock()
	sorted := append([]float64(nil), s.samples...)
	s.mu.Unlock()
	if len(sorted) == 0 {
		return [5]float64{}, false
	}
	sort.Float64s(sorted)

	percentile := func(p float64) float64 {
		return sorted[int(float64(len(sorted)-1)*p)]
	}
	return [5]float64{
		sorted[0],
		percentile(0.50),
		percentile(0.90),
		percentile(0.95),
		sorted[len(sorted)-1],
	}, true
}

func (s *latencyStats) Render() string {
	p, ok := s.Percentiles()
	if !ok {
		return ""
	}
	return fmt.Sprintf(
		"          %5s %5s %5s %5s %5s\n"+
			"analysis  %5.0f %5.0f %5.0f %5.0f %5.0f",
		"min", "p50", "p90", "p95", "max",
		p[0], p[1], p[2], p[3], p[4],
	)
}
