package main

import (
	"math"
	"sort"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
)

const scenarioKey = "scenario"

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type callReport struct {
	Calls     int64            `json:"calls"`
	Success   int64            `json:"success"`
	Failed    int64            `json:"failed"`
	ErrorRate float64          `json:"error_rate"`
	Codes     map[string]int64 `json:"codes"`
	LatencyMs latencySummary   `json:"latency_ms"`
}

type report struct {
	StartedAt         time.Time             `json:"started_at"`
	DurationSeconds   float64               `json:"duration_seconds"`
	TotalScenarios    int64                 `json:"total_scenarios"`
	SuccessScenarios  int64                 `json:"success_scenarios"`
	FailedScenarios   int64                 `json:"failed_scenarios"`
	ErrorRate         float64               `json:"error_rate"`
	RPS               float64               `json:"rps"`
	ScenarioLatencyMs latencySummary        `json:"scenario_latency_ms"`
	Calls             map[string]callReport `json:"calls"`
}

type callStats struct {
	calls     int64
	failed    int64
	codes     map[string]int64
	latencies []float64
}

func (s *callStats) report() callReport {
	codesCopy := make(map[string]int64, len(s.codes))
	for code, count := range s.codes {
		codesCopy[code] = count
	}
	return callReport{
		Calls:     s.calls,
		Success:   s.calls - s.failed,
		Failed:    s.failed,
		ErrorRate: ratio(s.failed, s.calls),
		Codes:     codesCopy,
		LatencyMs: summarize(s.latencies),
	}
}

// collector собирает латентность и коды ответов по имени вызова.
type collector struct {
	mu    sync.Mutex
	stats map[string]*callStats
}

func newCollector() *collector {
	return &collector{stats: make(map[string]*callStats)}
}

func (c *collector) record(name string, latency time.Duration, code codes.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stats[name]
	if !ok {
		s = &callStats{codes: make(map[string]int64)}
		c.stats[name] = s
	}
	s.calls++
	if code != codes.OK {
		s.failed++
	}
	s.codes[code.String()]++
	s.latencies = append(s.latencies, float64(latency.Microseconds())/1000.0)
}

func (c *collector) buildReport(startedAt time.Time, elapsed time.Duration) report {
	c.mu.Lock()
	defer c.mu.Unlock()

	result := report{
		StartedAt:       startedAt.UTC(),
		DurationSeconds: elapsed.Seconds(),
		Calls:           make(map[string]callReport, len(c.stats)),
	}
	for name, s := range c.stats {
		if name == scenarioKey {
			scenario := s.report()
			result.TotalScenarios = scenario.Calls
			result.SuccessScenarios = scenario.Success
			result.FailedScenarios = scenario.Failed
			result.ErrorRate = scenario.ErrorRate
			result.ScenarioLatencyMs = scenario.LatencyMs
			continue
		}
		result.Calls[name] = s.report()
	}
	if elapsed > 0 {
		result.RPS = float64(result.TotalScenarios) / elapsed.Seconds()
	}
	return result
}

func summarize(values []float64) latencySummary {
	if len(values) == 0 {
		return latencySummary{}
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range sorted {
		sum += v
	}
	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

// percentile интерполирует линейно между соседними рангами отсортированной выборки.
func percentile(sorted []float64, p float64) float64 {
	switch len(sorted) {
	case 0:
		return 0
	case 1:
		return sorted[0]
	}

	rank := (p / 100.0) * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

func ratio(failed, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(failed) / float64(total)
}
