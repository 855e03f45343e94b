// Package usage accumulates token-usage statistics across concurrent
// context-generation calls.
package usage

import "sync"

// Stats is a point-in-time copy of the counters.
type Stats struct {
	Input         int64 // prompt tokens not served from cache
	Output        int64
	CacheRead     int64
	CacheCreation int64 // no OpenAI usage field reports it; kept for the usage report
}

// TotalInput is every input token accounted for, cached or not.
func (s Stats) TotalInput() int64 {
	return s.Input + s.CacheRead + s.CacheCreation
}

// CacheSavingsPercent is the share of input tokens read from cache, 0 when
// nothing was recorded.
func (s Stats) CacheSavingsPercent() float64 {
	total := s.TotalInput()
	if total <= 0 {
		return 0
	}
	return float64(s.CacheRead) / float64(total) * 100
}

// Counters is a mutex-guarded usage accumulator. The zero value is ready to use.
type Counters struct {
	mu    sync.Mutex
	stats Stats
}

// NewCounters returns an empty accumulator.
func NewCounters() *Counters {
	return &Counters{}
}

// Record adds one completion's usage. Only uncached prompt tokens count as
// input; cached tokens go to CacheRead. Negative values are clamped to zero so
// the counters never decrease.
func (c *Counters) Record(inputTokens, outputTokens, cachedTokens int) {
	cached := max(cachedTokens, 0)
	input := max(inputTokens-cached, 0)
	output := max(outputTokens, 0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.CacheRead += int64(cached)
	c.stats.Input += int64(input)
	c.stats.Output += int64(output)
}

// Snapshot returns all four counters read under one lock acquisition.
func (c *Counters) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
