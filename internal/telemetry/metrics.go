// Package telemetry collects local retrieval metrics. Nothing is
// reported externally; snapshots are read by the caller on demand.
package telemetry

import (
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LatencyBucket is a retrieval latency histogram bucket.
type LatencyBucket string

const (
	BucketP10   LatencyBucket = "p10"   // <10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP500  LatencyBucket = "p500"  // 100-500ms
	BucketP1000 LatencyBucket = "p1000" // >=500ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 10:
		return BucketP10
	case ms < 50:
		return BucketP50
	case ms < 100:
		return BucketP100
	case ms < 500:
		return BucketP500
	default:
		return BucketP1000
	}
}

// RetrievalEvent describes one completed retrieval for recording.
type RetrievalEvent struct {
	Query       string
	Mode        string
	Intent      string
	ResultCount int
	Degraded    bool
	Latency     time.Duration
}

// IsZeroResult reports whether the retrieval returned nothing.
func (e RetrievalEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends an item, evicting the oldest when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}
	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// TermCount is a query term with its observed frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is an immutable view of the collected metrics.
type Snapshot struct {
	ModeCounts          map[string]int64        `json:"mode_counts"`
	IntentCounts        map[string]int64        `json:"intent_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalQueries        int64                   `json:"total_queries"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	DegradedCount       int64                   `json:"degraded_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of zero-result retrievals.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalQueries) * 100
}

// DegradedPercentage returns the share of degraded retrievals.
func (s *Snapshot) DegradedPercentage() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.DegradedCount) / float64(s.TotalQueries) * 100
}

// Config sizes the metrics collector.
type Config struct {
	TopTermsCapacity    int // max distinct terms tracked (default 100)
	ZeroResultsCapacity int // max zero-result queries kept (default 100)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 100,
	}
}

// RetrievalMetrics collects retrieval telemetry. Safe for concurrent use.
type RetrievalMetrics struct {
	mu sync.RWMutex

	modes           map[string]int64
	intents         map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	totalQueries    int64
	zeroResultCount int64
	degradedCount   int64
	startTime       time.Time
}

// NewRetrievalMetrics creates a collector with default sizing.
func NewRetrievalMetrics() *RetrievalMetrics {
	return NewRetrievalMetricsWithConfig(DefaultConfig())
}

// NewRetrievalMetricsWithConfig creates a collector with custom sizing.
func NewRetrievalMetricsWithConfig(cfg Config) *RetrievalMetrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	return &RetrievalMetrics{
		modes:       make(map[string]int64),
		intents:     make(map[string]int64),
		topTerms:    topTerms,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:   make(map[LatencyBucket]int64),
		startTime:   time.Now(),
	}
}

// Record captures one retrieval. Non-blocking.
func (m *RetrievalMetrics) Record(event RetrievalEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.modes[event.Mode]++
	m.intents[event.Intent]++
	m.totalQueries++

	for _, term := range extractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
	}
	if event.Degraded {
		m.degradedCount++
	}

	m.latencies[LatencyToBucket(event.Latency)]++
}

// TotalQueries returns the number of recorded retrievals.
func (m *RetrievalMetrics) TotalQueries() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totalQueries
}

// Snapshot returns a copy of the current aggregates.
func (m *RetrievalMetrics) Snapshot() *Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := &Snapshot{
		ModeCounts:          make(map[string]int64, len(m.modes)),
		IntentCounts:        make(map[string]int64, len(m.intents)),
		LatencyDistribution: make(map[LatencyBucket]int64, len(m.latencies)),
		ZeroResultQueries:   m.zeroResults.Items(),
		TotalQueries:        m.totalQueries,
		ZeroResultCount:     m.zeroResultCount,
		DegradedCount:       m.degradedCount,
		Since:               m.startTime,
	}
	for k, v := range m.modes {
		snap.ModeCounts[k] = v
	}
	for k, v := range m.intents {
		snap.IntentCounts[k] = v
	}
	for k, v := range m.latencies {
		snap.LatencyDistribution[k] = v
	}

	for _, term := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(term); ok {
			snap.TopTerms = append(snap.TopTerms, TermCount{Term: term, Count: count})
		}
	}
	sort.Slice(snap.TopTerms, func(i, j int) bool {
		if snap.TopTerms[i].Count != snap.TopTerms[j].Count {
			return snap.TopTerms[i].Count > snap.TopTerms[j].Count
		}
		return snap.TopTerms[i].Term < snap.TopTerms[j].Term
	})

	return snap
}

// extractTerms lowercases and keeps words of at least 3 bytes. This is
// intentionally cheaper than the full normalization pipeline; metrics
// do not need stemming.
func extractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}
	var terms []string
	for _, w := range strings.Fields(query) {
		if len(w) >= 3 {
			terms = append(terms, w)
		}
	}
	return terms
}
