// Package telemetry records match statistics: which keywords are asked for,
// which keyword sets find nothing, and how long ranking takes.
// All data stays local.
package telemetry

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Kind is the entry point a match came through.
type Kind string

const (
	KindMatch Kind = "match" // explicit keywords
	KindAsk   Kind = "ask"   // keywords extracted from a question
)

// LatencyBucket represents a latency histogram bucket.
type LatencyBucket string

const (
	BucketP1    LatencyBucket = "p1"    // <1ms
	BucketP10   LatencyBucket = "p10"   // 1-10ms
	BucketP50   LatencyBucket = "p50"   // 10-50ms
	BucketP100  LatencyBucket = "p100"  // 50-100ms
	BucketP1000 LatencyBucket = "p1000" // >=100ms
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	switch {
	case d < time.Millisecond:
		return BucketP1
	case d < 10*time.Millisecond:
		return BucketP10
	case d < 50*time.Millisecond:
		return BucketP50
	case d < 100*time.Millisecond:
		return BucketP100
	default:
		return BucketP1000
	}
}

// MatchEvent is one ranking call.
type MatchEvent struct {
	Kind      Kind
	Keywords  []string
	Tables    int
	Columns   int
	Latency   time.Duration
	Timestamp time.Time
}

// IsZeroResult reports whether neither tables nor columns matched.
func (e MatchEvent) IsZeroResult() bool {
	return e.Tables == 0 && e.Columns == 0
}

// Query renders the keyword set as one line.
func (e MatchEvent) Query() string {
	return strings.Join(e.Keywords, " ")
}

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer; capacity <= 0 means 100.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest when full.
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

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		n := copy(result, b.items[b.head:])
		copy(result[n:], b.items[:b.head])
	}
	return result
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// TermCount represents a keyword and its frequency.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// Snapshot is a point-in-time copy of the collected metrics.
type Snapshot struct {
	KindCounts          map[Kind]int64          `json:"kind_counts"`
	TopKeywords         []TermCount             `json:"top_keywords"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalMatches        int64                   `json:"total_matches"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	ExactRepeatCount    int64                   `json:"exact_repeat_count"`
	Since               time.Time               `json:"since"`
}

// ZeroResultPercentage returns the share of matches that found nothing, 0..100.
func (s *Snapshot) ZeroResultPercentage() float64 {
	if s.TotalMatches == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalMatches) * 100
}

// Store persists aggregated metrics.
type Store interface {
	SaveKindCounts(date string, counts map[Kind]int64) error
	GetKindCounts(from, to string) (map[Kind]int64, error)
	UpsertKeywordCounts(terms map[string]int64) error
	GetTopKeywords(limit int) ([]TermCount, error)
	AddZeroResultQuery(query string, timestamp time.Time) error
	GetZeroResultQueries(limit int) ([]string, error)
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)
	Close() error
}

// Config configures a Metrics collector.
type Config struct {
	TopKeywordsCapacity int           // default 100
	ZeroResultsCapacity int           // default 100
	RecentCapacity      int           // keyword sets remembered for repeat detection, default 500
	FlushInterval       time.Duration // 0 disables the background flush
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TopKeywordsCapacity: 100,
		ZeroResultsCapacity: 100,
		RecentCapacity:      500,
		FlushInterval:       60 * time.Second,
	}
}

// pending holds counts not yet written to the store.
type pending struct {
	kinds     map[Kind]int64
	keywords  map[string]int64
	latencies map[LatencyBucket]int64
	zero      []MatchEvent
}

func newPending() pending {
	return pending{
		kinds:     make(map[Kind]int64),
		keywords:  make(map[string]int64),
		latencies: make(map[LatencyBucket]int64),
	}
}

// Metrics collects match telemetry. Safe for concurrent use.
type Metrics struct {
	mu      sync.Mutex
	flushMu sync.Mutex

	kinds           map[Kind]int64
	topKeywords     *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	totalMatches    int64
	zeroResultCount int64
	recent          *lru.Cache[string, struct{}]
	exactRepeats    int64
	startTime       time.Time

	unflushed pending

	store       Store
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// New creates a collector with DefaultConfig. A nil store keeps metrics in memory.
func New(store Store) *Metrics {
	return NewWithConfig(store, DefaultConfig())
}

// NewWithConfig creates a collector with cfg.
func NewWithConfig(store Store, cfg Config) *Metrics {
	def := DefaultConfig()
	if cfg.TopKeywordsCapacity <= 0 {
		cfg.TopKeywordsCapacity = def.TopKeywordsCapacity
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = def.ZeroResultsCapacity
	}
	if cfg.RecentCapacity <= 0 {
		cfg.RecentCapacity = def.RecentCapacity
	}

	topKeywords, _ := lru.New[string, int64](cfg.TopKeywordsCapacity)
	recent, _ := lru.New[string, struct{}](cfg.RecentCapacity)

	m := &Metrics{
		kinds:       make(map[Kind]int64),
		topKeywords: topKeywords,
		zeroResults: NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:   make(map[LatencyBucket]int64),
		recent:      recent,
		startTime:   time.Now(),
		unflushed:   newPending(),
		store:       store,
		stopCh:      make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}
	return m
}

func (m *Metrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			_ = m.Flush()
		case <-m.stopCh:
			return
		}
	}
}

// Record captures one match. Calls after Close are ignored.
func (m *Metrics) Record(event MatchEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.kinds[event.Kind]++
	m.unflushed.kinds[event.Kind]++
	m.totalMatches++

	for _, kw := range event.Keywords {
		count, _ := m.topKeywords.Get(kw)
		m.topKeywords.Add(kw, count+1)
		m.unflushed.keywords[kw]++
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query())
		m.zeroResultCount++
		m.unflushed.zero = append(m.unflushed.zero, event)
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.unflushed.latencies[bucket]++

	key := keywordSetKey(event.Keywords)
	if _, seen := m.recent.Get(key); seen {
		m.exactRepeats++
	}
	m.recent.Add(key, struct{}{})
}

// keywordSetKey is order-insensitive: {a b} and {b a} repeat each other.
func keywordSetKey(keywords []string) string {
	sorted := slices.Clone(keywords)
	slices.Sort(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\x00")))
	return hex.EncodeToString(sum[:16])
}

// Snapshot returns the in-memory aggregates.
func (m *Metrics) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Metrics) snapshotLocked() *Snapshot {
	kinds := make(map[Kind]int64, len(m.kinds))
	for k, v := range m.kinds {
		kinds[k] = v
	}

	top := make([]TermCount, 0, m.topKeywords.Len())
	for _, key := range m.topKeywords.Keys() {
		if count, ok := m.topKeywords.Peek(key); ok {
			top = append(top, TermCount{Term: key, Count: count})
		}
	}
	slices.SortFunc(top, func(a, b TermCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	return &Snapshot{
		KindCounts:          kinds,
		TopKeywords:         top,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalMatches:        m.totalMatches,
		ZeroResultCount:     m.zeroResultCount,
		ExactRepeatCount:    m.exactRepeats,
		Since:               m.startTime,
	}
}

// Flush writes counts recorded since the previous flush.
// A no-op without a store. Parts the store rejects stay queued for the next
// flush; parts already written are not repeated.
func (m *Metrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	m.mu.Lock()
	batch := m.unflushed
	m.unflushed = newPending()
	m.mu.Unlock()

	today := time.Now().Format("2006-01-02")
	if len(batch.kinds) > 0 {
		if err := m.store.SaveKindCounts(today, batch.kinds); err != nil {
			m.requeue(batch)
			return err
		}
		batch.kinds = nil
	}
	if len(batch.keywords) > 0 {
		if err := m.store.UpsertKeywordCounts(batch.keywords); err != nil {
			m.requeue(batch)
			return err
		}
		batch.keywords = nil
	}
	if len(batch.latencies) > 0 {
		if err := m.store.SaveLatencyCounts(today, batch.latencies); err != nil {
			m.requeue(batch)
			return err
		}
		batch.latencies = nil
	}
	for i, ev := range batch.zero {
		if err := m.store.AddZeroResultQuery(ev.Query(), ev.Timestamp); err != nil {
			batch.zero = batch.zero[i:]
			m.requeue(batch)
			return err
		}
	}
	return nil
}

// requeue merges an unwritten batch back in front of newer counts.
func (m *Metrics) requeue(batch pending) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, n := range batch.kinds {
		m.unflushed.kinds[k] += n
	}
	for kw, n := range batch.keywords {
		m.unflushed.keywords[kw] += n
	}
	for b, n := range batch.latencies {
		m.unflushed.latencies[b] += n
	}
	m.unflushed.zero = append(slices.Clone(batch.zero), m.unflushed.zero...)
}

// Close stops the background flush, flushes once more, and closes the store.
// The store is closed even when the final flush fails.
func (m *Metrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}

	if m.store == nil {
		return nil
	}
	flushErr := m.Flush()
	return errors.Join(flushErr, m.store.Close())
}
