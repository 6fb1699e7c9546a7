// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package metrics provides observability for the epoch collector.
//
// This package tracks how reclamation progresses: how often the global epoch
// advances, how often an advance attempt is blocked by a straggling participant,
// how much deferred garbage has been sealed and run, and how long collection
// cycles take. Counters are plain atomics; collection latencies are kept in a
// bounded ring buffer for percentile reporting.
//
// # Key Features
//
//   - Epoch advance and stall counters
//   - Sealed bag and executed garbage counters
//   - Participant registration and finalization counters
//   - Collection latency ring buffer with percentile statistics
//   - JSON and Prometheus text export
//
// # Usage Examples
//
//	m := metrics.NewMetrics()
//	m.RecordAdvance()
//	m.RecordCollect(150 * time.Microsecond)
//
//	snap := m.Snapshot()
//	fmt.Printf("advances: %d, p99 collect: %s\n", snap.Counters.Advances, snap.Collect.P99)
//
// # Dangers and Warnings
//
//   - **Hot Path**: Nothing in this package is called on the pin/unpin fast path.
//   - **Stale Reads**: Snapshot reads counters one by one, it is not an atomic view.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
package metrics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// LatencyStats provides comprehensive latency statistics
type LatencyStats struct {
	Count uint64        `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
	P999  time.Duration `json:"p999"`
}

// Counters is a point-in-time copy of the collector counters.
type Counters struct {
	Advances         uint64 `json:"advances"`
	AdvanceStalls    uint64 `json:"advance_stalls"`
	Collects         uint64 `json:"collects"`
	BagsSealed       uint64 `json:"bags_sealed"`
	GarbageRun       uint64 `json:"garbage_run"`
	LocalsRegistered uint64 `json:"locals_registered"`
	LocalsFinalized  uint64 `json:"locals_finalized"`
	LocalsRecycled   uint64 `json:"locals_recycled"`
}

// Snapshot provides a complete snapshot of all metrics
type Snapshot struct {
	Counters Counters     `json:"counters"`
	Collect  LatencyStats `json:"collect_latency"`
	Epoch    uint64       `json:"epoch"`
	Live     int          `json:"live_locals"`
}

// ExportJSON renders the snapshot as JSON.
func (s Snapshot) ExportJSON() ([]byte, error) {
	return json.Marshal(s)
}

// ExportPrometheus renders the snapshot in the Prometheus text format.
func (s Snapshot) ExportPrometheus() string {
	var b strings.Builder
	write := func(name, kind string, v any) {
		fmt.Fprintf(&b, "# TYPE lfepoch_%s %s\nlfepoch_%s %v\n", name, kind, name, v)
	}
	write("epoch_advances_total", "counter", s.Counters.Advances)
	write("epoch_advance_stalls_total", "counter", s.Counters.AdvanceStalls)
	write("collects_total", "counter", s.Counters.Collects)
	write("bags_sealed_total", "counter", s.Counters.BagsSealed)
	write("garbage_run_total", "counter", s.Counters.GarbageRun)
	write("locals_registered_total", "counter", s.Counters.LocalsRegistered)
	write("locals_finalized_total", "counter", s.Counters.LocalsFinalized)
	write("locals_recycled_total", "counter", s.Counters.LocalsRecycled)
	write("epoch", "gauge", s.Epoch)
	write("live_locals", "gauge", s.Live)
	write("collect_latency_p99_seconds", "gauge", s.Collect.P99.Seconds())
	return b.String()
}

// DurationRingBuffer implements a thread-safe bounded ring buffer for time.Duration
type DurationRingBuffer struct {
	buffer []time.Duration
	head   int
	tail   int
	size   int
	count  int
	mu     sync.RWMutex
}

// NewDurationRingBuffer creates a new ring buffer with specified capacity
func NewDurationRingBuffer(capacity int) *DurationRingBuffer {
	if capacity <= 0 {
		panic("metrics: ring buffer capacity must be positive")
	}
	return &DurationRingBuffer{
		buffer: make([]time.Duration, capacity),
		size:   capacity,
	}
}

// Push adds an item to the ring buffer
func (rb *DurationRingBuffer) Push(item time.Duration) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.buffer[rb.tail] = item
	rb.tail = (rb.tail + 1) % rb.size

	if rb.count < rb.size {
		rb.count++
	} else {
		rb.head = (rb.head + 1) % rb.size
	}
}

// Len returns the number of samples currently held.
func (rb *DurationRingBuffer) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// GetAverage calculates the average of time.Duration values in the buffer
func (rb *DurationRingBuffer) GetAverage() time.Duration {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if rb.count == 0 {
		return 0
	}

	var total time.Duration
	for i := 0; i < rb.count; i++ {
		idx := (rb.head + i) % rb.size
		total += rb.buffer[idx]
	}

	return total / time.Duration(rb.count)
}

// GetStats calculates comprehensive latency statistics
func (rb *DurationRingBuffer) GetStats() LatencyStats {
	rb.mu.RLock()
	if rb.count == 0 {
		rb.mu.RUnlock()
		return LatencyStats{}
	}
	// Copy values to avoid holding lock during sort
	values := make([]time.Duration, rb.count)
	for i := 0; i < rb.count; i++ {
		values[i] = rb.buffer[(rb.head+i)%rb.size]
	}
	rb.mu.RUnlock()

	sort.Slice(values, func(i, j int) bool {
		return values[i] < values[j]
	})

	stats := LatencyStats{
		Count: uint64(len(values)),
		Min:   values[0],
		Max:   values[len(values)-1],
	}

	var total time.Duration
	for _, v := range values {
		total += v
	}
	stats.Mean = total / time.Duration(len(values))

	stats.P50 = percentile(values, 0.50)
	stats.P95 = percentile(values, 0.95)
	stats.P99 = percentile(values, 0.99)
	stats.P999 = percentile(values, 0.999)

	return stats
}

// percentile calculates the nth percentile from sorted values
func percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}

	index := int(float64(len(values)-1) * p)
	if index >= len(values) {
		index = len(values) - 1
	}
	return values[index]
}

// Config provides configuration options for metrics collection
type Config struct {
	// CollectLatencyBuffer is the number of collection latency samples kept.
	CollectLatencyBuffer int
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		CollectLatencyBuffer: 1024,
	}
}

// Metrics tracks collector activity.
type Metrics struct {
	advances         atomic.Uint64
	advanceStalls    atomic.Uint64
	collects         atomic.Uint64
	bagsSealed       atomic.Uint64
	garbageRun       atomic.Uint64
	localsRegistered atomic.Uint64
	localsFinalized  atomic.Uint64
	localsRecycled   atomic.Uint64

	collectLatency *DurationRingBuffer
}

// NewMetrics creates a new metrics instance with default configuration
func NewMetrics() *Metrics {
	return NewMetricsWithConfig(DefaultConfig())
}

// NewMetricsWithConfig creates a new metrics instance with custom configuration
func NewMetricsWithConfig(config Config) *Metrics {
	return &Metrics{
		collectLatency: NewDurationRingBuffer(config.CollectLatencyBuffer),
	}
}

// RecordAdvance counts a successful global epoch advance.
func (m *Metrics) RecordAdvance() { m.advances.Add(1) }

// RecordStall counts an advance attempt blocked by a pinned participant or a lost unlink race.
func (m *Metrics) RecordStall() { m.advanceStalls.Add(1) }

// RecordBagSealed counts a local garbage bag migrated to the global queue.
func (m *Metrics) RecordBagSealed() { m.bagsSealed.Add(1) }

// RecordGarbageRun counts n executed deferred functions.
func (m *Metrics) RecordGarbageRun(n int) {
	if n > 0 {
		m.garbageRun.Add(uint64(n))
	}
}

// RecordLocalRegistered counts a new participant.
func (m *Metrics) RecordLocalRegistered() { m.localsRegistered.Add(1) }

// RecordLocalFinalized counts a participant whose counts both reached zero.
func (m *Metrics) RecordLocalFinalized() { m.localsFinalized.Add(1) }

// RecordLocalRecycled counts a participant record returned to the pool.
func (m *Metrics) RecordLocalRecycled() { m.localsRecycled.Add(1) }

// RecordCollect counts a collection cycle and records its duration.
func (m *Metrics) RecordCollect(d time.Duration) {
	m.collects.Add(1)
	m.collectLatency.Push(d)
}

// Counters returns the current counter values.
func (m *Metrics) Counters() Counters {
	return Counters{
		Advances:         m.advances.Load(),
		AdvanceStalls:    m.advanceStalls.Load(),
		Collects:         m.collects.Load(),
		BagsSealed:       m.bagsSealed.Load(),
		GarbageRun:       m.garbageRun.Load(),
		LocalsRegistered: m.localsRegistered.Load(),
		LocalsFinalized:  m.localsFinalized.Load(),
		LocalsRecycled:   m.localsRecycled.Load(),
	}
}

// Snapshot returns counters and latency statistics. Epoch and Live are left
// for the owner of the metrics to fill in.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Counters: m.Counters(),
		Collect:  m.collectLatency.GetStats(),
	}
}
