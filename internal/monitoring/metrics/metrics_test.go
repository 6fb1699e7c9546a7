// Licensed under the MIT License. See LICENSE file in the project root for details.

package metrics

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	metrics := NewMetrics()
	if metrics == nil {
		t.Fatal("NewMetrics() returned nil")
	}
	if c := metrics.Counters(); c != (Counters{}) {
		t.Errorf("Expected zero counters, got %+v", c)
	}
}

func TestNewMetricsWithConfig(t *testing.T) {
	config := DefaultConfig()
	config.CollectLatencyBuffer = 2

	metrics := NewMetricsWithConfig(config)
	for i := 1; i <= 3; i++ {
		metrics.RecordCollect(time.Duration(i) * time.Millisecond)
	}

	snap := metrics.Snapshot()
	if snap.Counters.Collects != 3 {
		t.Errorf("Expected 3 collects, got %d", snap.Counters.Collects)
	}
	if snap.Collect.Count != 2 {
		t.Errorf("Expected 2 retained latency samples, got %d", snap.Collect.Count)
	}
	if snap.Collect.Min != 2*time.Millisecond {
		t.Errorf("Expected the oldest sample to be evicted, min = %v", snap.Collect.Min)
	}
}

func TestRecordCounters(t *testing.T) {
	metrics := NewMetrics()

	metrics.RecordAdvance()
	metrics.RecordAdvance()
	metrics.RecordStall()
	metrics.RecordBagSealed()
	metrics.RecordGarbageRun(5)
	metrics.RecordGarbageRun(0)
	metrics.RecordGarbageRun(-1)
	metrics.RecordLocalRegistered()
	metrics.RecordLocalFinalized()
	metrics.RecordLocalRecycled()

	want := Counters{
		Advances:         2,
		AdvanceStalls:    1,
		BagsSealed:       1,
		GarbageRun:       5,
		LocalsRegistered: 1,
		LocalsFinalized:  1,
		LocalsRecycled:   1,
	}
	if got := metrics.Counters(); got != want {
		t.Errorf("Counters() = %+v, want %+v", got, want)
	}
}

func TestSnapshotLeavesOwnerFields(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordCollect(100 * time.Microsecond)

	snap := metrics.Snapshot()
	if snap.Epoch != 0 || snap.Live != 0 {
		t.Errorf("Expected Epoch and Live to be left unset, got %d and %d", snap.Epoch, snap.Live)
	}
	if snap.Collect.Mean != 100*time.Microsecond {
		t.Errorf("Expected mean collect latency 100µs, got %v", snap.Collect.Mean)
	}
}

// TestConcurrentAccess verifies that counters account for concurrent updates
// without dropping events.
func TestConcurrentAccess(t *testing.T) {
	metrics := NewMetrics()

	var wg sync.WaitGroup
	numGoroutines := 10
	operationsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < operationsPerGoroutine; j++ {
				metrics.RecordAdvance()
				metrics.RecordGarbageRun(2)
				metrics.RecordCollect(time.Microsecond)
			}
		}()
	}
	wg.Wait()

	expected := uint64(numGoroutines * operationsPerGoroutine)
	c := metrics.Counters()
	if c.Advances != expected || c.Collects != expected || c.GarbageRun != 2*expected {
		t.Fatalf("expected %d operations, got advances=%d collects=%d garbage=%d",
			expected, c.Advances, c.Collects, c.GarbageRun)
	}
}

func TestRingBufferAverage(t *testing.T) {
	rb := NewDurationRingBuffer(5)

	rb.Push(100 * time.Microsecond)
	rb.Push(200 * time.Microsecond)
	rb.Push(300 * time.Microsecond)

	average := rb.GetAverage()
	expected := 200 * time.Microsecond

	if average != expected {
		t.Errorf("Expected average to be %v, got %v", expected, average)
	}
	if rb.Len() != 3 {
		t.Errorf("Expected 3 samples, got %d", rb.Len())
	}
}

func TestRingBufferOverflow(t *testing.T) {
	rb := NewDurationRingBuffer(3)

	rb.Push(100 * time.Microsecond)
	rb.Push(200 * time.Microsecond)
	rb.Push(300 * time.Microsecond)
	rb.Push(400 * time.Microsecond) // overwrites the first value

	average := rb.GetAverage()
	expected := 300 * time.Microsecond

	if average != expected {
		t.Errorf("Expected average to be %v, got %v", expected, average)
	}
	if rb.Len() != 3 {
		t.Errorf("Expected length to stay at capacity, got %d", rb.Len())
	}
}

func TestRingBufferEmpty(t *testing.T) {
	rb := NewDurationRingBuffer(5)

	if average := rb.GetAverage(); average != 0 {
		t.Errorf("Expected average to be 0 for empty buffer, got %v", average)
	}
	if stats := rb.GetStats(); stats != (LatencyStats{}) {
		t.Errorf("Expected zero stats for empty buffer, got %+v", stats)
	}
}

func TestRingBufferInvalidCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected NewDurationRingBuffer(0) to panic")
		}
	}()
	NewDurationRingBuffer(0)
}

func TestRingBufferStats(t *testing.T) {
	rb := NewDurationRingBuffer(10)

	// 100, 200, 300, 400, 500
	for i := 1; i <= 5; i++ {
		rb.Push(time.Duration(i*100) * time.Microsecond)
	}

	stats := rb.GetStats()

	if stats.Count != 5 {
		t.Errorf("Expected count to be 5, got %d", stats.Count)
	}
	if stats.Min != 100*time.Microsecond {
		t.Errorf("Expected min to be 100μs, got %v", stats.Min)
	}
	if stats.Max != 500*time.Microsecond {
		t.Errorf("Expected max to be 500μs, got %v", stats.Max)
	}
	if stats.Mean != 300*time.Microsecond {
		t.Errorf("Expected mean to be 300μs, got %v", stats.Mean)
	}
	if stats.P50 != 300*time.Microsecond {
		t.Errorf("Expected P50 to be 300μs, got %v", stats.P50)
	}
	// For 5 values: P95 = 0.95 * 4 = 3.8 -> index 3 (400μs), P99 = 0.99 * 4 = 3.96 -> index 3 (400μs)
	if stats.P95 != 400*time.Microsecond {
		t.Errorf("Expected P95 to be 400μs, got %v", stats.P95)
	}
	if stats.P99 != 400*time.Microsecond {
		t.Errorf("Expected P99 to be 400μs, got %v", stats.P99)
	}
}

func TestExportJSON(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordAdvance()
	metrics.RecordCollect(100 * time.Microsecond)

	snap := metrics.Snapshot()
	snap.Epoch = 7
	snap.Live = 3

	jsonData, err := snap.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonData, &parsed); err != nil {
		t.Fatalf("Expected valid JSON, got error: %v", err)
	}
	if parsed["epoch"] != float64(7) || parsed["live_locals"] != float64(3) {
		t.Errorf("Expected epoch 7 and 3 live locals, got %v and %v", parsed["epoch"], parsed["live_locals"])
	}
	counters, ok := parsed["counters"].(map[string]interface{})
	if !ok || counters["advances"] != float64(1) {
		t.Errorf("Expected counters.advances = 1, got %v", parsed["counters"])
	}
}

func TestExportPrometheus(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordAdvance()
	metrics.RecordStall()

	snap := metrics.Snapshot()
	snap.Live = 2
	prometheusData := snap.ExportPrometheus()

	for _, line := range []string{
		"# TYPE lfepoch_epoch_advances_total counter",
		"lfepoch_epoch_advances_total 1",
		"lfepoch_epoch_advance_stalls_total 1",
		"# TYPE lfepoch_live_locals gauge",
		"lfepoch_live_locals 2",
	} {
		if !strings.Contains(prometheusData, line+"\n") {
			t.Errorf("Expected Prometheus export to contain %q", line)
		}
	}
}
