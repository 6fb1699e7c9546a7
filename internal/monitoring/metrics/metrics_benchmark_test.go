// Licensed under the MIT License. See LICENSE file in the project root for details.

package metrics

import (
	"testing"
	"time"
)

// BenchmarkRecordCounters benchmarks the counters touched on every collection
func BenchmarkRecordCounters(b *testing.B) {
	metrics := NewMetrics()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		metrics.RecordAdvance()
		metrics.RecordGarbageRun(8)
	}
}

// BenchmarkRecordCountersHighContention benchmarks counters under parallel load
func BenchmarkRecordCountersHighContention(b *testing.B) {
	metrics := NewMetrics()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			metrics.RecordAdvance()
			metrics.RecordStall()
		}
	})
}

// BenchmarkRecordCollect benchmarks latency recording
func BenchmarkRecordCollect(b *testing.B) {
	metrics := NewMetrics()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			metrics.RecordCollect(100 * time.Microsecond)
		}
	})
}

// BenchmarkSnapshot benchmarks snapshot creation with a full latency buffer
func BenchmarkSnapshot(b *testing.B) {
	metrics := NewMetrics()
	for i := 0; i < DefaultConfig().CollectLatencyBuffer; i++ {
		metrics.RecordCollect(time.Duration(i) * time.Microsecond)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		metrics.Snapshot()
	}
}

// BenchmarkRingBufferPush benchmarks ring buffer push operations
func BenchmarkRingBufferPush(b *testing.B) {
	rb := NewDurationRingBuffer(1000)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			rb.Push(100 * time.Microsecond)
		}
	})
}

// BenchmarkRingBufferGetAverage benchmarks ring buffer average calculation
func BenchmarkRingBufferGetAverage(b *testing.B) {
	rb := NewDurationRingBuffer(1000)

	for i := 0; i < 1000; i++ {
		rb.Push(time.Duration(i) * time.Microsecond)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rb.GetAverage()
	}
}
