// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package main provides benchmarks for the epoch collector.
//
// This command-line tool measures the costs that matter for epoch-based
// reclamation: pinning, deferring garbage, and keeping up with retirement
// under a realistic lock-free workload.
//
// # Benchmark Categories
//
//   - Single-threaded pin/unpin (baseline)
//   - Concurrent pin/unpin (scalability of the registry scan)
//   - Deferred garbage throughput
//   - Treiber stack churn with pooled nodes
//   - Straggler: one goroutine holding a pin while others retire
//   - Memory usage of buffered garbage
//
// # Usage
//
//	go run ./cmd/bench
//	go run ./cmd/bench -ops 200000 -max-goroutines 64 -verbose
//
// # Dangers and Warnings
//
//   - **Resource Consumption**: The concurrent runs start up to -max-goroutines
//     goroutines that spin on shared state.
//   - **Garbage Collection**: Go's GC runs alongside and may skew results.
//
// # See Also
//
// For interactive exploration of the protocol, see the REPL tool.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kianostad/lfepoch"
)

var (
	ops           = flag.Int("ops", 100000, "operations per goroutine")
	maxGoroutines = flag.Int("max-goroutines", 32, "largest goroutine count in concurrent runs")
	verbose       = flag.Bool("verbose", false, "log collector activity to stderr")
	stats         = flag.Bool("stats", false, "print collector statistics after each benchmark")
)

func main() {
	flag.Parse()

	fmt.Println("Epoch Collector Benchmarks")
	fmt.Println("==========================")

	benchmarkSingleThreaded()
	benchmarkConcurrentPins()
	benchmarkDeferThroughput()
	benchmarkStackChurn()
	benchmarkStraggler()
	benchmarkMemoryUsage()
}

func newCollector(opts ...lfepoch.Option) *lfepoch.Collector {
	if *verbose {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
			With().Timestamp().Logger().
			Level(zerolog.DebugLevel)
		opts = append(opts, lfepoch.WithLogger(logger))
	}
	return lfepoch.NewCollector(opts...)
}

func report(label string, n int, d time.Duration) {
	fmt.Printf("   %s: %d ops in %v (%.0f ops/sec)\n", label, n, d, float64(n)/d.Seconds())
}

func printStats(c *lfepoch.Collector) {
	if !*stats {
		return
	}
	s := c.Stats()
	fmt.Printf("   epoch=%d advances=%d stalls=%d bags=%d garbage=%d collect p99=%v\n",
		s.Epoch, s.Counters.Advances, s.Counters.AdvanceStalls,
		s.Counters.BagsSealed, s.Counters.GarbageRun, s.Collect.P99)
}

func goroutineCounts() []int {
	var counts []int
	for n := 1; n <= *maxGoroutines; n *= 2 {
		counts = append(counts, n)
	}
	return counts
}

func benchmarkSingleThreaded() {
	fmt.Println("\n1. Single-threaded operations")
	c := newCollector()
	defer c.Release()
	h := c.Handle()
	defer h.Release()

	n := *ops
	start := time.Now()
	for i := 0; i < n; i++ {
		h.Pin().Release()
	}
	report("Pin/Release", n, time.Since(start))

	// nested pins only touch the guard count
	outer := h.Pin()
	start = time.Now()
	for i := 0; i < n; i++ {
		outer.Clone().Release()
	}
	report("Nested Clone/Release", n, time.Since(start))
	outer.Release()

	start = time.Now()
	for i := 0; i < n; i++ {
		g := lfepoch.Pin()
		g.Release()
	}
	report("Default Pin/Release", n, time.Since(start))
	lfepoch.Detach()

	printStats(c)
}

func benchmarkConcurrentPins() {
	fmt.Println("\n2. Concurrent pin/release")

	for _, numGoroutines := range goroutineCounts() {
		c := newCollector()
		var wg sync.WaitGroup
		start := time.Now()

		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h := c.Handle()
				defer h.Release()
				for j := 0; j < *ops; j++ {
					h.Pin().Release()
				}
			}()
		}

		wg.Wait()
		report(fmt.Sprintf("%d goroutines", numGoroutines), numGoroutines * *ops, time.Since(start))
		printStats(c)
		c.Release()
	}
}

func benchmarkDeferThroughput() {
	fmt.Println("\n3. Deferred garbage throughput")

	for _, numGoroutines := range goroutineCounts() {
		c := newCollector()
		var (
			wg  sync.WaitGroup
			ran atomic.Int64
		)
		start := time.Now()

		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h := c.Handle()
				defer h.Release()
				for j := 0; j < *ops; j++ {
					g := h.Pin()
					g.Defer(func() { ran.Add(1) })
					g.Release()
				}
			}()
		}

		wg.Wait()
		d := time.Since(start)
		total := numGoroutines * *ops
		report(fmt.Sprintf("%d goroutines", numGoroutines), total, d)
		fmt.Printf("   reclaimed before release: %.1f%%\n", 100*float64(ran.Load())/float64(total))
		printStats(c)
		c.Release()
	}
}

type node struct {
	value int
	next  *node
}

type stack struct {
	head atomic.Pointer[node]
	pool sync.Pool
}

func (s *stack) push(v int) {
	n := s.pool.Get().(*node)
	n.value = v
	for {
		head := s.head.Load()
		n.next = head
		if s.head.CompareAndSwap(head, n) {
			return
		}
	}
}

func (s *stack) pop(g *lfepoch.Guard) bool {
	for {
		head := s.head.Load()
		if head == nil {
			return false
		}
		if s.head.CompareAndSwap(head, head.next) {
			g.Defer(func() {
				head.next = nil
				s.pool.Put(head)
			})
			return true
		}
	}
}

func benchmarkStackChurn() {
	fmt.Println("\n4. Treiber stack churn with pooled nodes")

	for _, numGoroutines := range goroutineCounts() {
		c := newCollector()
		s := &stack{}
		s.pool.New = func() any { return new(node) }

		var wg sync.WaitGroup
		start := time.Now()
		for i := 0; i < numGoroutines; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				h := c.Handle()
				defer h.Release()
				for j := 0; j < *ops; j++ {
					g := h.Pin()
					if j%2 == 0 {
						s.push(id)
					} else {
						s.pop(g)
					}
					g.Release()
				}
			}(i)
		}

		wg.Wait()
		report(fmt.Sprintf("%d goroutines", numGoroutines), numGoroutines * *ops, time.Since(start))
		printStats(c)
		c.Release()
	}
}

func benchmarkStraggler() {
	fmt.Println("\n5. Straggler holding a pin")

	for _, repin := range []bool{false, true} {
		c := newCollector()
		var (
			wg      sync.WaitGroup
			ran     atomic.Int64
			stop    atomic.Bool
			workers = runtime.GOMAXPROCS(0)
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			h := c.Handle()
			defer h.Release()
			g := h.Pin()
			defer g.Release()
			for !stop.Load() {
				time.Sleep(time.Millisecond)
				if repin {
					g.Repin()
				}
			}
		}()

		var producers sync.WaitGroup
		start := time.Now()
		for i := 0; i < workers; i++ {
			producers.Add(1)
			go func() {
				defer producers.Done()
				h := c.Handle()
				defer h.Release()
				for j := 0; j < *ops; j++ {
					g := h.Pin()
					g.Defer(func() { ran.Add(1) })
					g.Release()
				}
			}()
		}
		producers.Wait()
		d := time.Since(start)
		pending := int64(workers * *ops) - ran.Load()

		stop.Store(true)
		wg.Wait()

		label := "pinned"
		if repin {
			label = "repinning"
		}
		report(fmt.Sprintf("%s straggler, %d producers", label, workers), workers * *ops, d)
		fmt.Printf("   garbage pending when producers finished: %d\n", pending)
		printStats(c)
		c.Release()
	}
}

func benchmarkMemoryUsage() {
	fmt.Println("\n6. Memory usage of buffered garbage")

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)

	c := newCollector()
	h := c.Handle()
	straggler := make(chan struct{})
	released := make(chan struct{})
	go func() {
		sh := c.Handle()
		g := sh.Pin()
		<-straggler
		g.Release()
		sh.Release()
		close(released)
	}()

	n := *ops
	for i := 0; i < n; i++ {
		g := h.Pin()
		buf := make([]byte, 64)
		g.Defer(func() { _ = buf })
		g.Release()
	}

	runtime.GC()
	runtime.ReadMemStats(&after)
	fmt.Printf("   %d retired 64-byte buffers held: %d KB heap growth\n",
		n, (int64(after.HeapAlloc)-int64(before.HeapAlloc))/1024)

	close(straggler)
	<-released
	h.Release()
	printStats(c)
	c.Release()

	runtime.GC()
	runtime.ReadMemStats(&after)
	fmt.Printf("   after release: %d KB heap growth\n",
		(int64(after.HeapAlloc)-int64(before.HeapAlloc))/1024)
}
