// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package lfepoch provides epoch-based memory reclamation for lock-free data
// structures.
//
// This is the public API of the module. Lock-free structures use it to retire
// nodes, buffers or any other resource that concurrent readers may still be
// looking at: the release is deferred until every goroutine that could have
// observed the resource has unpinned.
//
// # Quick Start
//
//	import "github.com/kianostad/lfepoch"
//
//	g := lfepoch.Pin()
//	defer g.Release()
//
//	old := top.Swap(newTop)
//	g.Defer(func() { nodes.Put(old) })
//
// # Key Features
//
//   - Cheap pin/unpin: owner-only counters, one atomic store per outermost pin
//   - Deferred functions batched per goroutine and run in epoch order
//   - Independent guards that can be cloned and released in any order
//   - Dedicated collectors with functional options, or a process-wide default
//   - Structured logging via zerolog and collector statistics
//   - Optional background reclaimer
//
// # Usage Examples
//
// Dedicated collector, one handle per goroutine:
//
//	c := lfepoch.NewCollector(lfepoch.WithBagCapacity(128))
//	defer c.Release()
//
//	var wg sync.WaitGroup
//	for i := 0; i < workers; i++ {
//	    wg.Add(1)
//	    go func() {
//	        defer wg.Done()
//	        h := c.Handle()
//	        defer h.Release()
//	        for job := range jobs {
//	            g := h.Pin()
//	            process(g, job)
//	            g.Release()
//	        }
//	    }()
//	}
//	wg.Wait()
//
// Exclusive access without pinning:
//
//	g := lfepoch.Unprotected()
//	g.Defer(func() { buf.Free() }) // runs immediately
//
// Background reclamation:
//
//	r := lfepoch.NewReclaimer(c, 50*time.Millisecond)
//	r.Start()
//	defer r.Stop()
//
// # Dangers and Warnings
//
//   - **Goroutine Confinement**: Handles and guards belong to the goroutine that
//     created them. Never send one to another goroutine.
//   - **Detach**: Goroutines that used Pin should call Detach before exiting.
//   - **Shutdown**: After Shutdown the default collector is unavailable.
//
// # See Also
//
// For the reclamation protocol itself, see internal/concurrency/epoch.
package lfepoch

import (
	"time"

	"github.com/kianostad/lfepoch/internal/concurrency/epoch"
	"github.com/kianostad/lfepoch/internal/monitoring/metrics"
)

type (
	// Collector owns shared reclamation state and hands out handles
	Collector = epoch.Collector

	// Handle is a goroutine-confined capability to pin
	Handle = epoch.Handle

	// Guard proves that its goroutine is pinned
	Guard = epoch.Guard

	// Option configures a Collector
	Option = epoch.Option

	// Config holds collector settings
	Config = epoch.Config

	// Reclaimer periodically collects garbage in the background
	Reclaimer = epoch.Reclaimer

	// Stats is a snapshot of collector statistics
	Stats = metrics.Snapshot
)

var (
	// ErrUnavailable is returned by TryDefaultHandle after Shutdown
	ErrUnavailable = epoch.ErrUnavailable

	// ErrCollectorReleased is the panic value for using a released collector
	ErrCollectorReleased = epoch.ErrCollectorReleased
)

// Collector options.
var (
	// WithBagCapacity sets how many deferred functions a goroutine buffers
	// before migrating them to the global queue
	WithBagCapacity = epoch.WithBagCapacity

	// WithCollectSteps sets how many expired bags one collection runs at most
	WithCollectSteps = epoch.WithCollectSteps

	// WithPinningsBetweenCollect sets how many outermost pins pass between
	// automatic collections
	WithPinningsBetweenCollect = epoch.WithPinningsBetweenCollect

	// WithConfinementChecks makes handle and guard use from a foreign goroutine panic
	WithConfinementChecks = epoch.WithConfinementChecks

	// WithLogger sets the collector's logger
	WithLogger = epoch.WithLogger

	// WithMetrics sets the metrics the collector records into
	WithMetrics = epoch.WithMetrics
)

// NewCollector creates a collector with its own epoch and registry
func NewCollector(opts ...Option) *Collector {
	return epoch.NewCollector(opts...)
}

// NewReclaimer creates a background reclaimer that collects c every interval
func NewReclaimer(c *Collector, interval time.Duration) *Reclaimer {
	return epoch.NewReclaimer(c, interval)
}

// Default returns the process-wide collector
func Default() *Collector {
	return epoch.Default()
}

// ConfigureDefault sets the default collector's options; false once it exists
func ConfigureDefault(opts ...Option) bool {
	return epoch.ConfigureDefault(opts...)
}

// Pin pins the calling goroutine with the default collector
func Pin() *Guard {
	return epoch.Pin()
}

// IsPinned reports whether the calling goroutine is pinned with the default collector
func IsPinned() bool {
	return epoch.IsPinned()
}

// Unprotected returns the guard that protects nothing and runs deferred functions immediately
func Unprotected() *Guard {
	return epoch.Unprotected()
}

// DefaultHandle returns a new handle on the calling goroutine's default participant
func DefaultHandle() *Handle {
	return epoch.DefaultHandle()
}

// TryDefaultHandle is DefaultHandle returning ErrUnavailable after Shutdown
func TryDefaultHandle() (*Handle, error) {
	return epoch.TryDefaultHandle()
}

// Detach releases the calling goroutine's cached default handle
func Detach() {
	epoch.Detach()
}

// Shutdown tears down the default collector for the whole process
func Shutdown() {
	epoch.Shutdown()
}
