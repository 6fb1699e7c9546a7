// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package epoch provides epoch-based memory reclamation for lock-free data
// structures.
//
// Goroutines that read shared, pointer-based structures pin themselves before
// loading pointers and unpin when done. Writers that unlink an object defer its
// release (returning it to a pool, freeing an off-heap buffer, recycling a
// node) through their guard. A deferred function runs only after the global
// epoch has moved two steps past the moment it was handed to the collector,
// which cannot happen while any goroutine pinned at that time is still pinned.
//
// # Key Features
//
//   - Lock-free participant registry with lazy unlinking of departed participants
//   - Lock-free global garbage queue partitioned into sealed, epoch-tagged bags
//   - Per-goroutine garbage buffering, migrated in batches
//   - Guards that can be cloned and released in any order
//   - Reference counted participants and shared state with ordered teardown
//   - A process-wide default collector with per-goroutine cached handles
//   - Optional background reclaimer
//
// # Usage Examples
//
// Reading and retiring through the default collector:
//
//	g := epoch.Pin()
//	defer g.Release()
//
//	old := head.Swap(next)
//	g.Defer(func() { nodePool.Put(old) })
//
// Using a dedicated collector:
//
//	c := epoch.NewCollector(epoch.WithLogger(logger))
//	defer c.Release()
//
//	h := c.Handle()
//	defer h.Release()
//
//	g := h.Pin()
//	// ... load and use protected pointers ...
//	g.Release()
//
// # Participants, Handles and Guards
//
// Each goroutine that uses a collector gets one participant record (Local). A
// Handle is a capability on that record, a Guard proves the record is pinned.
// The record counts its handles and guards with plain integers and is finalized
// when both counts are zero: its buffered garbage is migrated, it is tombstoned
// in the registry, and its reference to the shared state is dropped.
//
// # Dangers and Warnings
//
//   - **Goroutine Confinement**: Handles and guards must stay on the goroutine
//     that created them. Passing one to another goroutine corrupts the counters.
//     WithConfinementChecks turns such misuse into a panic.
//   - **Deferred Functions**: A deferred function may run on any goroutine at any
//     later time. It must not capture the caller's stack or locks.
//   - **Unprotected Access**: The Unprotected guard protects nothing. It is only
//     sound when the caller has exclusive access to the memory involved.
//   - **Long Pins**: A goroutine that stays pinned stops reclamation for everyone.
//     Use Guard.Repin or Guard.RepinAfter in long-running loops.
//   - **Contract Violations**: Releasing twice or using a released handle, guard
//     or collector panics.
//
// # Thread Safety
//
// Collector methods are safe for concurrent use. Handle and Guard methods are
// safe only on their own goroutine. Every epoch value other goroutines read is
// accessed atomically; Go's atomics are sequentially consistent.
package epoch

import (
	"sync/atomic"

	"github.com/kianostad/lfepoch/internal/monitoring/metrics"
)

// Collector owns the shared reclamation state and hands out handles.
// Collectors compare by identity.
type Collector struct {
	global   *Global
	released atomic.Bool
}

// NewCollector creates a collector.
func NewCollector(opts ...Option) *Collector {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.validate()

	c := &Collector{}
	c.global = newGlobal(cfg, c)
	return c
}

// Handle returns a handle for the calling goroutine, registering a participant
// on the goroutine's first call. Further calls on the same goroutine share the
// participant while it is alive.
func (c *Collector) Handle() *Handle {
	h, err := c.tryHandle()
	if err != nil {
		panic(err)
	}
	return h
}

// tryHandle is Handle returning ErrCollectorReleased instead of panicking,
// including when a concurrent Release destroys the state mid-call.
func (c *Collector) tryHandle() (*Handle, error) {
	if c.released.Load() {
		return nil, ErrCollectorReleased
	}
	l := c.global.attach()
	if l == nil {
		return nil, ErrCollectorReleased
	}
	l.acquireHandle()
	return &Handle{local: l}, nil
}

// Release drops the collector's reference to the shared state. The state is
// destroyed, running all remaining garbage, once every participant is gone as
// well. Releasing twice panics.
func (c *Collector) Release() {
	if !c.released.CompareAndSwap(false, true) {
		panic(ErrCollectorReleased)
	}
	c.global.release()
}

// Released reports whether Release was called.
func (c *Collector) Released() bool { return c.released.Load() }

// Destroyed reports whether the shared state has been torn down.
func (c *Collector) Destroyed() bool { return c.global.destroyed.Load() }

// Registered returns the number of live participants.
func (c *Collector) Registered() int { return c.global.locals.Len() }

// Epoch returns the current global epoch number.
func (c *Collector) Epoch() uint64 { return c.global.epoch.load().Number() }

// Stats returns a snapshot of the collector's metrics.
func (c *Collector) Stats() metrics.Snapshot {
	s := c.global.metrics.Snapshot()
	s.Epoch = c.Epoch()
	s.Live = c.Registered()
	return s
}
