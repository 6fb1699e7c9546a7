// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"sync"
	"sync/atomic"
	"time"
)

// DefaultReclaimInterval is the tick of a Reclaimer created with a zero interval.
const DefaultReclaimInterval = 100 * time.Millisecond

// Reclaimer periodically advances the epoch and runs expired garbage, so that
// garbage is reclaimed even when participants rarely pin.
//
// It keeps its own participant, which holds a reference to the collector's
// shared state; Stop it before expecting the state to be destroyed.
type Reclaimer struct {
	collector *Collector
	interval  time.Duration
	started   atomic.Bool
	stop      atomic.Bool
	done      chan struct{}
	ticks     atomic.Uint64
	wg        sync.WaitGroup
}

// NewReclaimer creates a reclaimer for c.
func NewReclaimer(c *Collector, interval time.Duration) *Reclaimer {
	if interval <= 0 {
		interval = DefaultReclaimInterval
	}
	return &Reclaimer{
		collector: c,
		interval:  interval,
		done:      make(chan struct{}),
	}
}

// Start launches the reclamation goroutine. It does nothing if the reclaimer
// was already started or stopped.
func (r *Reclaimer) Start() {
	if r.stop.Load() || !r.started.CompareAndSwap(false, true) {
		return
	}
	if r.collector.Released() {
		panic(ErrCollectorReleased)
	}

	// the handle is registered before Start returns, so the collector cannot
	// be destroyed underneath the loop
	ready := make(chan struct{})
	r.wg.Add(1)
	go r.run(ready)
	<-ready
}

// Stop gracefully stops the reclaimer and waits for its goroutine.
func (r *Reclaimer) Stop() {
	if r.stop.CompareAndSwap(false, true) {
		close(r.done)
	}
	r.wg.Wait()
}

// Ticks returns the number of completed reclamation cycles.
func (r *Reclaimer) Ticks() uint64 { return r.ticks.Load() }

// ForceCollect runs one reclamation cycle on the calling goroutine.
func (r *Reclaimer) ForceCollect() {
	h := r.collector.Handle()
	defer h.Release()
	collectOnce(h)
}

// run is the main reclamation loop
func (r *Reclaimer) run(ready chan<- struct{}) {
	defer r.wg.Done()

	h := r.collector.Handle()
	defer h.Release()
	close(ready)

	log := r.collector.global.log
	log.Debug().Dur("interval", r.interval).Msg("reclaimer started")
	defer func() {
		log.Debug().Uint64("ticks", r.ticks.Load()).Msg("reclaimer stopped")
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			collectOnce(h)
			r.ticks.Add(1)
		}
	}
}

func collectOnce(h *Handle) {
	g := h.Pin()
	g.Flush()
	g.Release()
}
