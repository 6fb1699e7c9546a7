// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sys/cpu"

	"github.com/kianostad/lfepoch/internal/concurrency/lockfree"
	"github.com/kianostad/lfepoch/internal/monitoring/metrics"
)

// Global is the state shared by a Collector and all of its participants: the
// global epoch, the participant registry and the queue of sealed garbage.
//
// It is reference counted. The Collector holds one reference and every live
// Local holds one; the last release runs all remaining garbage.
type Global struct {
	epoch atomicEpoch
	_     cpu.CacheLinePad

	locals lockfree.List[*Local]
	queue  *lockfree.Queue[sealedBag]

	// attached maps a goroutine ID to its live participant. Each goroutine
	// only ever touches its own key.
	attached sync.Map

	refs      atomic.Int64
	destroyed atomic.Bool

	collector *Collector
	cfg       Config
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

func newGlobal(cfg Config, c *Collector) *Global {
	g := &Global{
		queue:     lockfree.NewQueue[sealedBag](),
		collector: c,
		cfg:       cfg,
		log:       cfg.Logger,
		metrics:   cfg.Metrics,
	}
	g.epoch.store(starting())
	g.refs.Store(1)
	return g
}

// tryAcquire takes a reference unless the state has already been destroyed.
func (g *Global) tryAcquire() bool {
	for {
		n := g.refs.Load()
		if n <= 0 {
			return false
		}
		if g.refs.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

func (g *Global) release() {
	switch n := g.refs.Add(-1); {
	case n < 0:
		violation("collector state released too many times")
	case n == 0:
		g.destroy()
	}
}

// destroy runs every queued bag regardless of its epoch; no participant is
// left that could observe the garbage.
func (g *Global) destroy() {
	n := 0
	for {
		sb, ok := g.queue.TryPop()
		if !ok {
			break
		}
		n += sb.run()
	}
	g.destroyed.Store(true)
	g.metrics.RecordGarbageRun(n)
	g.log.Debug().
		Int("garbage", n).
		Uint64("epoch", g.epoch.load().Number()).
		Msg("collector destroyed")
}

// attach returns the calling goroutine's participant, registering a new one
// on first use. The caller takes a handle or guard on it immediately. It
// returns nil once the state is destroyed.
func (g *Global) attach() *Local {
	id := goroutineID()
	if v, ok := g.attached.Load(id); ok {
		return v.(*Local)
	}
	l := g.register(id)
	if l == nil {
		return nil
	}
	g.attached.Store(id, l)
	return l
}

func (g *Global) detach(owner uint64, l *Local) {
	g.attached.CompareAndDelete(owner, l)
}

// register creates a participant for owner and links it into the registry.
// The participant holds its own reference to g. It returns nil if g is
// already destroyed.
func (g *Global) register(owner uint64) *Local {
	if !g.tryAcquire() {
		return nil
	}

	l := localRecords.Get()
	l.global = g
	l.owner = owner
	l.checks = g.cfg.ConfinementChecks
	if l.bag.capacity != g.cfg.BagCapacity {
		l.bag = newBag(g.cfg.BagCapacity)
	}
	l.node = g.locals.Insert(l)

	g.metrics.RecordLocalRegistered()
	g.log.Debug().Uint64("goroutine", owner).Msg("participant registered")
	return l
}

// pushBag seals b with the current global epoch and queues it.
func (g *Global) pushBag(b *bag) {
	n := b.len()
	g.queue.Push(b.seal(g.epoch.load()))
	g.metrics.RecordBagSealed()
	g.log.Trace().Int("garbage", n).Msg("bag sealed")
}

// tryAdvance moves the global epoch forward if every pinned participant is
// pinned in the current epoch. It gives up silently when a participant lags
// behind or when the registry scan loses an unlink race. Participants
// unlinked during the scan are recycled through guard once no scan can still
// be reading them.
func (g *Global) tryAdvance(guard *Guard) Epoch {
	global := g.epoch.load()

	blocked := false
	err := g.locals.Iterate(func(l *Local) bool {
		le := l.epoch.load()
		if le.IsPinned() && le.unpinned() != global {
			blocked = true
			return false
		}
		return true
	}, func(l *Local) {
		m := g.metrics
		guard.Defer(func() {
			localRecords.Put(l)
			m.RecordLocalRecycled()
		})
	})
	if err != nil || blocked {
		g.metrics.RecordStall()
		return global
	}

	next := global.successor()
	if !g.epoch.compareAndSwap(global, next) {
		return g.epoch.load()
	}
	g.metrics.RecordAdvance()
	g.log.Debug().Uint64("epoch", next.Number()).Msg("epoch advanced")
	return next
}

// collect tries to advance the epoch and runs up to CollectSteps expired bags.
func (g *Global) collect(guard *Guard) {
	start := time.Now()
	global := g.tryAdvance(guard)
	expired := func(s sealedBag) bool { return s.isExpired(global) }
	for i := 0; i < g.cfg.CollectSteps; i++ {
		sb, ok := g.queue.TryPopIf(expired)
		if !ok {
			break
		}
		g.metrics.RecordGarbageRun(sb.run())
	}
	g.metrics.RecordCollect(time.Since(start))
}
