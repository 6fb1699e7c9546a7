// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"golang.org/x/sys/cpu"

	"github.com/kianostad/lfepoch/internal/concurrency/lockfree"
)

// Local is a goroutine's participation record.
//
// The published epoch is the only field other goroutines read (during epoch
// advance scans). Everything below the padding belongs to the owner goroutine
// and is accessed without synchronization.
type Local struct {
	epoch atomicEpoch
	_     cpu.CacheLinePad

	global *Global
	node   *lockfree.Node[*Local]
	bag    bag

	guardCount  uint64
	handleCount uint64
	pinCount    uint64

	owner  uint64
	checks bool
	dead   bool
}

func (l *Local) checkOwner(op string) {
	if l.dead {
		violation("%s on a finalized participant", op)
	}
	if !l.checks {
		return
	}
	if id := goroutineID(); id != l.owner {
		violation("%s from goroutine %d, participant belongs to goroutine %d", op, id, l.owner)
	}
}

// pin returns a new guard, pinning the participant if it was not pinned yet.
func (l *Local) pin() *Guard {
	g := &Guard{local: l}
	l.enter(g)
	return g
}

// enter counts one more active guard. On the transition from zero the current
// global epoch is published; the store is sequentially consistent, so any scan
// that misses it happened before this goroutine reads a protected pointer.
func (l *Local) enter(g *Guard) {
	l.checkOwner("pin")
	l.guardCount++
	if l.guardCount != 1 {
		return
	}

	global := l.global
	l.epoch.store(global.epoch.load().pinned())

	l.pinCount++
	if l.pinCount%global.cfg.PinningsBetweenCollect == 0 {
		global.collect(g)
	}
}

// unpin drops one active guard. The last one clears the published epoch and,
// if no handle is left either, finalizes the participant.
func (l *Local) unpin() {
	l.checkOwner("unpin")
	if l.guardCount == 0 {
		violation("guard count underflow on goroutine %d", l.owner)
	}
	l.guardCount--
	if l.guardCount != 0 {
		return
	}
	l.epoch.store(starting())
	if l.handleCount == 0 {
		l.finalize()
	}
}

// repin moves the published epoch forward to the current global epoch. Only
// done when a single guard is active, other guards may hold older pointers.
func (l *Local) repin() {
	l.checkOwner("repin")
	if l.guardCount != 1 {
		return
	}
	next := l.global.epoch.load().pinned()
	if l.epoch.load() != next {
		l.epoch.store(next)
	}
}

func (l *Local) isPinned() bool { return l.guardCount > 0 }

func (l *Local) acquireHandle() {
	l.checkOwner("acquire handle")
	l.handleCount++
}

func (l *Local) releaseHandle() {
	l.checkOwner("release handle")
	if l.handleCount == 0 {
		violation("handle count underflow on goroutine %d", l.owner)
	}
	l.handleCount--
	if l.handleCount == 0 && l.guardCount == 0 {
		l.finalize()
	}
}

// deferFn buffers fn tagged with the current pin epoch, migrating the bag to
// the global queue once it is full.
func (l *Local) deferFn(fn func()) {
	l.checkOwner("defer")
	if l.bag.push(fn, l.epoch.load().unpinned()) {
		l.global.pushBag(&l.bag)
	}
}

// flush migrates buffered garbage and runs a collection.
func (l *Local) flush(g *Guard) {
	l.checkOwner("flush")
	if !l.bag.isEmpty() {
		l.global.pushBag(&l.bag)
	}
	l.global.collect(g)
}

// finalize tears the participant down once both counts are zero. The order
// matters: garbage is flushed while the Global reference is still held, the
// record is tombstoned after its last write, and the Global reference goes
// last. After the tombstone any scanner may unlink and recycle the record.
func (l *Local) finalize() {
	global := l.global

	// The temporary handle keeps the internal guard's release from
	// finalizing recursively.
	l.handleCount = 1
	g := l.pin()
	if !l.bag.isEmpty() {
		global.pushBag(&l.bag)
	}
	global.collect(g)
	// records unlinked by that scan were deferred onto this bag
	if !l.bag.isEmpty() {
		global.pushBag(&l.bag)
	}
	g.Release()
	l.handleCount = 0

	owner, node := l.owner, l.node
	l.global = nil
	l.dead = true
	global.detach(owner, l)

	global.metrics.RecordLocalFinalized()
	global.log.Debug().Uint64("goroutine", owner).Msg("participant finalized")

	node.Delete()
	global.release()
}
