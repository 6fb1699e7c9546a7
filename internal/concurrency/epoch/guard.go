// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

// Guard proves that its goroutine is pinned. While any guard of a participant
// is alive, nothing deferred in or after the participant's pin epoch is run.
//
// Guards may be cloned and released in any order. Like handles they stay on
// the goroutine that created them.
type Guard struct {
	noCopy      noCopy
	local       *Local
	unprotected bool
}

var sentinel = &Guard{unprotected: true}

// Unprotected returns a guard that is not bound to any participant and never
// pins anything. Defer on it runs the function immediately.
//
// Using it is only sound while the caller can otherwise prove that no other
// goroutine can release the memory being accessed, e.g. because it has
// exclusive access to the structure at that moment.
func Unprotected() *Guard {
	return sentinel
}

// IsUnprotected reports whether g is the Unprotected sentinel.
func (g *Guard) IsUnprotected() bool { return g.unprotected }

func (g *Guard) mustLocal() *Local {
	if g.local == nil {
		violation("use of a released guard")
	}
	return g.local
}

// Defer schedules fn to run once no goroutine pinned now or earlier can still
// hold a reference to what fn releases. fn may run on any goroutine, at any
// later time, and must not rely on the caller's stack. It never runs inline,
// except on the Unprotected guard.
//
// Before deferring, the object must already be unreachable for goroutines
// that pin from now on.
func (g *Guard) Defer(fn func()) {
	if g.unprotected {
		fn()
		return
	}
	g.mustLocal().deferFn(fn)
}

// Flush migrates the participant's buffered garbage to the collector and
// attempts to advance the epoch and collect.
func (g *Guard) Flush() {
	if g.unprotected {
		return
	}
	g.mustLocal().flush(g)
}

// Clone returns an independent guard on the same participant. Cloning the
// Unprotected guard returns it unchanged.
func (g *Guard) Clone() *Guard {
	if g.unprotected {
		return g
	}
	return g.mustLocal().pin()
}

// Repin moves the participant's pin to the current global epoch, if this is
// its only active guard. Pointers loaded through the guard before Repin must
// not be used afterwards.
func (g *Guard) Repin() {
	if g.unprotected {
		return
	}
	g.mustLocal().repin()
}

// RepinAfter unpins the participant for the duration of fn, if this is its
// only active guard, and pins it again afterwards, also when fn panics. Use it
// around blocking work so the goroutine does not hold back reclamation.
func (g *Guard) RepinAfter(fn func()) {
	if g.unprotected {
		fn()
		return
	}
	l := g.mustLocal()
	l.acquireHandle()
	l.unpin()
	defer func() {
		l.enter(g)
		l.releaseHandle()
	}()
	fn()
}

// Collector returns the collector the guard belongs to, nil for the
// Unprotected guard.
func (g *Guard) Collector() *Collector {
	if g.unprotected {
		return nil
	}
	return g.mustLocal().global.collector
}

// Release drops the guard, unpinning the participant when it was the last
// active one. Releasing the Unprotected guard does nothing; releasing any
// other guard twice panics.
func (g *Guard) Release() {
	if g.unprotected {
		return
	}
	l := g.mustLocal()
	l.unpin()
	g.local = nil
}
