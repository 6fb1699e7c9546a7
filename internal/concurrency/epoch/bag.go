// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

// deferred is a function waiting for reclamation, tagged with the pin epoch of
// the guard it was deferred through.
type deferred struct {
	fn    func()
	epoch Epoch
}

// bag buffers a participant's deferred functions. It is owned by one goroutine.
type bag struct {
	items    []deferred
	capacity int
}

func newBag(capacity int) bag {
	return bag{items: make([]deferred, 0, capacity), capacity: capacity}
}

// push appends fn and reports whether the bag is now full.
func (b *bag) push(fn func(), tag Epoch) bool {
	b.items = append(b.items, deferred{fn: fn, epoch: tag})
	return len(b.items) >= b.capacity
}

func (b *bag) isEmpty() bool { return len(b.items) == 0 }

func (b *bag) len() int { return len(b.items) }

// seal hands the buffered items over to a sealedBag and leaves b empty. The
// sealed epoch is the global epoch at migration time, which is never behind
// any item's tag.
func (b *bag) seal(global Epoch) sealedBag {
	s := sealedBag{items: b.items, epoch: global.unpinned()}
	b.items = make([]deferred, 0, b.capacity)
	return s
}

// reset drops buffered items without running them.
func (b *bag) reset() {
	clear(b.items)
	b.items = b.items[:0]
}

// sealedBag is a bag migrated into the global queue.
type sealedBag struct {
	items []deferred
	epoch Epoch
}

// isExpired reports whether every participant that could have observed the
// garbage has unpinned since, i.e. the global epoch moved two steps past.
func (s sealedBag) isExpired(global Epoch) bool {
	return global.wrappingSub(s.epoch) >= 2
}

// run executes every deferred function and returns how many ran.
func (s sealedBag) run() int {
	for i := range s.items {
		s.items[i].fn()
		s.items[i].fn = nil
	}
	return len(s.items)
}
