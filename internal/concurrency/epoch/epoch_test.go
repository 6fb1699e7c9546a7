// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"testing"

	"pgregory.net/rapid"
)

func TestEpochFlags(t *testing.T) {
	e := starting()
	if e.IsPinned() {
		t.Error("Expected the starting epoch to be unpinned")
	}
	if e.Number() != 0 {
		t.Errorf("Expected starting epoch number 0, got %d", e.Number())
	}

	p := e.successor().pinned()
	if !p.IsPinned() {
		t.Error("Expected pinned() to set the flag")
	}
	if p.Number() != 1 {
		t.Errorf("Expected epoch number 1, got %d", p.Number())
	}
	if p.unpinned() != e.successor() {
		t.Errorf("Expected unpinned() to clear only the flag, got %d", p.unpinned())
	}
}

func TestEpochWrappingSub(t *testing.T) {
	last := Epoch(^uint64(0) &^ 1)
	if got := last.successor(); got != starting() {
		t.Errorf("Expected successor of the largest epoch to wrap to 0, got %d", got)
	}
	if got := starting().successor().wrappingSub(last); got != 2 {
		t.Errorf("Expected distance 2 across the wrap, got %d", got)
	}
	if got := starting().wrappingSub(starting().successor()); got != -1 {
		t.Errorf("Expected distance -1 to a later epoch, got %d", got)
	}
}

func TestEpochArithmeticProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := Epoch(rapid.Uint64().Draw(t, "epoch"))
		k := rapid.IntRange(0, 1000).Draw(t, "steps")

		n := e
		for i := 0; i < k; i++ {
			n = n.successor()
		}

		if got := n.wrappingSub(e); got != int64(k) {
			t.Fatalf("wrappingSub after %d steps = %d", k, got)
		}
		if got := n.wrappingSub(e.pinned()); got != int64(k) {
			t.Fatalf("wrappingSub ignoring the pinned flag after %d steps = %d", k, got)
		}
		if n.IsPinned() != e.IsPinned() {
			t.Fatal("successor changed the pinned flag")
		}
		if e.pinned().unpinned() != e.unpinned() {
			t.Fatal("pinned then unpinned is not unpinned")
		}
		if e.pinned().Number() != e.unpinned().Number() {
			t.Fatal("the pinned flag leaked into the epoch number")
		}
	})
}

func TestAtomicEpoch(t *testing.T) {
	var a atomicEpoch
	if a.load() != starting() {
		t.Errorf("Expected zero value to hold the starting epoch, got %d", a.load())
	}
	a.store(starting().successor())
	if a.compareAndSwap(starting(), starting().pinned()) {
		t.Error("Expected CAS with a stale value to fail")
	}
	if !a.compareAndSwap(starting().successor(), starting().successor().successor()) {
		t.Error("Expected CAS with the current value to succeed")
	}
	if got := a.load().Number(); got != 2 {
		t.Errorf("Expected epoch number 2, got %d", got)
	}
}

func TestBagSealAndRun(t *testing.T) {
	b := newBag(3)
	if !b.isEmpty() {
		t.Fatal("Expected a new bag to be empty")
	}

	ran := 0
	tag := starting().successor()
	if b.push(func() { ran++ }, tag) {
		t.Error("Expected bag with 1 of 3 items not to be full")
	}
	b.push(func() { ran++ }, tag)
	if !b.push(func() { ran++ }, tag) {
		t.Error("Expected bag with 3 of 3 items to be full")
	}

	global := tag.successor().pinned()
	sb := b.seal(global)
	if !b.isEmpty() || b.capacity != 3 {
		t.Errorf("Expected sealing to leave an empty bag of capacity 3, got len %d cap %d", b.len(), b.capacity)
	}
	if sb.epoch != global.unpinned() {
		t.Errorf("Expected sealed epoch %d, got %d", global.unpinned(), sb.epoch)
	}

	if sb.isExpired(global) || sb.isExpired(global.successor()) {
		t.Error("Expected bag to survive less than two advances")
	}
	if !sb.isExpired(global.successor().successor()) {
		t.Error("Expected bag to expire after two advances")
	}

	if n := sb.run(); n != 3 || ran != 3 {
		t.Errorf("Expected 3 functions to run, run() = %d, ran = %d", n, ran)
	}
}

func TestBagReset(t *testing.T) {
	b := newBag(4)
	ran := false
	b.push(func() { ran = true }, starting())
	b.reset()

	if !b.isEmpty() {
		t.Error("Expected reset to empty the bag")
	}
	if ran {
		t.Error("Expected reset not to run anything")
	}
}

func TestGoroutineID(t *testing.T) {
	id := goroutineID()
	if id == 0 {
		t.Fatal("Expected a non-zero goroutine ID")
	}
	if again := goroutineID(); again != id {
		t.Errorf("Expected a stable ID, got %d then %d", id, again)
	}

	other := make(chan uint64)
	go func() { other <- goroutineID() }()
	if got := <-other; got == id || got == 0 {
		t.Errorf("Expected a distinct ID for another goroutine, got %d (ours %d)", got, id)
	}
}
