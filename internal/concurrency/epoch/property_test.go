// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"testing"

	"pgregory.net/rapid"
)

// TestPropertyParticipantCounting drives handles and guards of one goroutine
// through random sequences and checks the participant's counters against a
// model that only tracks what is still held.
func TestPropertyParticipantCounting(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := NewCollector(
			WithBagCapacity(rapid.IntRange(1, 8).Draw(t, "bagCapacity")),
			WithPinningsBetweenCollect(rapid.Uint64Range(1, 8).Draw(t, "pinnings")),
		)

		var (
			handles  []*Handle
			guards   []*Guard
			current  *Local
			deferred int
			ran      int
		)

		pick := func(t *rapid.T, n int, label string) int {
			if n == 0 {
				t.Skip("nothing to " + label)
			}
			return rapid.IntRange(0, n-1).Draw(t, label)
		}

		t.Repeat(map[string]func(*rapid.T){
			"handle": func(t *rapid.T) {
				h := c.Handle()
				if current != nil && h.local != current {
					t.Fatal("a second participant was attached to the goroutine")
				}
				current = h.local
				handles = append(handles, h)
			},
			"cloneHandle": func(t *rapid.T) {
				i := pick(t, len(handles), "cloneHandle")
				handles = append(handles, handles[i].Clone())
			},
			"releaseHandle": func(t *rapid.T) {
				i := pick(t, len(handles), "releaseHandle")
				handles[i].Release()
				handles = append(handles[:i], handles[i+1:]...)
			},
			"pin": func(t *rapid.T) {
				i := pick(t, len(handles), "pin")
				guards = append(guards, handles[i].Pin())
			},
			"cloneGuard": func(t *rapid.T) {
				i := pick(t, len(guards), "cloneGuard")
				guards = append(guards, guards[i].Clone())
			},
			"releaseGuard": func(t *rapid.T) {
				i := pick(t, len(guards), "releaseGuard")
				guards[i].Release()
				guards = append(guards[:i], guards[i+1:]...)
			},
			"defer": func(t *rapid.T) {
				i := pick(t, len(guards), "defer")
				guards[i].Defer(func() { ran++ })
				deferred++
			},
			"flush": func(t *rapid.T) {
				i := pick(t, len(guards), "flush")
				guards[i].Flush()
			},
			"": func(t *rapid.T) {
				if ran > deferred {
					t.Fatalf("ran %d deferred functions, only %d were deferred", ran, deferred)
				}
				if len(handles)+len(guards) == 0 {
					if current != nil && !current.dead {
						t.Fatal("participant outlived its last handle and guard")
					}
					if got := c.Registered(); got != 0 {
						t.Fatalf("expected no registered participant, got %d", got)
					}
					current = nil
					return
				}
				if current.dead {
					t.Fatal("participant finalized while still held")
				}
				if current.handleCount != uint64(len(handles)) {
					t.Fatalf("handle count %d, model %d", current.handleCount, len(handles))
				}
				if current.guardCount != uint64(len(guards)) {
					t.Fatalf("guard count %d, model %d", current.guardCount, len(guards))
				}
				if current.epoch.load().IsPinned() != (len(guards) > 0) {
					t.Fatalf("published epoch %d with %d guards", current.epoch.load(), len(guards))
				}
				if got := c.Registered(); got != 1 {
					t.Fatalf("expected one registered participant, got %d", got)
				}
			},
		})

		for _, g := range guards {
			g.Release()
		}
		for _, h := range handles {
			h.Release()
		}
		c.Release()

		if !c.Destroyed() {
			t.Fatal("collector state not destroyed after every release")
		}
		if ran != deferred {
			t.Fatalf("ran %d of %d deferred functions", ran, deferred)
		}
	})
}
