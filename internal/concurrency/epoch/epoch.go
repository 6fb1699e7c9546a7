// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import "sync/atomic"

// Epoch is a value of the global logical clock. The least significant bit is
// the pinned flag; the epoch number lives in the remaining bits, so advancing
// the clock adds two.
type Epoch uint64

// starting is the initial global epoch and the published value of an unpinned
// participant.
func starting() Epoch { return 0 }

// Number returns the epoch number without the pinned flag.
func (e Epoch) Number() uint64 { return uint64(e) >> 1 }

// IsPinned reports whether the pinned flag is set.
func (e Epoch) IsPinned() bool { return uint64(e)&1 == 1 }

func (e Epoch) pinned() Epoch { return Epoch(uint64(e) | 1) }

func (e Epoch) unpinned() Epoch { return Epoch(uint64(e) &^ 1) }

func (e Epoch) successor() Epoch { return Epoch(uint64(e) + 2) }

// wrappingSub returns the number of epochs between e and rhs. The pinned flag
// of rhs is ignored, the arithmetic wraps.
func (e Epoch) wrappingSub(rhs Epoch) int64 {
	return int64(uint64(e)-uint64(rhs.unpinned())) >> 1
}

type atomicEpoch struct {
	v atomic.Uint64
}

func (a *atomicEpoch) load() Epoch { return Epoch(a.v.Load()) }

func (a *atomicEpoch) store(e Epoch) { a.v.Store(uint64(e)) }

func (a *atomicEpoch) compareAndSwap(old, new Epoch) bool {
	return a.v.CompareAndSwap(uint64(old), uint64(new))
}
