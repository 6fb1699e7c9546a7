// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

// noCopy makes go vet's copylocks check flag copies of the containing value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Handle is a goroutine's capability to pin. It belongs to the goroutine that
// obtained it and must not be handed to another goroutine: its participant's
// counters are plain integers. To fan out work, call Collector.Handle on each
// goroutine instead.
type Handle struct {
	noCopy noCopy
	local  *Local
}

func (h *Handle) mustLocal() *Local {
	if h.local == nil {
		violation("use of a released handle")
	}
	return h.local
}

// Pin pins the participant and returns a guard.
func (h *Handle) Pin() *Guard {
	return h.mustLocal().pin()
}

// IsPinned reports whether the participant has an active guard.
func (h *Handle) IsPinned() bool {
	return h.mustLocal().isPinned()
}

// Clone returns another handle on the same participant.
func (h *Handle) Clone() *Handle {
	l := h.mustLocal()
	l.acquireHandle()
	return &Handle{local: l}
}

// Collector returns the collector the handle belongs to.
func (h *Handle) Collector() *Collector {
	return h.mustLocal().global.collector
}

// Release drops the handle. The participant is finalized once its last handle
// and last guard are both released. Releasing twice panics.
func (h *Handle) Release() {
	l := h.mustLocal()
	l.releaseHandle()
	h.local = nil
}
