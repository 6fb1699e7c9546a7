// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"sync"
	"sync/atomic"
)

// defaultStorage is the process-wide collector plus one cached handle per
// goroutine that has used it.
type defaultStorage struct {
	once      sync.Once
	opts      []Option
	optsMu    sync.Mutex
	collector *Collector
	handles   sync.Map // goroutine ID -> *Handle
	torndown  atomic.Bool
}

var defaults atomic.Pointer[defaultStorage]

func init() {
	defaults.Store(&defaultStorage{})
}

func (d *defaultStorage) get() *Collector {
	d.once.Do(func() {
		d.optsMu.Lock()
		defer d.optsMu.Unlock()
		d.collector = NewCollector(d.opts...)
	})
	return d.collector
}

// handle returns the calling goroutine's cached handle, creating it on first use.
func (d *defaultStorage) handle() (*Handle, error) {
	if d.torndown.Load() {
		return nil, ErrUnavailable
	}
	id := goroutineID()
	if v, ok := d.handles.Load(id); ok {
		return v.(*Handle), nil
	}
	// Shutdown may release the collector after the check above.
	h, err := d.get().tryHandle()
	if err != nil {
		return nil, ErrUnavailable
	}
	d.handles.Store(id, h)
	return h, nil
}

// Default returns the process-wide collector.
func Default() *Collector {
	return defaults.Load().get()
}

// ConfigureDefault sets the options the default collector is created with.
// It reports false, changing nothing, once the default collector exists.
func ConfigureDefault(opts ...Option) bool {
	d := defaults.Load()
	configured := false
	d.optsMu.Lock()
	if d.collector == nil && !d.torndown.Load() {
		d.opts = append(d.opts[:0:0], opts...)
		configured = true
	}
	d.optsMu.Unlock()
	return configured
}

// Pin pins the calling goroutine with the default collector. It reuses the
// goroutine's cached handle without cloning it. Pin panics with
// ErrUnavailable after Shutdown.
func Pin() *Guard {
	h, err := defaults.Load().handle()
	if err != nil {
		panic(err)
	}
	return h.Pin()
}

// IsPinned reports whether the calling goroutine is pinned with the default
// collector.
func IsPinned() bool {
	d := defaults.Load()
	if d.torndown.Load() {
		return false
	}
	v, ok := d.handles.Load(goroutineID())
	return ok && v.(*Handle).IsPinned()
}

// DefaultHandle returns a new handle on the calling goroutine's default
// participant. It panics with ErrUnavailable after Shutdown; see
// TryDefaultHandle.
func DefaultHandle() *Handle {
	h, err := TryDefaultHandle()
	if err != nil {
		panic(err)
	}
	return h
}

// TryDefaultHandle is DefaultHandle returning ErrUnavailable instead of
// panicking. It is safe to race with Shutdown.
func TryDefaultHandle() (*Handle, error) {
	h, err := defaults.Load().handle()
	if err != nil {
		return nil, err
	}
	return h.Clone(), nil
}

// Detach releases the calling goroutine's cached default handle. Call it when
// a goroutine that used Pin is about to exit; otherwise its participant stays
// registered and its buffered garbage waits for process exit. A later Pin on
// the same goroutine attaches again.
func Detach() {
	d := defaults.Load()
	if v, ok := d.handles.LoadAndDelete(goroutineID()); ok {
		v.(*Handle).Release()
	}
}

// Shutdown tears down the default storage. The calling goroutine's cached
// handle and the default collector's own reference are released; goroutines
// still holding cached handles can release them with Detach. Afterwards Pin
// and DefaultHandle panic and TryDefaultHandle returns ErrUnavailable.
//
// Shutdown must not race with first use of the default collector.
func Shutdown() {
	d := defaults.Load()
	if !d.torndown.CompareAndSwap(false, true) {
		return
	}
	if v, ok := d.handles.LoadAndDelete(goroutineID()); ok {
		v.(*Handle).Release()
	}

	c := d.get()
	live := 0
	d.handles.Range(func(_, _ any) bool {
		live++
		return true
	})
	if live > 0 {
		c.global.log.Warn().
			Int("handles", live).
			Msg("default storage torn down while goroutines still hold cached handles")
	}
	c.Release()
}
