// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"fmt"
	"testing"
)

// worker is a goroutine that runs closures one at a time, so a test can drive
// a participant that lives on a goroutine of its own.
type worker struct {
	fns chan func()
	ack chan any
}

func newWorker() *worker {
	w := &worker{
		fns: make(chan func()),
		ack: make(chan any),
	}
	go func() {
		for fn := range w.fns {
			w.ack <- runRecovered(fn)
		}
	}()
	return w
}

// do runs fn on the worker goroutine and returns the value it panicked with,
// if any.
func (w *worker) do(fn func()) any {
	w.fns <- fn
	return <-w.ack
}

func (w *worker) stop() { close(w.fns) }

func runRecovered(fn func()) (recovered any) {
	defer func() { recovered = recover() }()
	fn()
	return nil
}

// withFreshDefaults swaps in empty default storage for the duration of a test.
func withFreshDefaults(t testing.TB) {
	t.Helper()
	prev := defaults.Load()
	defaults.Store(&defaultStorage{})
	t.Cleanup(func() { defaults.Store(prev) })
}

// panicMessage renders a recovered panic value for assertions.
func panicMessage(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
