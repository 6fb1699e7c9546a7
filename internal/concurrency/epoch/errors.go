// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when the calling goroutine's default handle
	// storage has already been torn down.
	ErrUnavailable = errors.New("lfepoch: default handle unavailable")

	// ErrCollectorReleased is the panic value for using a released Collector.
	ErrCollectorReleased = errors.New("lfepoch: collector already released")
)

// violation panics on a broken usage contract.
func violation(format string, args ...any) {
	panic(fmt.Sprintf("lfepoch: "+format, args...))
}
