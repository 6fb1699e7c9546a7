// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import "github.com/joeycumines/goroutineid"

// goroutineID returns the current goroutine's ID. IDs are never reused.
func goroutineID() uint64 {
	return uint64(goroutineid.Get())
}
