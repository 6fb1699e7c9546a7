// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package lockfree provides the lock-free containers the epoch collector is
// built on: a singly linked list with logical deletion, used as
// the participant registry, and a Michael-Scott queue, used as the global
// garbage queue.
//
// # Key Features
//
//   - CAS-based insertion at the head of the list, safe against concurrent scans
//   - Logical deletion (tombstone) with lazy physical unlinking during iteration
//   - Multi-producer multi-consumer queue with conditional pop
//
// # List Deletion Protocol
//
// Every node owns an immutable link value {next, deleted} that is replaced as a
// whole with compare-and-swap. Deleting a node swaps in a link with the deleted
// flag set; from then on the node's successor can never change. Iterate unlinks
// tombstoned nodes it walks past by swapping the predecessor's link. If such a
// swap loses a race the iteration stops with ErrStalled instead of retrying.
//
// # Dangers and Warnings
//
//   - **Stalls**: Iterate may return ErrStalled under contention. Callers must treat
//     this as "try again later", never as a fatal condition.
//   - **Unlink Callback**: The unlinked callback runs exactly once per node, on the
//     goroutine that won the unlink. Other iterators may still hold the node's value.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Node memory is managed by the Go
// garbage collector, so a traversal holding a node pointer never observes freed
// memory. Reuse of the values stored in nodes is the caller's responsibility.
package lockfree

import (
	"errors"
	"sync/atomic"
)

// ErrStalled reports that an iteration gave up after losing an unlink race.
var ErrStalled = errors.New("lockfree: iteration stalled")

// link is the immutable successor record of a node.
type link[T any] struct {
	next    *Node[T]
	deleted bool
}

// Node is an entry of a List.
type Node[T any] struct {
	value T
	next  atomic.Pointer[link[T]]
}

// Value returns the value stored in the node.
func (n *Node[T]) Value() T { return n.value }

// Delete marks the node as deleted. It reports false if the node was already
// deleted. The node is physically removed by a later Iterate.
func (n *Node[T]) Delete() bool {
	for {
		cur := n.next.Load()
		if cur.deleted {
			return false
		}
		if n.next.CompareAndSwap(cur, &link[T]{next: cur.next, deleted: true}) {
			return true
		}
	}
}

// Deleted reports whether the node has been logically deleted.
func (n *Node[T]) Deleted() bool {
	return n.next.Load().deleted
}

// List is a lock-free singly linked list. The zero value is an empty list.
type List[T any] struct {
	head atomic.Pointer[Node[T]]
}

// Insert pushes a value at the head of the list and returns its node.
func (l *List[T]) Insert(v T) *Node[T] {
	n := &Node[T]{value: v}
	for {
		head := l.head.Load()
		n.next.Store(&link[T]{next: head})
		if l.head.CompareAndSwap(head, n) {
			return n
		}
	}
}

// Iterate calls yield for every live value until yield returns false.
// Deleted nodes encountered on the way are unlinked and passed to unlinked,
// which may be nil. ErrStalled is returned when an unlink loses a race.
func (l *List[T]) Iterate(yield func(T) bool, unlinked func(T)) error {
	var (
		pred     *Node[T]
		predLink *link[T]
	)
	cur := l.head.Load()
	for cur != nil {
		cl := cur.next.Load()
		if cl.deleted {
			if pred == nil {
				if !l.head.CompareAndSwap(cur, cl.next) {
					return ErrStalled
				}
			} else {
				nl := &link[T]{next: cl.next}
				if !pred.next.CompareAndSwap(predLink, nl) {
					return ErrStalled
				}
				predLink = nl
			}
			if unlinked != nil {
				unlinked(cur.value)
			}
			cur = cl.next
			continue
		}
		if !yield(cur.value) {
			return nil
		}
		pred, predLink = cur, cl
		cur = cl.next
	}
	return nil
}

// Len returns the number of live (not deleted) nodes. It is a snapshot and may
// be stale by the time it returns.
func (l *List[T]) Len() int {
	n := 0
	for cur := l.head.Load(); cur != nil; {
		cl := cur.next.Load()
		if !cl.deleted {
			n++
		}
		cur = cl.next
	}
	return n
}

// Nodes returns the number of physically linked nodes, deleted or not.
func (l *List[T]) Nodes() int {
	n := 0
	for cur := l.head.Load(); cur != nil; cur = cur.next.Load().next {
		n++
	}
	return n
}
