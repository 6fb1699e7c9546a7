// Licensed under the MIT License. See LICENSE file in the project root for details.

package epoch

import "sync"

// localPool recycles participant records. A record only comes back here after
// it was unlinked from a registry and a grace period passed.
type localPool struct {
	pool sync.Pool
}

var localRecords = newLocalPool()

func newLocalPool() *localPool {
	return &localPool{
		pool: sync.Pool{
			New: func() interface{} {
				return &Local{}
			},
		},
	}
}

// Get retrieves a Local from the pool or creates a new one
func (p *localPool) Get() *Local {
	return p.pool.Get().(*Local)
}

// Put returns a Local to the pool after resetting its fields
func (p *localPool) Put(l *Local) {
	l.epoch.store(starting())
	l.global = nil
	l.node = nil
	l.bag.reset()
	l.guardCount = 0
	l.handleCount = 0
	l.pinCount = 0
	l.owner = 0
	l.checks = false
	l.dead = false

	p.pool.Put(l)
}
