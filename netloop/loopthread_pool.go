// File: netloop/loopthread_pool.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netloop

import "fmt"

// LoopThreadPool holds the base (main) loop reference and owns zero or
// more LoopThreads, each running one subordinate EventLoop. Selection
// of the next loop for a new connection is purely round-robin with no
// load awareness, per the core's design.
type LoopThreadPool struct {
	baseLoop *EventLoop
	name     string

	numThreads int
	threads    []*LoopThread
	loops      []*EventLoop
	next       int

	started bool
}

// NewLoopThreadPool constructs a pool anchored on baseLoop, using name
// as the prefix for each spawned thread's display name.
func NewLoopThreadPool(baseLoop *EventLoop, name string) *LoopThreadPool {
	return &LoopThreadPool{baseLoop: baseLoop, name: name}
}

// SetNumThreads configures how many subordinate loops Start will spawn.
// It must be called before Start.
func (p *LoopThreadPool) SetNumThreads(n int) {
	p.numThreads = n
}

// Start spawns numThreads loop-threads in order, named "<name>0",
// "<name>1", and so on, collecting their loop pointers. If numThreads
// is 0 and cb is non-nil, cb runs against the base loop instead —
// single-threaded mode, where everything including connections runs on
// the main loop.
func (p *LoopThreadPool) Start(cb ThreadInitCallback) {
	p.started = true

	for i := 0; i < p.numThreads; i++ {
		name := fmt.Sprintf("%s%d", p.name, i)
		t := NewLoopThread(name, cb)
		p.threads = append(p.threads, t)
		p.loops = append(p.loops, t.StartLoop())
	}

	if p.numThreads == 0 && cb != nil {
		cb(p.baseLoop)
	}
}

// NextLoop returns the base loop if the pool has no subordinate loops,
// else the next loop in round-robin order.
func (p *LoopThreadPool) NextLoop() *EventLoop {
	if len(p.loops) == 0 {
		return p.baseLoop
	}
	loop := p.loops[p.next]
	p.next = (p.next + 1) % len(p.loops)
	return loop
}

// AllLoops returns every subordinate loop, or a single-element slice
// holding the base loop if the pool has none.
func (p *LoopThreadPool) AllLoops() []*EventLoop {
	if len(p.loops) == 0 {
		return []*EventLoop{p.baseLoop}
	}
	return p.loops
}

// Stop stops every subordinate loop-thread in order.
func (p *LoopThreadPool) Stop() {
	for _, t := range p.threads {
		t.Stop()
	}
}
