// File: netloop/loopthread.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netloop

import (
	"runtime"
	"sync"

	"github.com/asobel/multiloop/logging"
)

// ThreadInitCallback is invoked once on a freshly constructed loop,
// before it enters Loop(), on the thread that owns it.
type ThreadInitCallback func(*EventLoop)

// LoopThread pairs exactly one OS thread with exactly one EventLoop.
type LoopThread struct {
	name     string
	callback ThreadInitCallback

	mu      sync.Mutex
	cond    *sync.Cond
	loop    *EventLoop
	exiting bool

	done chan struct{}
}

// NewLoopThread constructs a LoopThread that has not yet started. name
// is used only for logging.
func NewLoopThread(name string, cb ThreadInitCallback) *LoopThread {
	t := &LoopThread{name: name, callback: cb, done: make(chan struct{})}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// StartLoop spawns the OS thread, blocks until the thread has
// constructed its loop and published the pointer, and returns it.
func (t *LoopThread) StartLoop() *EventLoop {
	go t.threadFunc()

	t.mu.Lock()
	defer t.mu.Unlock()
	for t.loop == nil {
		t.cond.Wait()
	}
	return t.loop
}

// threadFunc runs on its own OS thread for the lifetime of the loop:
// it locks the goroutine to the thread (so EventLoop's one-loop-per-
// thread guard and Gettid-based identity are meaningful), constructs
// the loop, publishes the pointer, then blocks in Loop() until Quit.
func (t *LoopThread) threadFunc() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	loop, err := New()
	if err != nil {
		// Fatal setup error: another loop already owns this thread, or
		// the poller/wakeup fd could not be created. There is no
		// recipient for the error at this point (StartLoop is blocked
		// on the condition variable), so this terminates the process
		// rather than leaving the caller hung forever on t.cond.Wait.
		logging.Default.Fatalf("netloop: thread %q: %v", t.name, err)
	}

	if t.callback != nil {
		t.callback(loop)
	}

	t.mu.Lock()
	t.loop = loop
	t.cond.Signal()
	t.mu.Unlock()

	loop.Loop()
	loop.Close()

	t.mu.Lock()
	t.loop = nil
	t.mu.Unlock()
	close(t.done)
}

// Stop sets the exiting flag, quits the loop, and waits for the thread
// to finish.
func (t *LoopThread) Stop() {
	t.mu.Lock()
	t.exiting = true
	loop := t.loop
	t.mu.Unlock()

	if loop != nil {
		loop.Quit()
		<-t.done
	}
}
