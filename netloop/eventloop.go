// File: netloop/eventloop.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netloop

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/asobel/multiloop/logging"
)

// pollTimeout bounds how long a single Poll call may block, and so how
// long the loop can go without re-checking its quit flag when neither an
// event nor a wakeup arrives.
const pollTimeout = 10 * time.Second

var (
	errShortWakeupWrite = errors.New("netloop: wakeup write wrote fewer than 8 bytes")
	errShortWakeupRead  = errors.New("netloop: wakeup read drained fewer than 8 bytes")
	// ErrAnotherLoopInThisThread is the fatal-setup error raised when a
	// second EventLoop is constructed on an OS thread that already owns
	// one.
	ErrAnotherLoopInThisThread = errors.New("netloop: another event loop already owns this thread")
)

// Task is a zero-argument unit of work marshalled onto a loop's owning
// thread.
type Task func()

// EventLoop is a single-threaded cooperative dispatcher: it owns a
// Poller, a wakeup descriptor used to interrupt a blocked poll from
// another thread, and a mutex-guarded queue of cross-thread tasks.
// Every method except RunInLoop, QueueInLoop, Quit, and Wakeup must
// only be called from the loop's owning OS thread.
type EventLoop struct {
	poller   Poller
	threadID int

	wakeupFD      int
	wakeupChannel *Channel

	mu      sync.Mutex
	pending *queue.Queue

	looping   atomic.Bool
	quitting  atomic.Bool
	callingPending atomic.Bool

	active []*Channel // reused across iterations, truncated not reallocated

	log *logging.Logger
}

// New constructs an EventLoop on the calling OS thread. The caller must
// have already locked the calling goroutine to its OS thread (via
// runtime.LockOSThread) for the lifetime of the loop; LoopThread does
// this automatically. Constructing a second loop on a thread that
// already owns one is a fatal-setup error.
func New() (*EventLoop, error) {
	tid := currentThreadID()

	poller, err := newDefaultPoller()
	if err != nil {
		return nil, err
	}

	wfd, err := newWakeupFD()
	if err != nil {
		poller.Close()
		return nil, err
	}

	l := &EventLoop{
		poller:   poller,
		threadID: tid,
		wakeupFD: wfd,
		pending:  queue.New(),
		log:      logging.Default,
	}

	if !claimThread(tid, l) {
		wakeupClose(wfd)
		poller.Close()
		return nil, ErrAnotherLoopInThisThread
	}

	l.wakeupChannel = NewChannel(l, wfd)
	l.wakeupChannel.SetReadHandler(l.handleWakeupRead)
	l.wakeupChannel.EnableReading()

	l.log.Debugf("EventLoop created in thread %d", tid)
	return l, nil
}

// Close tears down the loop's wakeup channel and releases its poller
// and wakeup descriptor. It must be called after Loop has returned.
func (l *EventLoop) Close() error {
	l.wakeupChannel.DisableAll()
	l.wakeupChannel.Remove()
	wakeupClose(l.wakeupFD)
	releaseThread(l.threadID)
	return l.poller.Close()
}

// IsInLoopThread reports whether the calling goroutine is running on
// this loop's owning OS thread.
func (l *EventLoop) IsInLoopThread() bool {
	return currentThreadID() == l.threadID
}

// Loop runs the dispatch cycle until Quit is observed. It must only be
// called from the owning thread, and only once.
func (l *EventLoop) Loop() {
	l.looping.Store(true)
	l.quitting.Store(false)
	l.log.Infof("EventLoop starting to loop")

	for !l.quitting.Load() {
		l.active = l.active[:0]
		active, now, err := l.poller.Poll(int(pollTimeout / time.Millisecond))
		if err != nil {
			l.log.Errorf("poller wait: %v", err)
		}
		l.active = append(l.active, active...)
		for _, ch := range l.active {
			ch.HandleEvent(now)
		}
		l.doPendingTasks()
	}

	l.log.Infof("EventLoop stopped looping")
	l.looping.Store(false)
}

// Quit requests the loop to stop. It is safe from any thread; if called
// from a thread other than the owner, it wakes a possibly blocked poll
// so the request is observed promptly rather than after the full
// 10-second timeout.
func (l *EventLoop) Quit() {
	l.quitting.Store(true)
	if !l.IsInLoopThread() {
		l.Wakeup()
	}
}

// RunInLoop executes task synchronously if the caller is already on the
// owning thread, otherwise it is handed to QueueInLoop.
func (l *EventLoop) RunInLoop(task Task) {
	if l.IsInLoopThread() {
		task()
		return
	}
	l.QueueInLoop(task)
}

// QueueInLoop always appends task to the pending queue, regardless of
// caller thread, and wakes the owning thread if it is not the caller or
// if the owner is currently draining a previous batch of pending tasks
// — the second condition ensures a task enqueued from inside another
// pending task's execution is observed in the very next iteration
// rather than waiting for the next poll timeout.
func (l *EventLoop) QueueInLoop(task Task) {
	l.mu.Lock()
	l.pending.Add(task)
	l.mu.Unlock()

	if !l.IsInLoopThread() || l.callingPending.Load() {
		l.Wakeup()
	}
}

// Wakeup writes to the wakeup descriptor, unblocking a poll that may be
// blocked on this loop's owning thread.
func (l *EventLoop) Wakeup() {
	if err := wakeupWrite(l.wakeupFD); err != nil {
		l.log.Errorf("wakeup write: %v", err)
	}
}

func (l *EventLoop) handleWakeupRead(time.Time) {
	if err := wakeupDrain(l.wakeupFD); err != nil {
		l.log.Errorf("wakeup drain: %v", err)
	}
}

// doPendingTasks swaps the pending queue for a fresh one under the
// lock — an O(1) pointer exchange, not an element-by-element copy — so
// the lock is held only long enough to publish the swap, and producers
// on other threads are never blocked while the owning thread executes a
// potentially long batch of tasks.
func (l *EventLoop) doPendingTasks() {
	l.callingPending.Store(true)
	defer l.callingPending.Store(false)

	l.mu.Lock()
	batch := l.pending
	l.pending = queue.New()
	l.mu.Unlock()

	for batch.Length() > 0 {
		task := batch.Remove().(Task)
		task()
	}
}

func (l *EventLoop) updateChannel(ch *Channel) {
	if err := l.poller.UpdateChannel(ch); err != nil {
		l.log.Errorf("poller update channel fd=%d: %v", ch.FD(), err)
	}
}

func (l *EventLoop) removeChannel(ch *Channel) {
	if err := l.poller.RemoveChannel(ch); err != nil {
		l.log.Errorf("poller remove channel fd=%d: %v", ch.FD(), err)
	}
}

// HasChannel reports whether ch is currently tracked by this loop's
// poller.
func (l *EventLoop) HasChannel(ch *Channel) bool {
	return l.poller.HasChannel(ch)
}
