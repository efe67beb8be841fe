package netloop

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// startTestLoop spawns a goroutine locked to its own OS thread, builds
// an EventLoop on it, and runs Loop() until the returned stop func is
// called. It mirrors what LoopThread does internally, kept separate so
// the eventloop tests don't depend on the loopthread_pool.go wiring.
func startTestLoop(t *testing.T) (*EventLoop, func()) {
	t.Helper()
	loopCh := make(chan *EventLoop, 1)
	doneCh := make(chan struct{})

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		loop, err := New()
		if err != nil {
			t.Errorf("New: %v", err)
			close(loopCh)
			return
		}
		loopCh <- loop
		loop.Loop()
		loop.Close()
		close(doneCh)
	}()

	loop := <-loopCh
	if loop == nil {
		t.Fatal("failed to start loop")
	}
	return loop, func() {
		loop.Quit()
		<-doneCh
	}
}

func TestRunInLoopExecutesSynchronouslyOnOwner(t *testing.T) {
	loop, stop := startTestLoop(t)
	defer stop()

	// Call RunInLoop from inside a task already running on the owning
	// thread, and check the inner task ran before RunInLoop returned.
	done := make(chan bool, 1)
	loop.QueueInLoop(func() {
		ran := false
		loop.RunInLoop(func() { ran = true })
		done <- ran
	})
	select {
	case ran := <-done:
		if !ran {
			t.Fatal("RunInLoop on the owning thread returned before running its task")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunInLoop task never ran")
	}
}

func TestQueueInLoopRunsExactlyOnceFromForeignThread(t *testing.T) {
	loop, stop := startTestLoop(t)
	defer stop()

	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)
	loop.QueueInLoop(func() {
		calls.Add(1)
		wg.Done()
	})

	waitCh := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitCh)
	}()

	select {
	case <-waitCh:
	case <-time.After(2 * time.Second):
		t.Fatal("queued task never ran")
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("task ran %d times, want 1", got)
	}
}

func TestQuitStopsLoopPromptly(t *testing.T) {
	_, stop := startTestLoop(t)
	done := make(chan struct{})
	go func() {
		// stop calls Quit from this foreign goroutine and waits for
		// Loop to return.
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop within 2s of Quit")
	}
}
