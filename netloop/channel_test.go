package netloop

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestHandleEventDispatchOrder(t *testing.T) {
	ch := NewChannel(nil, 0)
	var order []string
	ch.SetCloseHandler(func() { order = append(order, "close") })
	ch.SetErrorHandler(func() { order = append(order, "error") })
	ch.SetReadHandler(func(time.Time) { order = append(order, "read") })
	ch.SetWriteHandler(func() { order = append(order, "write") })

	ch.SetRevents(uint32(unix.POLLERR) | EventRead | EventWrite)
	ch.HandleEvent(time.Now())

	want := []string{"error", "read", "write"}
	if len(order) != len(want) {
		t.Fatalf("got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("got %v, want %v", order, want)
		}
	}
}

func TestHandleEventHangupWithoutReadFiresClose(t *testing.T) {
	ch := NewChannel(nil, 0)
	var closed bool
	ch.SetCloseHandler(func() { closed = true })
	ch.SetRevents(uint32(unix.POLLHUP))
	ch.HandleEvent(time.Now())
	if !closed {
		t.Fatal("expected close handler to fire on hangup without read")
	}
}

func TestHandleEventHangupWithReadDoesNotFireClose(t *testing.T) {
	ch := NewChannel(nil, 0)
	var closed, read bool
	ch.SetCloseHandler(func() { closed = true })
	ch.SetReadHandler(func(time.Time) { read = true })
	ch.SetRevents(uint32(unix.POLLHUP) | EventRead)
	ch.HandleEvent(time.Now())
	if closed {
		t.Fatal("close handler should not fire when read is also reported")
	}
	if !read {
		t.Fatal("read handler should fire")
	}
}

func TestTieProbeSkipsDispatchWhenOwnerGone(t *testing.T) {
	ch := NewChannel(nil, 0)
	var fired bool
	ch.SetReadHandler(func(time.Time) { fired = true })
	ch.SetRevents(EventRead)
	ch.Tie(func() bool { return false })
	ch.HandleEvent(time.Now())
	if fired {
		t.Fatal("expected dispatch to be skipped when tie probe reports owner gone")
	}
}

func TestEnableDisableReadingTogglesInterest(t *testing.T) {
	loop := &EventLoop{poller: noopPoller{}}
	ch := NewChannel(loop, 0)
	ch.EnableReading()
	if !ch.IsReading() {
		t.Fatal("expected read interest enabled")
	}
	ch.DisableReading()
	if ch.IsReading() {
		t.Fatal("expected read interest disabled")
	}
}

// noopPoller satisfies Poller for tests that only exercise Channel's
// interest bookkeeping without a real readiness facility.
type noopPoller struct{}

func (noopPoller) Poll(int) ([]*Channel, time.Time, error) { return nil, time.Now(), nil }
func (noopPoller) UpdateChannel(*Channel) error            { return nil }
func (noopPoller) RemoveChannel(*Channel) error             { return nil }
func (noopPoller) HasChannel(*Channel) bool                 { return false }
func (noopPoller) Close() error                             { return nil }
