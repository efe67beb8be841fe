// File: netloop/channel.go
// Package netloop implements the reactor core: the Channel abstraction,
// the Readiness Poller (epoll- and poll-backed variants), the Event
// Loop that drives them, and the Loop-Thread / Loop-Thread-Pool pair
// that runs N subordinate loops. All of these share one package because
// Channel and Poller are mutually referential (a Channel carries its
// pollerIndex, a Poller dispatches by walking live Channels) — splitting
// the interface from its implementations would just push that cycle
// through an extra indirection layer instead of removing it.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netloop

import (
	"time"

	"golang.org/x/sys/unix"
)

// Interest and reported-event bitmasks. The numeric values are taken
// directly from poll(2)'s bit positions, which the Linux kernel defines
// identically for epoll(7) (EPOLLIN == POLLIN, EPOLLOUT == POLLOUT, and
// so on) — so both poller variants read and write the same Channel
// fields without a translation layer.
const (
	EventNone  uint32 = 0
	EventRead  uint32 = unix.POLLIN | unix.POLLPRI
	EventWrite uint32 = unix.POLLOUT
	eventError uint32 = unix.POLLERR
	eventHup   uint32 = unix.POLLHUP
)

// pollerIndex is the poller-private state tag a Channel carries: new
// (never registered), registered (currently in the poller), or
// deregistered (was registered, currently not). NewChannel starts every
// Channel at indexNew (-1); the zero value 0 is not one of the three tags.
type pollerIndex int

const (
	indexNew pollerIndex = iota - 1
	_
	indexRegistered
	indexDeregistered
)

// ReadHandler is invoked when a Channel's fd reports readable or
// urgent-readable data, with the timestamp the poller captured the
// event at.
type ReadHandler func(now time.Time)

// Handler is invoked for write-ready, close, and error notifications,
// none of which need the timestamp.
type Handler func()

// Channel binds a file descriptor to an interest mask and a set of
// handlers, and is the poller's unit of work. A Channel does not own
// its fd; the caller that constructed it is responsible for closing
// the fd only after the Channel has been removed from its loop.
type Channel struct {
	loop *EventLoop
	fd   int

	events  uint32
	revents uint32
	index   pollerIndex

	readHandler  ReadHandler
	writeHandler Handler
	closeHandler Handler
	errorHandler Handler

	// tieProbe substitutes for the original's weak_ptr<void> liveness
	// guard: Go has no portable weak reference in the language version
	// this module targets, so Tie installs a probe closure the owner
	// flips to report "I am gone" instead of a weak pointer that would
	// fail to upgrade. HandleEvent treats a probe returning false
	// exactly like a failed weak_ptr::lock(): dispatch is skipped.
	tieProbe func() bool
}

// NewChannel constructs a Channel over fd, owned by loop. The Channel
// starts with no interest and index new, i.e. absent from the poller.
func NewChannel(loop *EventLoop, fd int) *Channel {
	return &Channel{loop: loop, fd: fd, index: indexNew}
}

// FD returns the channel's file descriptor.
func (c *Channel) FD() int { return c.fd }

// Events returns the current interest mask.
func (c *Channel) Events() uint32 { return c.events }

// SetRevents is called by the poller after a wait returns, recording
// which of the channel's interests were actually observed ready.
func (c *Channel) SetRevents(revt uint32) { c.revents = revt }

func (c *Channel) pollerState() pollerIndex       { return c.index }
func (c *Channel) setPollerState(i pollerIndex)   { c.index = i }

// SetReadHandler installs the read handler.
func (c *Channel) SetReadHandler(h ReadHandler) { c.readHandler = h }

// SetWriteHandler installs the write handler.
func (c *Channel) SetWriteHandler(h Handler) { c.writeHandler = h }

// SetCloseHandler installs the close handler.
func (c *Channel) SetCloseHandler(h Handler) { c.closeHandler = h }

// SetErrorHandler installs the error handler.
func (c *Channel) SetErrorHandler(h Handler) { c.errorHandler = h }

// Tie installs a liveness probe. HandleEvent calls probe before
// dispatching and skips dispatch entirely if probe returns false,
// exactly as the original skips dispatch when its weak_ptr fails to
// upgrade — see the tieProbe field doc for why a probe closure stands
// in for a weak pointer here.
func (c *Channel) Tie(probe func() bool) { c.tieProbe = probe }

// EnableReading adds read interest and pushes the change to the poller.
func (c *Channel) EnableReading() {
	c.events |= EventRead
	c.update()
}

// DisableReading removes read interest and pushes the change.
func (c *Channel) DisableReading() {
	c.events &^= EventRead
	c.update()
}

// EnableWriting adds write interest and pushes the change.
func (c *Channel) EnableWriting() {
	c.events |= EventWrite
	c.update()
}

// DisableWriting removes write interest and pushes the change.
func (c *Channel) DisableWriting() {
	c.events &^= EventWrite
	c.update()
}

// DisableAll clears the interest mask entirely and pushes the change.
func (c *Channel) DisableAll() {
	c.events = EventNone
	c.update()
}

// IsNoneEvent reports whether the channel currently has no interest.
func (c *Channel) IsNoneEvent() bool { return c.events == EventNone }

// IsWriting reports whether write interest is currently enabled.
func (c *Channel) IsWriting() bool { return c.events&EventWrite != 0 }

// IsReading reports whether read interest is currently enabled.
func (c *Channel) IsReading() bool { return c.events&EventRead != 0 }

// Remove asks the owning loop to remove this channel from its poller.
// The channel must have no further handlers invoked on it after this
// returns; the caller is responsible for not closing the fd before
// calling Remove.
func (c *Channel) Remove() {
	c.loop.removeChannel(c)
}

func (c *Channel) update() {
	c.loop.updateChannel(c)
}

// HandleEvent dispatches the channel's handlers for the current
// reported event mask, in the fixed order the core's dispatch contract
// requires: close-on-hangup-without-read first, then error, then read,
// then write. If a liveness probe is installed and reports the owner
// gone, dispatch is skipped entirely.
func (c *Channel) HandleEvent(now time.Time) {
	if c.tieProbe != nil && !c.tieProbe() {
		return
	}
	c.handleEventWithGuard(now)
}

func (c *Channel) handleEventWithGuard(now time.Time) {
	if c.revents&eventHup != 0 && c.revents&EventRead == 0 {
		if c.closeHandler != nil {
			c.closeHandler()
		}
	}
	if c.revents&eventError != 0 {
		if c.errorHandler != nil {
			c.errorHandler()
		}
	}
	if c.revents&EventRead != 0 {
		if c.readHandler != nil {
			c.readHandler(now)
		}
	}
	if c.revents&EventWrite != 0 {
		if c.writeHandler != nil {
			c.writeHandler()
		}
	}
}
