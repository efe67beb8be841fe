// File: tcp/connection.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	"github.com/asobel/multiloop/buffer"
	"github.com/asobel/multiloop/logging"
	"github.com/asobel/multiloop/netloop"
	"github.com/asobel/multiloop/sockets"
)

// connState is a Connection's position in its state machine.
type connState int32

const (
	stateConnecting connState = iota
	stateConnected
	stateDisconnecting
	stateDisconnected
)

// DefaultHighWaterMark is the output-buffer threshold a Connection uses
// when none is configured via SetHighWaterMarkCallback: 64MiB, the same
// default the core's connection type has always carried.
const DefaultHighWaterMark = 64 << 20

// Connection wraps one established TCP socket: its channel, its input
// and output buffers, and the state machine that governs when each may
// be touched. A Connection is pinned to the EventLoop it was
// constructed with for its entire lifetime.
type Connection struct {
	loop *netloop.EventLoop
	name string
	state atomic.Int32

	sock    *sockets.Socket
	channel *netloop.Channel

	localAddr sockets.Address
	peerAddr  sockets.Address

	connectionCallback     ConnectionCallback
	messageCallback        MessageCallback
	writeCompleteCallback  WriteCompleteCallback
	highWaterMarkCallback  HighWaterMarkCallback
	highWaterMark          int

	closeCb closeCallback

	input  *buffer.ByteBuffer
	output *buffer.ByteBuffer

	// alive backs the channel's tie probe. It substitutes for a weak
	// reference: ConnectDestroyed flips it to false so any handler
	// dispatch still in flight on the channel is skipped rather than
	// touching a connection the server has already forgotten.
	alive atomic.Bool

	log *logging.Logger
}

// NewConnection constructs a Connection for an already-accepted fd,
// bound to loop, in state connecting. The caller must invoke
// ConnectEstablished on loop's thread before the connection is usable.
func NewConnection(loop *netloop.EventLoop, name string, fd int, local, peer sockets.Address) *Connection {
	c := &Connection{
		loop:          loop,
		name:          name,
		sock:          sockets.SocketFromFD(fd),
		localAddr:     local,
		peerAddr:      peer,
		highWaterMark: DefaultHighWaterMark,
		input:         buffer.New(),
		output:        buffer.New(),
		log:           logging.Default,
	}
	c.state.Store(int32(stateConnecting))
	c.alive.Store(true)
	c.channel = netloop.NewChannel(loop, fd)
	c.channel.SetReadHandler(c.handleRead)
	c.channel.SetWriteHandler(c.handleWrite)
	c.channel.SetCloseHandler(c.handleClose)
	c.channel.SetErrorHandler(c.handleError)

	c.log.Infof("connection %s: constructed at fd=%d", name, fd)
	if err := c.sock.SetKeepAlive(true); err != nil {
		c.log.Errorf("connection %s: set keepalive: %v", name, err)
	}
	return c
}

// Name returns the connection's unique name within its server.
func (c *Connection) Name() string { return c.name }

// LocalAddr returns the server-side endpoint of this connection.
func (c *Connection) LocalAddr() sockets.Address { return c.localAddr }

// PeerAddr returns the client-side endpoint of this connection.
func (c *Connection) PeerAddr() sockets.Address { return c.peerAddr }

// Loop returns the subordinate loop this connection is pinned to.
func (c *Connection) Loop() *netloop.EventLoop { return c.loop }

// Connected reports whether the connection is currently in the
// connected state.
func (c *Connection) Connected() bool { return c.State() == stateConnected }

func (c *Connection) State() connState { return connState(c.state.Load()) }

// SetConnectionCallback installs the user callback fired on both
// establishment and teardown.
func (c *Connection) SetConnectionCallback(cb ConnectionCallback) { c.connectionCallback = cb }

// SetMessageCallback installs the user callback fired on every
// successful non-empty read.
func (c *Connection) SetMessageCallback(cb MessageCallback) { c.messageCallback = cb }

// SetWriteCompleteCallback installs the user callback fired once a send
// has fully drained.
func (c *Connection) SetWriteCompleteCallback(cb WriteCompleteCallback) {
	c.writeCompleteCallback = cb
}

// SetHighWaterMarkCallback installs the user callback fired when a send
// crosses mark from below, and sets that threshold.
func (c *Connection) SetHighWaterMarkCallback(cb HighWaterMarkCallback, mark int) {
	c.highWaterMarkCallback = cb
	c.highWaterMark = mark
}

// setCloseCallback installs the internal hand-back a Server uses to
// learn when to remove this connection from its registry. Application
// code never calls this directly.
func (c *Connection) setCloseCallback(cb closeCallback) { c.closeCb = cb }

// Send schedules data for transmission. It is safe to call from any
// thread; if the caller is already on the owning loop the write is
// attempted immediately, otherwise it is marshalled via the loop's task
// queue. data is copied before this call returns, so the caller may
// reuse or mutate the slice afterward.
func (c *Connection) Send(data []byte) {
	if c.State() != stateConnected {
		return
	}
	payload := append([]byte(nil), data...)
	c.loop.RunInLoop(func() { c.sendInLoop(payload) })
}

// Shutdown requests a half-close of the write direction once any queued
// output has drained. It is safe to call from any thread.
func (c *Connection) Shutdown() {
	if c.state.CompareAndSwap(int32(stateConnected), int32(stateDisconnecting)) {
		c.loop.RunInLoop(c.shutdownInLoop)
	}
}

func (c *Connection) shutdownInLoop() {
	if !c.channel.IsWriting() {
		if err := c.sock.ShutdownWrite(); err != nil {
			c.log.Errorf("connection %s: shutdown write: %v", c.name, err)
		}
	}
}

// sendInLoop is the owner-thread-only implementation behind Send. It
// attempts a direct write when nothing is already queued, buffers any
// remainder, and fires the high-water and write-complete callbacks per
// the core's crossing rules.
func (c *Connection) sendInLoop(data []byte) {
	if c.State() == stateDisconnected {
		c.log.Errorf("connection %s: disconnected, give up writing", c.name)
		return
	}

	nwrote := 0
	remaining := len(data)
	fault := false

	if !c.channel.IsWriting() && c.output.ReadableBytes() == 0 {
		n, err := c.sock.Write(data)
		if err == nil {
			nwrote = n
			remaining = len(data) - n
			if remaining == 0 && c.writeCompleteCallback != nil {
				cb := c.writeCompleteCallback
				c.loop.QueueInLoop(func() { cb(c) })
			}
		} else if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EWOULDBLOCK) {
			c.log.Errorf("connection %s: write: %v", c.name, err)
			if errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ECONNRESET) {
				fault = true
			}
		}
	}

	if !fault && remaining > 0 {
		oldLen := c.output.ReadableBytes()
		if oldLen+remaining >= c.highWaterMark && oldLen < c.highWaterMark && c.highWaterMarkCallback != nil {
			cb := c.highWaterMarkCallback
			total := oldLen + remaining
			c.loop.QueueInLoop(func() { cb(c, total) })
		}
		c.output.Append(data[nwrote:])
		if !c.channel.IsWriting() {
			c.channel.EnableWriting()
		}
	}
}

// ConnectEstablished transitions the connection to connected, ties its
// channel to this connection's liveness, enables read interest, and
// fires the user connection callback. It must run on the owning loop,
// exactly once, before any other handler on this connection's channel.
func (c *Connection) ConnectEstablished() {
	c.state.Store(int32(stateConnected))
	c.channel.Tie(func() bool { return c.alive.Load() })
	c.channel.EnableReading()
	if c.connectionCallback != nil {
		c.connectionCallback(c)
	}
}

// ConnectDestroyed performs final teardown: if still connected, it
// transitions to disconnected and fires the user connection callback
// once more (so the callback can distinguish up from down via
// Connected()); then it unconditionally disables the probe and removes
// the channel from the poller. It must run on the owning loop.
func (c *Connection) ConnectDestroyed() {
	if c.State() == stateConnected {
		c.state.Store(int32(stateDisconnected))
		c.channel.DisableAll()
		if c.connectionCallback != nil {
			c.connectionCallback(c)
		}
	}
	c.alive.Store(false)
	c.channel.Remove()
}

func (c *Connection) handleRead(now time.Time) {
	n, err := c.input.ReadFD(c.sock.FD())
	switch {
	case err != nil:
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
			return
		}
		c.log.Errorf("connection %s: read: %v", c.name, err)
		c.handleError()
		c.handleClose()
	case n == 0:
		c.handleClose()
	default:
		if c.messageCallback != nil {
			c.messageCallback(c, c.input, now)
		}
	}
}

func (c *Connection) handleWrite() {
	if !c.channel.IsWriting() {
		c.log.Errorf("connection %s: fd=%d is down, no more writing", c.name, c.channel.FD())
		return
	}

	n, err := c.output.WriteFD(c.sock.FD())
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
			return
		}
		c.log.Errorf("connection %s: write: %v", c.name, err)
		return
	}

	c.output.Retrieve(n)
	if c.output.ReadableBytes() == 0 {
		c.channel.DisableWriting()
		if c.writeCompleteCallback != nil {
			cb := c.writeCompleteCallback
			c.loop.QueueInLoop(func() { cb(c) })
		}
		if c.State() == stateDisconnecting {
			c.shutdownInLoop()
		}
	}
}

func (c *Connection) handleClose() {
	c.state.Store(int32(stateDisconnected))
	c.channel.DisableAll()
	if c.connectionCallback != nil {
		c.connectionCallback(c)
	}
	if c.closeCb != nil {
		c.closeCb(c)
	}
}

func (c *Connection) handleError() {
	err := c.sock.SOError()
	c.log.Errorf("connection %s: SO_ERROR = %v", c.name, err)
}
