// File: tcp/acceptor.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"

	"github.com/asobel/multiloop/logging"
	"github.com/asobel/multiloop/netloop"
	"github.com/asobel/multiloop/sockets"
)

const listenBacklog = 1024

// newConnectionCallback hands a freshly accepted fd and its peer
// address to whoever owns the Acceptor; if unset, accepted fds are
// closed immediately to avoid a descriptor leak.
type newConnectionCallback func(fd int, peer sockets.Address)

// Acceptor owns a non-blocking, close-on-exec listening socket and the
// channel that watches it for incoming connections. It runs entirely on
// the loop it was constructed with — ordinarily the main loop of a
// Server.
type Acceptor struct {
	loop      *netloop.EventLoop
	sock      *sockets.Socket
	channel   *netloop.Channel
	listening bool

	newConnCb newConnectionCallback

	log *logging.Logger
}

// NewAcceptor binds a listening socket to addr on the calling thread and
// wires a read handler that will accept new connections once Listen is
// called. reusePort controls SO_REUSEPORT on the listening socket.
func NewAcceptor(loop *netloop.EventLoop, addr sockets.Address, reusePort bool) (*Acceptor, error) {
	sock, err := sockets.NewListening(addr, reusePort)
	if err != nil {
		return nil, err
	}

	a := &Acceptor{
		loop: loop,
		sock: sock,
		log:  logging.Default,
	}
	a.channel = netloop.NewChannel(loop, sock.FD())
	a.channel.SetReadHandler(func(time.Time) { a.handleRead() })
	return a, nil
}

// SetNewConnectionCallback installs the callback invoked for each
// accepted connection. Must be called before Listen.
func (a *Acceptor) SetNewConnectionCallback(cb newConnectionCallback) {
	a.newConnCb = cb
}

// Listen puts the socket into the listening state with a fixed backlog
// and enables read interest on its channel.
func (a *Acceptor) Listen() error {
	a.listening = true
	if err := a.sock.Listen(); err != nil {
		return err
	}
	a.channel.EnableReading()
	return nil
}

// Close disables and removes the acceptor's channel and closes its
// listening socket. It must run on the owning loop.
func (a *Acceptor) Close() error {
	a.channel.DisableAll()
	a.channel.Remove()
	return a.sock.Close()
}

func (a *Acceptor) handleRead() {
	conn, peer, err := a.sock.Accept()
	if err == nil {
		if a.newConnCb != nil {
			a.newConnCb(conn.FD(), peer)
		} else {
			conn.Close()
		}
		return
	}

	a.log.Errorf("acceptor: accept: %v", err)
	if errors.Is(err, unix.EMFILE) {
		a.log.Errorf("acceptor: descriptor limit reached, fd=%d", a.sock.FD())
		// Drop read interest now and restore it only after the next Poll
		// call has returned: the outer task runs in this iteration's
		// pending batch and queues the inner one for the next batch, so
		// the listening fd sits out one full loop iteration instead of
		// being re-polled straight away. Accept is retried after that one
		// iteration whether or not descriptors have been freed.
		a.channel.DisableReading()
		a.loop.QueueInLoop(func() {
			a.loop.QueueInLoop(func() {
				if a.listening {
					a.channel.EnableReading()
				}
			})
		})
	}
}
