// File: tcp/server.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package tcp

import (
	"fmt"
	"sync/atomic"

	"github.com/asobel/multiloop/logging"
	"github.com/asobel/multiloop/netloop"
	"github.com/asobel/multiloop/sockets"
)

// Option controls SO_REUSEPORT on the server's listening socket.
type Option int

const (
	NoReusePort Option = iota
	ReusePort
)

// Server owns the acceptor and the subordinate loop pool, and is the
// entry point application code constructs and configures. Its main
// loop accepts connections and hands each to the next subordinate loop
// in round-robin order; it never runs a connection's I/O itself once
// the pool has at least one thread.
type Server struct {
	loop     *netloop.EventLoop
	ipPort   string
	name     string
	acceptor *Acceptor
	pool     *netloop.LoopThreadPool

	connectionCallback    ConnectionCallback
	messageCallback       MessageCallback
	writeCompleteCallback WriteCompleteCallback
	threadInitCallback    netloop.ThreadInitCallback

	started atomic.Int32

	nextConnID int
	conns      map[string]*Connection

	log *logging.Logger
}

// NewServer constructs a Server bound to loop (its main loop), which
// will listen on listenAddr once Start is called.
func NewServer(loop *netloop.EventLoop, listenAddr sockets.Address, name string, opt Option) (*Server, error) {
	acceptor, err := NewAcceptor(loop, listenAddr, opt == ReusePort)
	if err != nil {
		return nil, err
	}

	s := &Server{
		loop:     loop,
		ipPort:   listenAddr.String(),
		name:     name,
		acceptor: acceptor,
		pool:     netloop.NewLoopThreadPool(loop, name),
		conns:    make(map[string]*Connection),
		log:      logging.Default,
	}
	s.nextConnID = 1
	acceptor.SetNewConnectionCallback(s.newConnection)
	return s, nil
}

// SetThreadInitCallback installs the callback fired once on each
// subordinate loop at thread startup.
func (s *Server) SetThreadInitCallback(cb netloop.ThreadInitCallback) { s.threadInitCallback = cb }

// SetConnectionCallback installs the callback forwarded to every
// connection this server creates.
func (s *Server) SetConnectionCallback(cb ConnectionCallback) { s.connectionCallback = cb }

// SetMessageCallback installs the callback forwarded to every
// connection this server creates.
func (s *Server) SetMessageCallback(cb MessageCallback) { s.messageCallback = cb }

// SetWriteCompleteCallback installs the callback forwarded to every
// connection this server creates.
func (s *Server) SetWriteCompleteCallback(cb WriteCompleteCallback) {
	s.writeCompleteCallback = cb
}

// SetThreadNum configures how many subordinate loops Start will spawn.
// Must be called before Start; 0 runs every connection on the main
// loop.
func (s *Server) SetThreadNum(n int) { s.pool.SetNumThreads(n) }

// Start is idempotent: the first call starts the thread pool and
// schedules the acceptor's listen onto the main loop; re-entrant calls
// are no-ops.
func (s *Server) Start() {
	if s.started.Add(1) == 1 {
		s.pool.Start(s.threadInitCallback)
		s.loop.RunInLoop(func() {
			if err := s.acceptor.Listen(); err != nil {
				s.log.Fatalf("server %s: listen: %v", s.name, err)
			}
		})
	}
}

// newConnection is the acceptor's new-connection callback: it runs on
// the main loop, picks a subordinate loop, builds the connection's
// name and looks up its local endpoint, constructs the Connection, and
// schedules its establishment.
func (s *Server) newConnection(fd int, peer sockets.Address) {
	ioLoop := s.pool.NextLoop()

	connName := fmt.Sprintf("%s-%s#%d", s.name, s.ipPort, s.nextConnID)
	s.nextConnID++

	local, err := sockets.SocketFromFD(fd).LocalAddr()
	if err != nil {
		s.log.Errorf("server %s: getsockname: %v", s.name, err)
	}

	s.log.Infof("server %s: new connection [%s] from %s", s.name, connName, peer)

	conn := NewConnection(ioLoop, connName, fd, local, peer)
	s.conns[connName] = conn
	conn.SetConnectionCallback(s.connectionCallback)
	conn.SetMessageCallback(s.messageCallback)
	conn.SetWriteCompleteCallback(s.writeCompleteCallback)
	conn.setCloseCallback(s.removeConnection)

	ioLoop.RunInLoop(conn.ConnectEstablished)
}

// removeConnection hops to the main loop if called from elsewhere, then
// erases the registry entry and schedules the connection's final
// teardown on its own loop.
func (s *Server) removeConnection(conn *Connection) {
	if !s.loop.IsInLoopThread() {
		s.loop.RunInLoop(func() { s.removeConnection(conn) })
		return
	}

	s.log.Infof("server %s: removing connection [%s]", s.name, conn.Name())
	delete(s.conns, conn.Name())
	conn.Loop().QueueInLoop(conn.ConnectDestroyed)
}
