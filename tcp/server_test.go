package tcp

import (
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/asobel/multiloop/buffer"
	"github.com/asobel/multiloop/netloop"
	"github.com/asobel/multiloop/sockets"
)

// startMainLoop mirrors netloop's own test helper: it builds a loop on
// a goroutine locked to its own OS thread and runs it until stop is
// called.
func startMainLoop(t *testing.T) (*netloop.EventLoop, func()) {
	t.Helper()
	loopCh := make(chan *netloop.EventLoop, 1)
	doneCh := make(chan struct{})

	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		loop, err := netloop.New()
		if err != nil {
			t.Errorf("netloop.New: %v", err)
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
		t.Fatal("failed to start main loop")
	}
	return loop, func() {
		loop.Quit()
		<-doneCh
	}
}

func freePort(t *testing.T) uint16 {
	t.Helper()
	l, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probing a free port: %v", err)
	}
	defer l.Close()
	return uint16(l.Addr().(*net.TCPAddr).Port)
}

// TestEchoServerSingleClient exercises the pool-size-0 echo scenario:
// one client connects, sends a payload, and receives it back, with
// exactly one connection-up and one connection-down callback.
func TestEchoServerSingleClient(t *testing.T) {
	loop, stop := startMainLoop(t)
	defer stop()

	port := freePort(t)
	addr := sockets.NewAddress("127.0.0.1", port)

	srv, err := NewServer(loop, addr, "echo-test", NoReusePort)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	upDown := make(chan bool, 2)
	srv.SetConnectionCallback(func(conn *Connection) {
		upDown <- conn.Connected()
	})
	srv.SetMessageCallback(func(conn *Connection, buf *buffer.ByteBuffer, _ time.Time) {
		conn.Send([]byte(buf.RetrieveAllAsString()))
	})
	srv.Start()

	// Give the acceptor's RunInLoop a moment to take effect before the
	// client dials; RunInLoop onto the main loop from this foreign
	// goroutine is asynchronous.
	time.Sleep(20 * time.Millisecond)

	conn, err := net.Dial("tcp4", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := string(buf[:n]); got != "hello" {
		t.Fatalf("echoed %q, want %q", got, "hello")
	}

	select {
	case up := <-upDown:
		if !up {
			t.Fatal("expected connection-up callback first")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connection-up callback never fired")
	}

	conn.Close()

	select {
	case up := <-upDown:
		if up {
			t.Fatal("expected connection-down callback second")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("connection-down callback never fired")
	}
}

func TestServerStartIsIdempotent(t *testing.T) {
	loop, stop := startMainLoop(t)
	defer stop()

	addr := sockets.NewAddress("127.0.0.1", freePort(t))
	srv, err := NewServer(loop, addr, "idempotent-test", NoReusePort)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	srv.Start()
	srv.Start()
	srv.Start()

	if got := srv.started.Load(); got != 3 {
		t.Fatalf("started counter = %d, want 3 (listen still only happens once)", got)
	}
}
