package tcp

import (
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/asobel/multiloop/netloop"
	"github.com/asobel/multiloop/sockets"
)

func startAcceptorLoop(t *testing.T) (*netloop.EventLoop, func()) {
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
		t.Fatal("failed to start loop")
	}
	return loop, func() {
		loop.Quit()
		<-doneCh
	}
}

func TestAcceptorInvokesNewConnectionCallback(t *testing.T) {
	loop, stop := startAcceptorLoop(t)
	defer stop()

	probe, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probing a free port: %v", err)
	}
	port := uint16(probe.Addr().(*net.TCPAddr).Port)
	probe.Close()

	addr := sockets.NewAddress("127.0.0.1", port)
	acc, err := NewAcceptor(loop, addr, false)
	if err != nil {
		t.Fatalf("NewAcceptor: %v", err)
	}

	accepted := make(chan int, 1)
	acc.SetNewConnectionCallback(func(fd int, peer sockets.Address) {
		accepted <- fd
	})

	loop.RunInLoop(func() {
		if err := acc.Listen(); err != nil {
			t.Errorf("Listen: %v", err)
		}
	})

	time.Sleep(20 * time.Millisecond)
	client, err := net.Dial("tcp4", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	select {
	case fd := <-accepted:
		if fd < 0 {
			t.Fatalf("accepted invalid fd %d", fd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("new-connection callback never fired")
	}
}

func TestAcceptorClosesFDWhenNoCallbackInstalled(t *testing.T) {
	loop, stop := startAcceptorLoop(t)
	defer stop()

	probe, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("probing a free port: %v", err)
	}
	port := uint16(probe.Addr().(*net.TCPAddr).Port)
	probe.Close()

	addr := sockets.NewAddress("127.0.0.1", port)
	acc, err := NewAcceptor(loop, addr, false)
	if err != nil {
		t.Fatalf("NewAcceptor: %v", err)
	}
	loop.RunInLoop(func() {
		if err := acc.Listen(); err != nil {
			t.Errorf("Listen: %v", err)
		}
	})

	time.Sleep(20 * time.Millisecond)
	client, err := net.Dial("tcp4", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = client.Read(buf)
	if err == nil {
		t.Fatal("expected the unaccepted connection's fd to be closed, observed no EOF/error")
	}
}
