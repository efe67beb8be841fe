//go:build linux
// +build linux

// File: sockets/socket_linux.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockets

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// setupError wraps a fatal-setup-class failure: socket/bind/listen
// creation problems the core's error-handling policy says should be
// logged at Fatal severity and terminate the process.
type setupError struct {
	op  string
	err error
}

func (e *setupError) Error() string { return fmt.Sprintf("sockets: %s: %v", e.op, e.err) }
func (e *setupError) Unwrap() error { return e.err }

// NewListening creates a non-blocking, close-on-exec IPv4 TCP socket,
// sets SO_REUSEADDR unconditionally and SO_REUSEPORT per reusePort, and
// binds it to addr.
func NewListening(addr Address, reusePort bool) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, &setupError{"socket", err}
	}
	s := &Socket{fd: fd}

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		s.Close()
		return nil, &setupError{"setsockopt SO_REUSEADDR", err}
	}
	if reusePort {
		if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1); err != nil {
			s.Close()
			return nil, &setupError{"setsockopt SO_REUSEPORT", err}
		}
	}

	if err := unix.Bind(fd, addr.sockaddrInet4()); err != nil {
		s.Close()
		return nil, &setupError{"bind", err}
	}
	return s, nil
}

// Listen puts the socket into the listening state with the fixed
// backlog the core always uses.
func (s *Socket) Listen() error {
	const backlog = 1024
	if err := unix.Listen(s.fd, backlog); err != nil {
		return &setupError{"listen", err}
	}
	return nil
}

// Accept atomically accepts one pending connection as non-blocking and
// close-on-exec, returning the new socket and the peer's address. On
// failure the zero Socket and an error are returned; the caller
// distinguishes EMFILE to apply the fd-exhaustion policy rather than
// the generic accept-error policy.
func (s *Socket) Accept() (*Socket, Address, error) {
	nfd, sa, err := unix.Accept4(s.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
	if err != nil {
		return nil, Address{}, err
	}
	return &Socket{fd: nfd}, addressFromSockaddr(sa), nil
}

// LocalAddr queries the address this socket is bound to, via
// getsockname — used by the server facade to report an accepted
// connection's local endpoint (spec'd as step 3 of new-connection
// handling: "Query the local bound address via getsockname").
func (s *Socket) LocalAddr() (Address, error) {
	sa, err := unix.Getsockname(s.fd)
	if err != nil {
		return Address{}, err
	}
	return addressFromSockaddr(sa), nil
}

// Write performs a single non-blocking write of b to the socket,
// returning the number of bytes the kernel accepted. A partial count is
// not an error; the caller is responsible for buffering and retrying
// the remainder once the socket reports writable again.
func (s *Socket) Write(b []byte) (int, error) {
	return unix.Write(s.fd, b)
}

// ShutdownWrite half-closes the write direction, the non-disruptive way
// the core tells the peer "no more data is coming" while still
// draining any of the peer's in-flight bytes.
func (s *Socket) ShutdownWrite() error {
	return unix.Shutdown(s.fd, unix.SHUT_WR)
}

// SetKeepAlive toggles SO_KEEPALIVE, applied by default to every
// accepted connection per §6 of the core's external interface.
func (s *Socket) SetKeepAlive(on bool) error {
	return unix.SetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, boolToInt(on))
}

// SetTCPNoDelay toggles TCP_NODELAY (disabling Nagle's algorithm). It
// is exposed for callers that want it, but the core does not invoke it
// on accepted sockets by default — the same asymmetry the original
// exhibits (the option exists on the wrapper but TcpConnection's
// constructor only ever calls setKeepAlive).
func (s *Socket) SetTCPNoDelay(on bool) error {
	return unix.SetsockoptInt(s.fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, boolToInt(on))
}

// SOError reads the socket's pending asynchronous error via
// getsockopt(SO_ERROR), used by a connection's error handler to log the
// specific failure reported by the kernel.
func (s *Socket) SOError() error {
	errno, err := unix.GetsockoptInt(s.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if errno == 0 {
		return nil
	}
	return unix.Errno(errno)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func closeFD(fd int) error {
	return unix.Close(fd)
}
