// File: sockets/socket.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockets

// Socket is a scoped owner of a listening or connected file descriptor.
// It is not safe for concurrent use from multiple goroutines; ownership
// is expected to move to a single Channel/Connection after construction.
type Socket struct {
	fd int
}

// SocketFromFD wraps an already-open file descriptor, e.g. one handed
// back by Accept, without performing any setup of its own.
func SocketFromFD(fd int) *Socket {
	return &Socket{fd: fd}
}

// FD returns the underlying file descriptor, for callers that need to
// register it with a poller or pass it to a raw syscall this wrapper
// does not expose directly.
func (s *Socket) FD() int { return s.fd }

// Close releases the file descriptor. It is idempotent-unsafe to call
// twice, matching the scoped-acquisition contract: exactly one owner
// closes exactly once.
func (s *Socket) Close() error {
	return closeFD(s.fd)
}
