//go:build linux
// +build linux

// File: buffer/bytebuffer_linux.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package buffer

import "golang.org/x/sys/unix"

// extraBufSize is the size of the stack-resident overflow buffer used by
// ReadFD when the socket has more bytes queued than the buffer's current
// writable region can hold in one scatter read.
const extraBufSize = 64 * 1024

// ReadFD performs a scatter read from fd into the writable region,
// spilling into a stack-resident 64KiB overflow buffer when the kernel
// has more queued than WritableBytes() can hold in one syscall. It
// returns the raw result of the underlying syscall unmodified: n == 0
// means the peer performed an orderly shutdown, n > 0 is bytes received;
// a negative result is never returned, the error is surfaced via err
// instead so callers branch on Go's idiomatic error channel.
func (b *ByteBuffer) ReadFD(fd int) (int, error) {
	var extraBuf [extraBufSize]byte
	writable := b.WritableBytes()

	n, err := unix.Readv(fd, [][]byte{b.buf[b.w:len(b.buf)], extraBuf[:]})
	if err != nil {
		return 0, err
	}
	if n <= writable {
		b.w += n
	} else {
		b.w = len(b.buf)
		b.Append(extraBuf[:n-writable])
	}
	return n, nil
}

// WriteFD performs a single, non-blocking write of the entire readable
// region to fd. It does not advance the read cursor; on success the
// caller retrieves the bytes actually written.
func (b *ByteBuffer) WriteFD(fd int) (int, error) {
	n, err := unix.Write(fd, b.Peek())
	if err != nil {
		return 0, err
	}
	return n, nil
}
