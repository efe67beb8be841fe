//go:build linux
// +build linux

// File: netloop/wakeup_linux.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netloop

import "golang.org/x/sys/unix"

// newWakeupFD creates the per-loop event-signalling descriptor: an
// eventfd whose semantics are exactly the ones the core's external
// interface specifies — writes of 8-byte integers accumulate, a single
// read drains the counter to zero.
func newWakeupFD() (int, error) {
	return unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
}

func wakeupWrite(fd int) error {
	var one [8]byte
	one[0] = 1
	n, err := unix.Write(fd, one[:])
	if err != nil {
		return err
	}
	if n != 8 {
		return errShortWakeupWrite
	}
	return nil
}

func wakeupDrain(fd int) error {
	var buf [8]byte
	n, err := unix.Read(fd, buf[:])
	if err != nil {
		return err
	}
	if n != 8 {
		return errShortWakeupRead
	}
	return nil
}

func wakeupClose(fd int) error {
	return unix.Close(fd)
}
