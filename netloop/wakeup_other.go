//go:build !linux
// +build !linux

// File: netloop/wakeup_other.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netloop

import (
	"os"
)

// Off Linux there is no eventfd; a self-pipe stands in. Semantics are
// preserved at the level the core actually depends on (a write
// unblocks a blocked poll, a read drains it) even though the pipe
// does not coalesce writes into a counter the way eventfd does.
var selfPipes = map[int]*os.File{}

func newWakeupFD() (int, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return 0, err
	}
	selfPipes[int(r.Fd())] = w
	return int(r.Fd()), nil
}

func wakeupWrite(fd int) error {
	w, ok := selfPipes[fd]
	if !ok {
		return errShortWakeupWrite
	}
	_, err := w.Write([]byte{1})
	return err
}

func wakeupDrain(fd int) error {
	buf := make([]byte, 64)
	_, err := os.NewFile(uintptr(fd), "wakeup-read").Read(buf)
	return err
}

func wakeupClose(fd int) error {
	if w, ok := selfPipes[fd]; ok {
		w.Close()
		delete(selfPipes, fd)
	}
	return os.NewFile(uintptr(fd), "wakeup-read").Close()
}
