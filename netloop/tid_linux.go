//go:build linux
// +build linux

package netloop

import "golang.org/x/sys/unix"

func currentThreadID() int {
	return unix.Gettid()
}
