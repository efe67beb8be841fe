//go:build linux
// +build linux

package logging

import "golang.org/x/sys/unix"

func gettid() int {
	return unix.Gettid()
}
