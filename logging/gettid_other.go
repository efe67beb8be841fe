//go:build !linux
// +build !linux

package logging

import "os"

// gettid has no portable equivalent off Linux; the process id stands in
// so every log line still carries a stable numeric identity.
func gettid() int {
	return os.Getpid()
}
