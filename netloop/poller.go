// File: netloop/poller.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netloop

import (
	"os"
	"time"
)

// usePollEnvVar is the single recognized environment variable the
// factory consults: the edge-triggered-capable variant is the default,
// and setting this variable to any non-empty value selects the
// level-triggered variant instead.
const usePollEnvVar = "NETLOOP_USE_POLL"

// Poller is the capability set an EventLoop depends on: blocking wait
// that returns ready channels, and add/modify/remove of a channel's
// interest. Implementations must not be selected per-call — exactly
// one variant is chosen once, at loop construction.
type Poller interface {
	// Poll blocks up to timeoutMs milliseconds and returns the channels
	// whose last-reported event mask was set by this call, along with
	// the timestamp captured immediately after the syscall returned.
	Poll(timeoutMs int) (active []*Channel, now time.Time, err error)

	// UpdateChannel registers, modifies, or deregisters ch depending on
	// its current poller state tag and interest mask.
	UpdateChannel(ch *Channel) error

	// RemoveChannel removes ch from the poller entirely, resetting its
	// state tag to new.
	RemoveChannel(ch *Channel) error

	// HasChannel reports whether ch is currently tracked by the poller
	// (state registered or deregistered).
	HasChannel(ch *Channel) bool

	// Close releases the underlying readiness handle.
	Close() error
}

// newDefaultPoller selects the edge-triggered-capable variant unless
// usePollEnvVar is set, in which case it selects the level-triggered
// variant — the single environment-variable-driven choice the core's
// external interface (§6) specifies.
func newDefaultPoller() (Poller, error) {
	if os.Getenv(usePollEnvVar) != "" {
		return newPollPoller()
	}
	return newEpollPoller()
}
