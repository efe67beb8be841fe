//go:build linux || darwin || freebsd || netbsd || openbsd
// +build linux darwin freebsd netbsd openbsd

// File: netloop/poller_poll_unix.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netloop

import (
	"time"

	"golang.org/x/sys/unix"
)

// pollPoller is the level-triggered variant, selected when the
// NETLOOP_USE_POLL environment variable is set. Unlike the epoll
// variant it re-derives its pollfd slice from the channel map on every
// call rather than maintaining kernel-side state incrementally, which
// is inherent to poll(2)'s stateless-per-call contract.
type pollPoller struct {
	channels map[int]*Channel // fd -> channel
}

func newPollPoller() (Poller, error) {
	return &pollPoller{channels: make(map[int]*Channel)}, nil
}

func (p *pollPoller) Poll(timeoutMs int) ([]*Channel, time.Time, error) {
	fds := make([]unix.PollFd, 0, len(p.channels))
	order := make([]*Channel, 0, len(p.channels))
	for _, ch := range p.channels {
		fds = append(fds, unix.PollFd{Fd: int32(ch.fd), Events: int16(ch.Events())})
		order = append(order, ch)
	}

	n, err := unix.Poll(fds, timeoutMs)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return nil, now, nil
		}
		return nil, now, err
	}

	active := make([]*Channel, 0, n)
	for i, fd := range fds {
		if fd.Revents == 0 {
			continue
		}
		order[i].SetRevents(uint32(fd.Revents))
		active = append(active, order[i])
	}
	return active, now, nil
}

// UpdateChannel mirrors the epoll variant's tri-state transitions even
// though poll(2) has no kernel-side registration to mutate: the state
// tag still governs map membership, which is what Poll iterates.
func (p *pollPoller) UpdateChannel(ch *Channel) error {
	switch ch.pollerState() {
	case indexNew, indexDeregistered:
		if ch.pollerState() == indexNew {
			p.channels[ch.fd] = ch
		}
		ch.setPollerState(indexRegistered)
	default:
		if ch.IsNoneEvent() {
			ch.setPollerState(indexDeregistered)
		}
	}
	return nil
}

func (p *pollPoller) RemoveChannel(ch *Channel) error {
	delete(p.channels, ch.fd)
	ch.setPollerState(indexNew)
	return nil
}

func (p *pollPoller) HasChannel(ch *Channel) bool {
	existing, ok := p.channels[ch.fd]
	return ok && existing == ch
}

func (p *pollPoller) Close() error { return nil }
