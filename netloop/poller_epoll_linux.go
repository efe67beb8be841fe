//go:build linux
// +build linux

// File: netloop/poller_epoll_linux.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package netloop

import (
	"time"

	"golang.org/x/sys/unix"
)

const initialEventListSize = 16

// epollPoller is the edge-triggered-capable readiness poller, the
// default variant returned by newDefaultPoller.
type epollPoller struct {
	epfd     int
	channels map[int]*Channel // fd -> channel, per the core's data model
	events   []unix.EpollEvent
}

func newEpollPoller() (Poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollPoller{
		epfd:     epfd,
		channels: make(map[int]*Channel),
		events:   make([]unix.EpollEvent, initialEventListSize),
	}, nil
}

func (p *epollPoller) Poll(timeoutMs int) ([]*Channel, time.Time, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	now := time.Now()
	if err != nil {
		if err == unix.EINTR {
			return nil, now, nil
		}
		return nil, now, err
	}

	active := make([]*Channel, 0, n)
	for i := 0; i < n; i++ {
		ch, ok := p.channels[int(p.events[i].Fd)]
		if !ok {
			continue
		}
		ch.SetRevents(p.events[i].Events)
		active = append(active, ch)
	}
	if n == len(p.events) {
		p.events = make([]unix.EpollEvent, len(p.events)*2)
	}
	return active, now, nil
}

// UpdateChannel follows the tri-state dance: a channel that was never
// added or was previously deleted gets EPOLL_CTL_ADD; a channel already
// tracked gets MOD if it still has interest, or DEL plus a state flip
// to deregistered if its interest just went to none.
func (p *epollPoller) UpdateChannel(ch *Channel) error {
	switch ch.pollerState() {
	case indexNew, indexDeregistered:
		if ch.pollerState() == indexNew {
			p.channels[ch.fd] = ch
		}
		ch.setPollerState(indexRegistered)
		return p.ctl(unix.EPOLL_CTL_ADD, ch)
	default:
		if ch.IsNoneEvent() {
			ch.setPollerState(indexDeregistered)
			return p.ctl(unix.EPOLL_CTL_DEL, ch)
		}
		return p.ctl(unix.EPOLL_CTL_MOD, ch)
	}
}

func (p *epollPoller) RemoveChannel(ch *Channel) error {
	delete(p.channels, ch.fd)
	var err error
	if ch.pollerState() == indexRegistered {
		err = p.ctl(unix.EPOLL_CTL_DEL, ch)
	}
	ch.setPollerState(indexNew)
	return err
}

func (p *epollPoller) HasChannel(ch *Channel) bool {
	existing, ok := p.channels[ch.fd]
	return ok && existing == ch
}

func (p *epollPoller) Close() error {
	return unix.Close(p.epfd)
}

func (p *epollPoller) ctl(op int, ch *Channel) error {
	ev := unix.EpollEvent{
		Events: ch.Events(),
		Fd:     int32(ch.fd),
	}
	return unix.EpollCtl(p.epfd, op, ch.fd, &ev)
}
