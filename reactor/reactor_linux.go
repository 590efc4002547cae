//go:build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based readiness.

package reactor

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-ofd/api"
)

const maxEvents = 64

// epollReadiness is a level-triggered epoll set.
type epollReadiness struct {
	epfd int
}

func newReadiness() (api.Readiness, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollReadiness{epfd: epfd}, nil
}

// Register adds fd for read and hang-up notifications.
func (r *epollReadiness) Register(fd uintptr) error {
	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLRDHUP,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, int(fd), &ev); err != nil {
		return fmt.Errorf("epoll ctl add %d: %w", fd, err)
	}
	return nil
}

// Unregister removes fd. A descriptor the kernel already dropped on close is
// not an error.
func (r *epollReadiness) Unregister(fd uintptr) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, int(fd), nil)
	if err != nil && !errors.Is(err, unix.ENOENT) && !errors.Is(err, unix.EBADF) {
		return fmt.Errorf("epoll ctl del %d: %w", fd, err)
	}
	return nil
}

// Wait blocks until a registered descriptor is readable or timeoutMs
// elapses. A negative timeout blocks indefinitely.
func (r *epollReadiness) Wait(timeoutMs int) (int, error) {
	var events [maxEvents]unix.EpollEvent
	n, err := unix.EpollWait(r.epfd, events[:], timeoutMs)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	return n, nil
}

// Close releases the epoll descriptor.
func (r *epollReadiness) Close() error {
	return unix.Close(r.epfd)
}
