// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package fdpoll

import (
	"time"

	"golang.org/x/sys/unix"
)

// Waker interrupts a blocked Poll through a self-pipe.
type Waker struct {
	r, w int
}

// NewWaker creates a non-blocking self-pipe.
func NewWaker() (*Waker, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, err
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(p[0])
			unix.Close(p[1])
			return nil, err
		}
	}
	return &Waker{r: p[0], w: p[1]}, nil
}

// Wake makes the current or next Poll using w return.
func (w *Waker) Wake() {
	// a full pipe already guarantees a wake-up.
	_, _ = unix.Write(w.w, []byte{1})
}

func (w *Waker) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// Close releases the pipe.
func (w *Waker) Close() error {
	e1 := unix.Close(w.r)
	e2 := unix.Close(w.w)
	if e1 != nil {
		return e1
	}
	return e2
}

// Poll waits until one of fds is ready, w is woken, or timeout expires.
// A negative timeout waits forever. It fills in Revents and returns the
// number of ready descriptors in fds.
func Poll(fds []Fd, w *Waker, timeout time.Duration) (int, error) {
	pfds := make([]unix.PollFd, 0, len(fds)+1)
	for _, fd := range fds {
		pfds = append(pfds, unix.PollFd{Fd: int32(fd.Fd), Events: toUnix(fd.Events)})
	}
	if w != nil {
		pfds = append(pfds, unix.PollFd{Fd: int32(w.r), Events: unix.POLLIN})
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		ms := -1
		switch {
		case timeout == 0:
			ms = 0
		case timeout > 0:
			left := time.Until(deadline)
			if left < 0 {
				left = 0
			}
			ms = int((left + time.Millisecond - 1) / time.Millisecond)
		}

		_, err := unix.Poll(pfds, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return 0, err
		}
		break
	}

	n := 0
	for i := range fds {
		fds[i].Revents = fromUnix(pfds[i].Revents) & (fds[i].Events | Err)
		if fds[i].Revents != 0 {
			n++
		}
	}
	if w != nil && pfds[len(pfds)-1].Revents != 0 {
		w.drain()
	}
	return n, nil
}

func toUnix(ev Events) int16 {
	var o int16
	if ev&In != 0 {
		o |= unix.POLLIN
	}
	if ev&Out != 0 {
		o |= unix.POLLOUT
	}
	return o
}

func fromUnix(ev int16) Events {
	var o Events
	if ev&unix.POLLIN != 0 {
		o |= In
	}
	if ev&unix.POLLOUT != 0 {
		o |= Out
	}
	if ev&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		o |= Err
	}
	return o
}
