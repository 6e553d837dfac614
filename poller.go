// Copyright 2020 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-zeromq/zsock/internal/fdpoll"
)

// Event is a set of readiness conditions.
type Event uint8

const (
	PollIn  Event = 1 << iota // a message can be received without blocking
	PollOut                   // a message can be sent without blocking
	PollErr                   // the target is closed or in error
)

func (ev Event) String() string {
	if ev == 0 {
		return "0"
	}
	var o []string
	if ev&PollIn != 0 {
		o = append(o, "POLLIN")
	}
	if ev&PollOut != 0 {
		o = append(o, "POLLOUT")
	}
	if ev&PollErr != 0 {
		o = append(o, "POLLERR")
	}
	return strings.Join(o, "|")
}

// Target is something a Poller can wait on: a *Socket or an FD.
type Target interface {
	pollTarget()
}

func (*Socket) pollTarget() {}

// FD is a raw operating system file descriptor.
type FD uintptr

func (FD) pollTarget() {}

// Polled is a registered target with a set of events.
type Polled struct {
	Target Target
	Events Event
}

// Socket returns the polled socket, or nil for a file descriptor.
func (p Polled) Socket() *Socket {
	s, _ := p.Target.(*Socket)
	return s
}

// Poller waits on a set of sockets and file descriptors.
//
// A Poller must be used by one goroutine at a time.
type Poller struct {
	items []Polled

	once  sync.Once
	waker *fdpoll.Waker
	werr  error
}

// NewPoller returns an empty Poller.
func NewPoller() *Poller {
	return &Poller{}
}

// Register adds t with the events of interest.
// Registering t again replaces its events and keeps its position.
// An empty events set unregisters t.
func (p *Poller) Register(t Target, events Event) {
	if events == 0 {
		p.Unregister(t)
		return
	}
	for i := range p.items {
		if p.items[i].Target == t {
			p.items[i].Events = events
			return
		}
	}
	p.items = append(p.items, Polled{Target: t, Events: events})
}

// Unregister removes t. Unregistering an unknown target is a no-op.
func (p *Poller) Unregister(t Target) {
	for i := range p.items {
		if p.items[i].Target == t {
			p.items = append(p.items[:i:i], p.items[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered targets.
func (p *Poller) Len() int {
	return len(p.items)
}

// Close releases the resources used to wait on file descriptors.
func (p *Poller) Close() error {
	if p.waker == nil {
		return nil
	}
	err := p.waker.Close()
	p.waker = nil
	p.once = sync.Once{}
	return err
}

// Poll waits up to timeout for at least one registered target to become
// ready and returns the ready targets in registration order, each with
// the observed subset of its events. PollErr is reported for targets
// that are closed or in error, whether requested or not.
//
// A zero timeout checks once. A negative timeout waits forever.
// Poll returns an empty slice and a nil error when the timeout expires.
// With nothing registered, a negative timeout could never return and
// fails with EINVAL; a positive one just sleeps.
func (p *Poller) Poll(timeout time.Duration) ([]Polled, error) {
	const op = "poll"

	if len(p.items) == 0 {
		switch {
		case timeout < 0:
			return nil, newError(op, EINVAL, nil)
		case timeout > 0:
			time.Sleep(timeout)
		}
		return nil, nil
	}

	wake := make(chan struct{}, 1)
	var nfds int
	for _, it := range p.items {
		switch t := it.Target.(type) {
		case *Socket:
			t.sig.watch(wake)
			defer t.sig.unwatch(wake)
		case FD:
			nfds++
		}
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		ready, err := p.scan()
		if err != nil {
			return nil, err
		}
		if len(ready) > 0 || timeout == 0 {
			return ready, nil
		}

		remain := time.Duration(-1)
		if timeout > 0 {
			remain = time.Until(deadline)
			if remain <= 0 {
				return ready, nil
			}
		}

		if nfds == 0 {
			if err := waitChan(wake, remain); err != nil {
				return ready, nil
			}
			continue
		}

		if err := p.waitFDs(wake, remain); err != nil {
			return nil, wrapPollErr(err)
		}
	}
}

var errExpired = errors.New("zsock: poll expired")

func waitChan(wake <-chan struct{}, d time.Duration) error {
	if d < 0 {
		<-wake
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-wake:
		return nil
	case <-t.C:
		return errExpired
	}
}

// waitFDs blocks in poll(2) on the registered descriptors until one is
// ready, a socket signals wake, or d elapses.
func (p *Poller) waitFDs(wake <-chan struct{}, d time.Duration) error {
	p.once.Do(func() {
		p.waker, p.werr = fdpoll.NewWaker()
	})
	if p.werr != nil {
		return p.werr
	}

	done := make(chan struct{})
	defer close(done)
	go func(w *fdpoll.Waker) {
		select {
		case <-wake:
			w.Wake()
		case <-done:
		}
	}(p.waker)

	_, err := fdpoll.Poll(p.fds(), p.waker, d)
	return err
}

func (p *Poller) fds() []fdpoll.Fd {
	var fds []fdpoll.Fd
	for _, it := range p.items {
		fd, ok := it.Target.(FD)
		if !ok {
			continue
		}
		var ev fdpoll.Events
		if it.Events&PollIn != 0 {
			ev |= fdpoll.In
		}
		if it.Events&PollOut != 0 {
			ev |= fdpoll.Out
		}
		fds = append(fds, fdpoll.Fd{Fd: uintptr(fd), Events: ev})
	}
	return fds
}

// scan checks every target once without blocking.
func (p *Poller) scan() ([]Polled, error) {
	fds := p.fds()
	if len(fds) > 0 {
		if _, err := fdpoll.Poll(fds, nil, 0); err != nil {
			return nil, wrapPollErr(err)
		}
	}

	var (
		ready   []Polled
		invalid int
		ifd     int
	)
	for _, it := range p.items {
		var ev Event
		switch t := it.Target.(type) {
		case *Socket:
			ev = t.Events()
		case FD:
			rev := fds[ifd].Revents
			ifd++
			if rev&fdpoll.In != 0 {
				ev |= PollIn
			}
			if rev&fdpoll.Out != 0 {
				ev |= PollOut
			}
			if rev&fdpoll.Err != 0 {
				ev |= PollErr
			}
		}
		if ev&PollErr != 0 {
			invalid++
		}
		ev &= it.Events | PollErr
		if ev != 0 {
			ready = append(ready, Polled{Target: it.Target, Events: ev})
		}
	}

	if invalid == len(p.items) {
		return nil, newError("poll", EFAULT, nil)
	}
	return ready, nil
}

func wrapPollErr(err error) error {
	if errors.Is(err, fdpoll.ErrNotSupported) {
		return newError("poll", ENOTSUP, err)
	}
	return wrapError("poll", err)
}
