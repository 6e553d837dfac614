// Copyright 2019 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"context"
	"errors"
	"sync"

	"github.com/eapache/queue"
)

var errQueueClosed = errors.New("zsock: queue closed")

// qmsg is a complete message waiting in a socket queue.
// conn is the peer it came from, or the peer it must go to.
type qmsg struct {
	frames [][]byte
	conn   *Conn
}

func (m qmsg) size() int {
	n := 0
	for _, frame := range m.frames {
		n += len(frame)
	}
	return n
}

// signal wakes up every goroutine waiting for a state change.
type signal struct {
	mu       sync.Mutex
	ch       chan struct{}
	watchers map[chan<- struct{}]struct{}
}

// wait returns a channel closed at the next broadcast.
func (s *signal) wait() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		s.ch = make(chan struct{})
	}
	return s.ch
}

func (s *signal) broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		close(s.ch)
		s.ch = nil
	}
	for w := range s.watchers {
		select {
		case w <- struct{}{}:
		default:
		}
	}
}

// watch registers w to receive a non-blocking send at every broadcast.
func (s *signal) watch(w chan<- struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchers == nil {
		s.watchers = make(map[chan<- struct{}]struct{})
	}
	s.watchers[w] = struct{}{}
}

func (s *signal) unwatch(w chan<- struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers, w)
}

// msgQueue is a FIFO of complete messages bounded by a high-water mark.
// A zero hwm means unbounded.
type msgQueue struct {
	mu       sync.Mutex
	q        *queue.Queue
	hwm      int
	inflight int
	closed   bool

	sig    signal
	notify func()
}

func newMsgQueue(hwm int, notify func()) *msgQueue {
	return &msgQueue{
		q:      queue.New(),
		hwm:    hwm,
		notify: notify,
	}
}

func (q *msgQueue) changed() {
	q.sig.broadcast()
	if q.notify != nil {
		q.notify()
	}
}

func (q *msgQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Length()
}

func (q *msgQueue) setHWM(hwm int) {
	q.mu.Lock()
	q.hwm = hwm
	q.mu.Unlock()
	q.changed()
}

func (q *msgQueue) roomLocked() bool {
	return !q.closed && (q.hwm <= 0 || q.q.Length() < q.hwm)
}

// hasRoom reports whether one more message fits below the high-water mark.
func (q *msgQueue) hasRoom() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.roomLocked()
}

// push appends m regardless of the high-water mark.
func (q *msgQueue) push(m qmsg) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.q.Add(m)
	q.mu.Unlock()
	q.changed()
	return true
}

// pushWait appends m once the queue has room.
func (q *msgQueue) pushWait(ctx context.Context, m qmsg) error {
	for {
		ch := q.sig.wait()
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return errQueueClosed
		}
		if q.roomLocked() {
			q.q.Add(m)
			q.mu.Unlock()
			q.changed()
			return nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

func (q *msgQueue) tryPop() (qmsg, bool) {
	q.mu.Lock()
	if q.q.Length() == 0 {
		q.mu.Unlock()
		return qmsg{}, false
	}
	m := q.q.Remove().(qmsg)
	q.mu.Unlock()
	q.changed()
	return m, true
}

// take removes the next message and marks it in flight until done is
// called.
func (q *msgQueue) take(ctx context.Context) (qmsg, error) {
	for {
		ch := q.sig.wait()
		q.mu.Lock()
		if q.q.Length() > 0 {
			m := q.q.Remove().(qmsg)
			q.inflight++
			q.mu.Unlock()
			q.changed()
			return m, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return qmsg{}, ctx.Err()
		case <-ch:
		}
	}
}

func (q *msgQueue) done() {
	q.mu.Lock()
	q.inflight--
	q.mu.Unlock()
	q.changed()
}

// drained reports whether every queued message has been handled.
func (q *msgQueue) drained() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.q.Length() == 0 && q.inflight == 0
}

// close rejects further pushes. Queued messages can still be taken.
func (q *msgQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.changed()
}

// reset drops every queued message.
func (q *msgQueue) reset() {
	q.mu.Lock()
	q.q = queue.New()
	q.mu.Unlock()
	q.changed()
}
