// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Copyright 2010 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package inproc provides tools to implement an in-process asynchronous pipe of net.Conns.
package inproc

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
)

var (
	mgr = registry{db: make(map[string]*Listener)}

	ErrClosed      = errors.New("inproc: connection closed")
	ErrConnRefused = errors.New("inproc: connection refused")
	ErrAddrInUse   = errors.New("inproc: address already in use")
)

type registry struct {
	mu sync.Mutex
	db map[string]*Listener
}

// A Listener is an in-process listener for stream-oriented protocols.
// Listener implements net.Listener.
//
// Multiple goroutines may invoke methods on a Listener simultaneously.
type Listener struct {
	addr Addr

	conns chan net.Conn
	once  sync.Once
	done  chan struct{}
}

type pipe struct {
	p1 *conn
	p2 *conn
}

func newPipe(addr Addr) *pipe {
	const sz = 8
	ch1 := make(chan []byte, sz)
	ch2 := make(chan []byte, sz)
	done1 := make(chan struct{})
	done2 := make(chan struct{})

	p1 := &conn{
		addr:       addr,
		r:          ch1,
		w:          ch2,
		localDone:  done1,
		remoteDone: done2,
		rdeadline:  makePipeDeadline(),
		wdeadline:  makePipeDeadline(),
	}
	p2 := &conn{
		addr:       addr,
		r:          ch2,
		w:          ch1,
		localDone:  done2,
		remoteDone: done1,
		rdeadline:  makePipeDeadline(),
		wdeadline:  makePipeDeadline(),
	}
	return &pipe{p1, p2}
}

// Listen announces on the given address.
func Listen(addr string) (*Listener, error) {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if _, dup := mgr.db[addr]; dup {
		return nil, &net.OpError{Op: "listen", Net: "inproc", Addr: Addr(addr), Err: ErrAddrInUse}
	}

	l := &Listener{
		addr:  Addr(addr),
		conns: make(chan net.Conn),
		done:  make(chan struct{}),
	}
	mgr.db[addr] = l
	return l, nil
}

// Addr returns the listener's network address.
func (l *Listener) Addr() net.Addr {
	return l.addr
}

// Close closes the listener.
// Any blocked Accept operations will be unblocked and return errors.
func (l *Listener) Close() error {
	l.once.Do(func() {
		mgr.mu.Lock()
		if mgr.db[string(l.addr)] == l {
			delete(mgr.db, string(l.addr))
		}
		mgr.mu.Unlock()
		close(l.done)
	})
	return nil
}

// Accept waits for and returns the next connection to the listener.
func (l *Listener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, ErrClosed
	}
}

// Dial connects to the given address.
// It waits until the listener accepts the connection or ctx is done.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	mgr.mu.Lock()
	l, ok := mgr.db[addr]
	mgr.mu.Unlock()
	if !ok {
		return nil, &net.OpError{Op: "dial", Net: "inproc", Addr: Addr(addr), Err: ErrConnRefused}
	}

	p := newPipe(l.addr)
	select {
	case l.conns <- p.p1:
		return p.p2, nil
	case <-l.done:
		return nil, &net.OpError{Op: "dial", Net: "inproc", Addr: Addr(addr), Err: ErrConnRefused}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Addr represents an in-process "network" end-point address.
type Addr string

// String implements net.Addr.String
func (a Addr) String() string {
	return strings.TrimPrefix(string(a), "inproc://")
}

// Network returns the name of the network.
func (a Addr) Network() string {
	return "inproc"
}

var (
	_ net.Addr     = (*Addr)(nil)
	_ net.Listener = (*Listener)(nil)
)
