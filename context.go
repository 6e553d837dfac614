// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/go-zeromq/zsock/internal/errgroup"
)

const (
	// MaxIOThreads is the largest I/O pool a Context accepts.
	MaxIOThreads = 256

	defaultMaxSockets = 1023
	socketLimit       = 65535
)

type ctxState uint8

const (
	ctxOpen ctxState = iota
	ctxShutdown
	ctxTerminating
	ctxTerminated
)

// Context owns the I/O threads shared by the sockets created from it.
//
// A Context is safe for concurrent use. It keeps track of its sockets
// but does not own them: the application closes every socket, then
// terminates the context with Term.
type Context struct {
	ioThreads  int
	blocky     bool
	maxSockets int
	maxMsgSize int64
	ipv6       bool
	log        *log.Logger

	life   context.Context
	cancel context.CancelFunc
	io     *errgroup.Group

	mu        sync.Mutex
	state     ctxState
	open      map[*Socket]struct{}
	lingering map[*Socket]struct{}
	sig       signal
	wg        sync.WaitGroup // goroutines of torn down sockets
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithBlocky sets whether Term waits for open sockets to be closed.
// A non-blocky context fails Term immediately while sockets are open,
// and its new sockets default to a LINGER of 0.
func WithBlocky(v bool) ContextOption {
	return func(ctx *Context) {
		ctx.blocky = v
	}
}

// WithMaxSockets sets the maximum number of open sockets.
func WithMaxSockets(n int) ContextOption {
	return func(ctx *Context) {
		ctx.maxSockets = n
	}
}

// WithMaxMsgSize sets the default MAXMSGSIZE of new sockets.
// A negative size means unlimited.
func WithMaxMsgSize(n int64) ContextOption {
	return func(ctx *Context) {
		ctx.maxMsgSize = n
	}
}

// WithIPv6 enables IPv6 on the TCP endpoints of new sockets.
func WithIPv6(v bool) ContextOption {
	return func(ctx *Context) {
		ctx.ipv6 = v
	}
}

// WithContextLogger sets the logger inherited by new sockets.
func WithContextLogger(msg *log.Logger) ContextOption {
	return func(ctx *Context) {
		ctx.log = msg
	}
}

// NewContext creates a context with ioThreads I/O threads.
func NewContext(ioThreads int, opts ...ContextOption) (*Context, error) {
	const op = "ctx_new"
	switch {
	case ioThreads <= 0:
		return nil, newError(op, EINVAL, nil)
	case ioThreads > MaxIOThreads:
		return nil, newError(op, ENOMEM, nil)
	}

	ctx := &Context{
		ioThreads:  ioThreads,
		blocky:     true,
		maxSockets: defaultMaxSockets,
		maxMsgSize: -1,
		ipv6:       true,
		open:       make(map[*Socket]struct{}),
		lingering:  make(map[*Socket]struct{}),
	}
	for _, opt := range opts {
		opt(ctx)
	}
	if ctx.log == nil {
		ctx.log = log.New(os.Stderr, "zsock: ", 0)
	}
	switch {
	case ctx.maxSockets <= 0:
		return nil, newError(op, EINVAL, nil)
	case ctx.maxSockets > socketLimit:
		return nil, newError(op, EINVAL, nil)
	}

	ctx.life, ctx.cancel = context.WithCancel(context.Background())
	ctx.io, _ = errgroup.WithContext(ctx.life)
	ctx.io.SetLimit(ioThreads)
	return ctx, nil
}

// IOThreads returns the size of the I/O pool.
func (ctx *Context) IOThreads() int { return ctx.ioThreads }

// MaxSockets returns the maximum number of open sockets.
func (ctx *Context) MaxSockets() int { return ctx.maxSockets }

// MaxMsgSize returns the default MAXMSGSIZE of new sockets.
func (ctx *Context) MaxMsgSize() int64 { return ctx.maxMsgSize }

// IPv6 reports whether IPv6 is enabled on TCP endpoints.
func (ctx *Context) IPv6() bool { return ctx.ipv6 }

// Blocky reports whether Term waits for open sockets.
func (ctx *Context) Blocky() bool { return ctx.blocky }

// SocketLimit returns the largest accepted value for MaxSockets.
func (ctx *Context) SocketLimit() int { return socketLimit }

// Sockets returns the number of open sockets.
func (ctx *Context) Sockets() int {
	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	return len(ctx.open)
}

// NewSocket creates a socket of the given type.
func (ctx *Context) NewSocket(typ SocketType, opts ...Option) (*Socket, error) {
	const op = "socket"
	if !typ.IsValid() {
		return nil, newError(op, EINVAL, nil)
	}

	ctx.mu.Lock()
	defer ctx.mu.Unlock()
	switch {
	case ctx.state != ctxOpen:
		return nil, newError(op, ETERM, nil)
	case len(ctx.open) >= ctx.maxSockets:
		return nil, newError(op, EMFILE, nil)
	}

	s := newSocket(ctx, typ, opts...)
	ctx.open[s] = struct{}{}
	ctx.wg.Add(1)
	return s, nil
}

// Shutdown interrupts every blocking operation on the sockets of the
// context, which then fail with ErrUseAfterClose. Sockets must still be
// closed and the context terminated.
func (ctx *Context) Shutdown() error {
	ctx.mu.Lock()
	if ctx.state == ctxOpen {
		ctx.state = ctxShutdown
	}
	socks := make([]*Socket, 0, len(ctx.open))
	for s := range ctx.open {
		socks = append(socks, s)
	}
	ctx.mu.Unlock()

	for _, s := range socks {
		s.interrupt()
	}
	return nil
}

// Term terminates the context.
//
// Term waits up to timeout for the application to close every socket and
// for closed sockets to deliver their pending messages. A negative
// timeout waits forever. Sockets still alive when the timeout expires are
// closed without lingering; Term then fails with ErrShutdownTimeout if
// one of them had a non-zero LINGER.
// Terminating a terminated context is a no-op.
func (ctx *Context) Term(timeout time.Duration) error {
	const op = "term"

	ctx.mu.Lock()
	switch {
	case ctx.state == ctxTerminated:
		ctx.mu.Unlock()
		return nil
	case !ctx.blocky && len(ctx.open) > 0:
		ctx.mu.Unlock()
		return newError(op, EBUSY, nil)
	}
	ctx.state = ctxTerminating
	ctx.mu.Unlock()

	var err error
	if !ctx.settle(timeout) {
		ctx.mu.Lock()
		socks := make([]*Socket, 0, len(ctx.open)+len(ctx.lingering))
		for s := range ctx.open {
			socks = append(socks, s)
		}
		for s := range ctx.lingering {
			socks = append(socks, s)
		}
		ctx.mu.Unlock()

		for _, s := range socks {
			if s.lingerValue() != 0 {
				err = newError(op, ETIMEDOUT, nil)
			}
			s.kill()
		}
	}

	ctx.cancel()
	_ = ctx.io.Wait()
	ctx.wg.Wait()

	ctx.mu.Lock()
	ctx.state = ctxTerminated
	ctx.mu.Unlock()
	return err
}

// settle waits for every socket to be closed and flushed.
// It reports false if timeout expired first.
func (ctx *Context) settle(timeout time.Duration) bool {
	var expired <-chan time.Time
	if timeout >= 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	for {
		ch := ctx.sig.wait()
		ctx.mu.Lock()
		done := len(ctx.open) == 0 && len(ctx.lingering) == 0
		ctx.mu.Unlock()
		if done {
			return true
		}

		select {
		case <-ch:
		case <-expired:
			return false
		}
	}
}

// release removes a closed socket from the open set.
func (ctx *Context) release(s *Socket, lingering bool) {
	ctx.mu.Lock()
	delete(ctx.open, s)
	if lingering {
		ctx.lingering[s] = struct{}{}
	}
	ctx.mu.Unlock()
	ctx.sig.broadcast()
}

// lingered records that a closed socket finished delivering its messages.
func (ctx *Context) lingered(s *Socket) {
	ctx.mu.Lock()
	delete(ctx.lingering, s)
	ctx.mu.Unlock()
	ctx.sig.broadcast()
}
