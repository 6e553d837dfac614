// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package errgroup provides the bounded goroutine group backing a
// context's I/O threads.
//
// It differs from golang.org/x/sync/errgroup in that a group created
// with WithContext stops waiting for its functions once the parent
// context is cancelled.
package errgroup

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Group is an errgroup.Group bound to the lifetime of a parent context.
type Group struct {
	grp *errgroup.Group
	ctx context.Context
}

// WithContext creates a Group whose functions are abandoned when ctx
// is cancelled.
func WithContext(ctx context.Context) (*Group, context.Context) {
	grp, child := errgroup.WithContext(ctx)
	return &Group{grp: grp, ctx: ctx}, child
}

// Go runs f in a dedicated goroutine once the group limit allows it.
func (g *Group) Go(f func() error) {
	g.group().Go(g.wrap(f))
}

// TryGo runs f only if the group is below its limit.
// It reports whether f was started.
func (g *Group) TryGo(f func() error) bool {
	return g.group().TryGo(g.wrap(f))
}

// Do runs f on the group and waits for its result.
// It returns ctx.Err() if ctx is done first; f then completes in the
// background.
func (g *Group) Do(ctx context.Context, f func() error) error {
	errc := make(chan error, 1)
	g.Go(func() error {
		errc <- f()
		return nil
	})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until all functions started by Go have returned, or the
// parent context was cancelled, and returns the first non-nil error.
func (g *Group) Wait() error {
	return g.group().Wait()
}

// SetLimit limits the number of active goroutines in this group to at most n.
// A negative value indicates no limit.
//
// The limit must not be modified while any goroutines in the group are active.
func (g *Group) SetLimit(n int) {
	g.group().SetLimit(n)
}

func (g *Group) wrap(f func() error) func() error {
	if g.ctx == nil {
		return f
	}

	return func() error {
		select {
		case <-g.ctx.Done():
			return g.ctx.Err()
		default:
		}

		// buffered so f can finish after the group stopped waiting.
		ch := make(chan error, 1)
		go func() {
			ch <- f()
		}()

		select {
		case err := <-ch:
			return err
		case <-g.ctx.Done():
			return g.ctx.Err()
		}
	}
}

// group returns the underlying errgroup, allocating it on first use
// so the zero Group is ready to use.
func (g *Group) group() *errgroup.Group {
	if g.grp == nil {
		g.grp = &errgroup.Group{}
	}
	return g.grp
}
