// Copyright 2020 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

// proxyTick bounds how long the proxy loop waits before looking at its
// commands.
const proxyTick = 50 * time.Millisecond

// Proxy connects a frontend socket to a backend socket.
type Proxy struct {
	ctx  context.Context // life-line of proxy
	grp  *errgroup.Group
	cmds chan proxyCmd
}

type proxyCmd struct {
	op    proxyOp
	stats chan ProxyStats
}

type proxyOp byte

const (
	proxyStats proxyOp = iota
	proxyPause
	proxyResume
	proxyKill
)

// ProxyStats counts the messages a proxy forwarded in each direction.
type ProxyStats struct {
	Frontend PipeStats // received on the frontend, sent to the backend
	Backend  PipeStats // received on the backend, sent to the frontend
}

// PipeStats counts the traffic of one proxy direction.
type PipeStats struct {
	Msgs       uint64
	Bytes      uint64
	Dropped    uint64
	Captured   uint64 // copies sent to the capture socket
	Uncaptured uint64 // copies the capture socket refused
}

// NewProxy creates a new Proxy value.
// It proxies messages received on the frontend to the backend (and vice versa)
// If capture is not nil, messages proxied are also sent on that socket.
// A full capture socket holds the proxy back, up to its SNDTIMEO.
//
// Conceptually, data flows from frontend to backend. Depending on the
// socket types, replies may flow in the opposite direction.
// The direction is conceptual only; the proxy is fully symmetric and
// there is no technical difference between frontend and backend.
//
// Before creating a Proxy, users must set any socket options,
// and Bind or Connect both frontend and backend sockets.
// The sockets belong to the proxy until Run returns.
func NewProxy(ctx context.Context, front, back, capture *Socket) *Proxy {
	grp, ctx := errgroup.WithContext(ctx)
	proxy := Proxy{
		ctx:  ctx,
		grp:  grp,
		cmds: make(chan proxyCmd),
	}
	proxy.init(front, back, capture)
	return &proxy
}

// Pause suspends forwarding. Incoming messages stay queued.
func (p *Proxy) Pause() { p.send(proxyCmd{op: proxyPause}) }

// Resume resumes forwarding after Pause.
func (p *Proxy) Resume() { p.send(proxyCmd{op: proxyResume}) }

// Kill stops the proxy. Run then returns nil.
func (p *Proxy) Kill() { p.send(proxyCmd{op: proxyKill}) }

// Stats returns the traffic forwarded so far.
func (p *Proxy) Stats() ProxyStats {
	reply := make(chan ProxyStats, 1)
	if !p.send(proxyCmd{op: proxyStats, stats: reply}) {
		return ProxyStats{}
	}
	select {
	case st := <-reply:
		return st
	case <-p.ctx.Done():
		return ProxyStats{}
	}
}

func (p *Proxy) send(cmd proxyCmd) bool {
	select {
	case p.cmds <- cmd:
		return true
	case <-p.ctx.Done():
		return false
	}
}

// Run runs the proxy loop.
func (p *Proxy) Run() error {
	return p.grp.Wait()
}

func (p *Proxy) init(front, back, capture *Socket) {
	type Pipe struct {
		name  string
		src   *Socket
		dst   *Socket
		stats *PipeStats
	}

	var (
		stats ProxyStats
		pipes = []Pipe{
			{name: "backend", src: front, dst: back, stats: &stats.Frontend},
			{name: "frontend", src: back, dst: front, stats: &stats.Backend},
		}
		poller = NewPoller()
	)
	for _, pipe := range pipes {
		if pipe.src != nil && pipe.src.pat.recv {
			poller.Register(pipe.src, PollIn)
		}
	}

	forward := func(pipe Pipe) error {
		msg, err := pipe.src.RecvMsg(DontWait)
		switch {
		case errors.Is(err, ErrWouldBlock):
			return nil
		case err != nil:
			return err
		}
		if capture != nil && len(msg.Frames) != 0 {
			// capture blocks like any other destination, up to its SNDTIMEO.
			if err := capture.SendMsg(msg.Clone(), 0); err != nil {
				if errors.Is(err, ErrUseAfterClose) {
					return err
				}
				capture.log.Printf("could not capture %s message: %+v", pipe.name, err)
				pipe.stats.Uncaptured++
			} else {
				pipe.stats.Captured++
			}
		}
		if pipe.dst == nil || !pipe.dst.pat.send {
			return nil
		}
		n := uint64(msg.size())
		if err := pipe.dst.SendMsg(msg, 0); err != nil {
			if errors.Is(err, ErrUseAfterClose) {
				return err
			}
			pipe.src.log.Printf("could not forward to %s: %+v", pipe.name, err)
			pipe.stats.Dropped++
			return nil
		}
		pipe.stats.Msgs++
		pipe.stats.Bytes += n
		return nil
	}

	p.grp.Go(func() error {
		defer poller.Close()
		paused := false
		for {
			var tick <-chan time.Time
			if !paused {
				tick = time.After(0)
			}
			select {
			case <-p.ctx.Done():
				return p.ctx.Err()
			case cmd := <-p.cmds:
				switch cmd.op {
				case proxyPause:
					paused = true
				case proxyResume:
					paused = false
				case proxyStats:
					cmd.stats <- stats
				case proxyKill:
					return nil
				default:
					// API error. panic.
					panic(fmt.Errorf("invalid proxy command: %v", cmd.op))
				}
				continue
			case <-tick:
			}

			ready, err := poller.Poll(proxyTick)
			if err != nil {
				if errors.Is(err, ErrUseAfterClose) || errors.Is(err, EFAULT) {
					return nil
				}
				return err
			}
			for _, it := range ready {
				if it.Events&PollErr != 0 {
					return nil
				}
				for _, pipe := range pipes {
					if pipe.src != it.Socket() {
						continue
					}
					if err := forward(pipe); err != nil {
						if errors.Is(err, ErrUseAfterClose) {
							return nil
						}
						return err
					}
				}
			}
		}
	})
}
