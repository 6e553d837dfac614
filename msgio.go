// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

// rpump reads messages from c into the incoming queue until c fails.
func (s *Socket) rpump(c *Conn) {
	defer s.wg.Done()
	for {
		msg, err := c.RecvMsg()
		if err != nil {
			if s.io.Err() == nil && !c.Closed() && ErrnoOf(err) != ECONNRESET {
				s.log.Printf("could not read message from %q: %+v", c.PeerID(), err)
			}
			s.rmConn(c)
			return
		}
		if msg.Type == CmdMsg {
			continue
		}

		frames, ok := s.inbound(c, msg.Frames)
		if !ok {
			continue
		}
		if err := s.in.pushWait(s.io, qmsg{frames: frames, conn: c}); err != nil {
			return
		}
	}
}

// inbound applies the pattern's receive rules to a message read from c.
// It reports false when the message must be dropped.
func (s *Socket) inbound(c *Conn, frames [][]byte) ([][]byte, bool) {
	switch s.typ {
	case Pub, XPub:
		return s.pubInbound(c, frames)
	case Sub, XSub:
		if len(frames) == 0 {
			return nil, false
		}
		s.mu.RLock()
		ok := s.subs.match(frames[0])
		s.mu.RUnlock()
		return frames, ok
	case Req:
		// replies start with an empty delimiter and are only expected
		// from the peer holding the outstanding request.
		if len(frames) == 0 || len(frames[0]) != 0 {
			return nil, false
		}
		return frames, s.reqFrom(c)
	case Rep:
		// requests carry an envelope ended by an empty delimiter.
		for _, f := range frames {
			if len(f) == 0 {
				return frames, true
			}
		}
		return nil, false
	case Router:
		out := make([][]byte, 0, len(frames)+1)
		out = append(out, []byte(c.rid))
		return append(out, frames...), true
	case Push:
		return nil, false
	}
	return frames, true
}

// dispatch hands queued outgoing messages to the connections.
func (s *Socket) dispatch() {
	defer s.wg.Done()
	for {
		m, err := s.out.take(s.io)
		if err != nil {
			return
		}
		s.route(m)
		s.out.done()
	}
}

func (s *Socket) route(m qmsg) {
	msg := Msg{Frames: m.frames}
	switch s.pat.route {
	case routeExclusive, routeRoundRobin:
		for {
			c := s.pick()
			if c == nil {
				return
			}
			if s.typ == Req {
				s.reqSentTo(c)
			}
			err := c.SendMsg(msg)
			if err == nil {
				return
			}
			s.log.Printf("could not send message to %q: %+v", c.PeerID(), err)
			s.rmConn(c)
		}

	case routeFanOut:
		s.fanOut(msg)

	case routeIdentity:
		if len(m.frames) < 2 {
			return
		}
		s.mu.RLock()
		c := s.ids[string(m.frames[0])]
		s.mu.RUnlock()
		if c == nil {
			return
		}
		if err := c.SendMsg(Msg{Frames: m.frames[1:]}); err != nil {
			s.rmConn(c)
		}

	case routeReply:
		c := m.conn
		if c == nil || c.Closed() {
			return
		}
		if err := c.SendMsg(msg); err != nil {
			s.rmConn(c)
		}

	case routeUpstream:
		s.mu.RLock()
		conns := append([]*Conn(nil), s.conns...)
		s.mu.RUnlock()
		for _, c := range conns {
			if err := c.SendMsg(msg); err != nil {
				s.rmConn(c)
			}
		}
	}
}

// pick returns the next connection in round-robin order, waiting for one
// to show up. pick returns nil once the socket is torn down.
func (s *Socket) pick() *Conn {
	for {
		ch := s.sig.wait()
		s.mu.Lock()
		if n := len(s.conns); n > 0 {
			if s.next >= n {
				s.next = 0
			}
			c := s.conns[s.next]
			s.next = (s.next + 1) % n
			s.mu.Unlock()
			return c
		}
		s.mu.Unlock()

		select {
		case <-ch:
		case <-s.io.Done():
			return nil
		}
	}
}
