// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

// reqState tracks the send/recv alternation of a REQ socket.
type reqState struct {
	awaiting bool  // a request was sent, its reply not fully received
	peer     *Conn // connection the outstanding request was written to
}

// reqSeal prefixes a request with the empty delimiter. s.mu must be held.
func (s *Socket) reqSeal(frames [][]byte) qmsg {
	out := make([][]byte, 0, len(frames)+1)
	out = append(out, []byte{})
	s.req.awaiting = true
	s.req.peer = nil
	return qmsg{frames: append(out, frames...)}
}

// reqUnseal strips the delimiter off a reply. s.mu must be held.
func (s *Socket) reqUnseal(m qmsg) [][]byte {
	return m.frames[1:]
}

// reqSentTo records c as the only peer a reply is accepted from.
func (s *Socket) reqSentTo(c *Conn) {
	s.mu.Lock()
	s.req.peer = c
	s.mu.Unlock()
}

// reqFrom reports whether a reply read from c answers the outstanding
// request.
func (s *Socket) reqFrom(c *Conn) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.req.awaiting && s.req.peer == c
}
