// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

// repState tracks the request a REP socket has to answer.
type repState struct {
	holding bool     // a request was received, its reply not sent
	env     [][]byte // routing envelope of that request, delimiter included
	conn    *Conn    // peer the request came from
}

// repUnseal splits the envelope off a request and remembers it for the
// reply. s.mu must be held.
func (s *Socket) repUnseal(m qmsg) [][]byte {
	i := 0
	for i < len(m.frames) && len(m.frames[i]) != 0 {
		i++
	}
	s.rep.holding = true
	s.rep.env = m.frames[:i+1:i+1]
	s.rep.conn = m.conn
	return m.frames[i+1:]
}

// repSeal puts the saved envelope in front of a reply. s.mu must be held.
func (s *Socket) repSeal(frames [][]byte) qmsg {
	out := make([][]byte, 0, len(s.rep.env)+len(frames))
	out = append(out, s.rep.env...)
	m := qmsg{frames: append(out, frames...), conn: s.rep.conn}
	s.rep = repState{}
	return m
}
