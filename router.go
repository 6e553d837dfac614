// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

// assignID gives c the routing id its messages are tagged with.
// The peer's announced identity is used unless it is empty or already
// taken. s.mu must be held.
func (s *Socket) assignID(c *Conn) {
	id := string(c.PeerID())
	if _, dup := s.ids[id]; id == "" || dup {
		id = string(newIdentity())
	}
	c.rid = id
	s.ids[id] = c
}

// Peers returns the routing ids of the peers connected to a ROUTER socket.
func (s *Socket) Peers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o := make([]string, 0, len(s.ids))
	for _, c := range s.conns {
		if c.rid != "" {
			o = append(o, c.rid)
		}
	}
	return o
}
