// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"bytes"
	"sort"
)

// topics counts the subscriptions of a SUB or XSUB socket.
type topics map[string]int

// add reports whether topic is a new subscription.
func (t topics) add(topic string) bool {
	t[topic]++
	return t[topic] == 1
}

// rm reports whether the last subscription to topic was removed.
func (t topics) rm(topic string) bool {
	n, ok := t[topic]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(t, topic)
		return true
	}
	t[topic] = n - 1
	return false
}

// match reports whether a message with the given first frame passes the
// subscription filter.
func (t topics) match(first []byte) bool {
	for k := range t {
		if bytes.HasPrefix(first, []byte(k)) {
			return true
		}
	}
	return false
}

func (t topics) list() []string {
	o := make([]string, 0, len(t))
	for k := range t {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// subscription returns the ZMTP 3.0 subscription message for topic.
// v is 1 to subscribe and 0 to cancel.
func subscription(v byte, topic string) Msg {
	buf := make([]byte, 0, 1+len(topic))
	buf = append(buf, v)
	return NewMsg(append(buf, topic...))
}

func (s *Socket) subscribe(topic []byte) {
	s.mu.Lock()
	first := s.subs.add(string(topic))
	conns := append([]*Conn(nil), s.conns...)
	s.mu.Unlock()

	if first {
		s.upstream(subscription(1, string(topic)), conns)
	}
}

func (s *Socket) unsubscribe(topic []byte) {
	s.mu.Lock()
	last := s.subs.rm(string(topic))
	conns := append([]*Conn(nil), s.conns...)
	s.mu.Unlock()

	if last {
		s.upstream(subscription(0, string(topic)), conns)
	}
}

// upstream sends msg to every publisher in conns.
func (s *Socket) upstream(msg Msg, conns []*Conn) {
	for _, c := range conns {
		if err := c.SendMsg(msg); err != nil {
			s.rmConn(c)
		}
	}
}
