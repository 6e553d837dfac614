// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

// fanCap returns the per-subscriber queue capacity for a send HWM.
func fanCap(hwm int) int {
	if hwm <= 0 {
		return 1 << 16
	}
	return hwm
}

// fanOut queues msg for every peer subscribed to its topic.
// Peers whose queue is full miss the message.
func (s *Socket) fanOut(msg Msg) {
	var topic string
	if len(msg.Frames) > 0 {
		topic = string(msg.Frames[0])
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for c, ch := range s.fan {
		if !c.subscribed(topic) {
			continue
		}
		s.pending.Add(1)
		select {
		case ch <- msg:
		default:
			s.pending.Add(-1)
		}
	}
}

// fanWriter writes the messages queued for c until its queue is closed.
func (s *Socket) fanWriter(c *Conn, ch chan Msg) {
	defer s.wg.Done()
	var failed bool
	for msg := range ch {
		if !failed {
			if err := c.SendMsg(msg); err != nil {
				failed = true
				s.rmConn(c)
			}
		}
		s.pending.Add(-1)
		s.sig.broadcast()
	}
}
