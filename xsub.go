// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

// xsubTrack updates the local filter of an XSUB socket with the
// subscription messages it sends upstream. s.mu must be held.
func (s *Socket) xsubTrack(frames [][]byte) {
	msg := Msg{Frames: frames}
	if !isSubscription(msg) {
		return
	}
	topic := string(frames[0][1:])
	switch frames[0][0] {
	case 1:
		s.subs.add(topic)
	case 0:
		s.subs.rm(topic)
	}
}
