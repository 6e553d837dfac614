// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

// pubInbound records the subscriptions sent by a PUB or XPUB peer.
// XPUB sockets also hand them to the application.
func (s *Socket) pubInbound(c *Conn, frames [][]byte) ([][]byte, bool) {
	msg := Msg{Frames: frames}
	if !isSubscription(msg) {
		return nil, false
	}
	c.subscribe(msg)
	s.sig.broadcast()
	return frames, s.typ == XPub
}
