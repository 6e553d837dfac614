// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

// SocketType is a ZeroMQ socket type.
type SocketType string

const (
	Pair   SocketType = "PAIR"   // a ZMQ_PAIR socket
	Pub    SocketType = "PUB"    // a ZMQ_PUB socket
	Sub    SocketType = "SUB"    // a ZMQ_SUB socket
	Req    SocketType = "REQ"    // a ZMQ_REQ socket
	Rep    SocketType = "REP"    // a ZMQ_REP socket
	Dealer SocketType = "DEALER" // a ZMQ_DEALER socket
	Router SocketType = "ROUTER" // a ZMQ_ROUTER socket
	Pull   SocketType = "PULL"   // a ZMQ_PULL socket
	Push   SocketType = "PUSH"   // a ZMQ_PUSH socket
	XPub   SocketType = "XPUB"   // a ZMQ_XPUB socket
	XSub   SocketType = "XSUB"   // a ZMQ_XSUB socket
)

// routing is the outbound strategy of a socket type.
type routing uint8

const (
	routeNone       routing = iota // no outbound traffic
	routeExclusive                 // single peer
	routeRoundRobin                // next ready peer
	routeFanOut                    // every subscribed peer
	routeIdentity                  // peer named by the first frame
	routeReply                     // peer the pending request came from
	routeUpstream                  // every peer
)

type pattern struct {
	send     bool
	recv     bool
	route    routing
	peers    []SocketType
	identity bool // ROUTING_ID may be set
	pubsub   bool // pub/sub family options apply
}

var patterns = map[SocketType]pattern{
	Pair:   {send: true, recv: true, route: routeExclusive, peers: []SocketType{Pair}, identity: true},
	Pub:    {send: true, route: routeFanOut, peers: []SocketType{Sub, XSub}, pubsub: true},
	Sub:    {recv: true, route: routeNone, peers: []SocketType{Pub, XPub}, pubsub: true},
	Req:    {send: true, recv: true, route: routeRoundRobin, peers: []SocketType{Rep, Router}, identity: true},
	Rep:    {send: true, recv: true, route: routeReply, peers: []SocketType{Req, Dealer}, identity: true},
	Dealer: {send: true, recv: true, route: routeRoundRobin, peers: []SocketType{Rep, Dealer, Router}, identity: true},
	Router: {send: true, recv: true, route: routeIdentity, peers: []SocketType{Req, Dealer, Router}, identity: true},
	Pull:   {recv: true, route: routeNone, peers: []SocketType{Push}},
	Push:   {send: true, route: routeRoundRobin, peers: []SocketType{Pull}},
	XPub:   {send: true, recv: true, route: routeFanOut, peers: []SocketType{Sub, XSub}, pubsub: true},
	XSub:   {send: true, recv: true, route: routeUpstream, peers: []SocketType{Pub, XPub}, pubsub: true},
}

// IsValid reports whether sck names a known socket type.
func (sck SocketType) IsValid() bool {
	_, ok := patterns[sck]
	return ok
}

// IsCompatible checks whether two sockets are compatible and thus
// can be connected together.
// See https://rfc.zeromq.org/spec:23/ZMTP/ for more informations.
func (sck SocketType) IsCompatible(peer SocketType) bool {
	for _, p := range patterns[sck].peers {
		if p == peer {
			return true
		}
	}
	return false
}

// SocketIdentity is the ZMTP metadata socket identity.
// See:
//
//	https://rfc.zeromq.org/spec:23/ZMTP/.
type SocketIdentity []byte

func (id SocketIdentity) String() string {
	n := len(id)
	if n > 255 { // ZMTP identities are: 0*255OCTET
		n = 255
	}
	return string(id[:n])
}
