// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package zsock implements ZeroMQ sockets and the ZMTP 3.x protocol.
//
// Sockets are created from a Context, which owns the I/O threads
// establishing connections. A Socket follows one of the ZeroMQ messaging
// patterns (PAIR, PUB/SUB, REQ/REP, DEALER/ROUTER, PUSH/PULL, XPUB/XSUB)
// and exchanges multipart messages, frame by frame, with its peers over
// tcp://, ipc:// and inproc:// endpoints.
//
//	ctx, err := zsock.NewContext(1)
//	push, err := ctx.NewSocket(zsock.Push)
//	err = push.Connect("tcp://127.0.0.1:5555")
//	err = push.Send(zsock.NewFrameString("hello"), 0)
//
// For more informations, see http://zeromq.org.
package zsock

// Version of the ZeroMQ API implemented by this package.
const (
	VersionMajor = 4
	VersionMinor = 3
	VersionPatch = 5
)

// Version returns the major, minor and patch version numbers.
func Version() (major, minor, patch int) {
	return VersionMajor, VersionMinor, VersionPatch
}

// Has reports whether the named capability is available.
// Capabilities are transports (ipc, inproc, tcp, pgm, norm, tipc) and
// security mechanisms (plain, curve, gssapi).
func Has(capability string) bool {
	switch capability {
	case "plain":
		return true
	case "curve", "gssapi":
		return false
	}
	return drivers.has(capability)
}
