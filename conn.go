// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

var errIncompatiblePeer = errors.New("zsock: incompatible peer socket type")

// handshakeTimeout bounds the greeting and security exchange.
const handshakeTimeout = 30 * time.Second

// Conn implements the ZeroMQ Message Transport Protocol as defined
// in https://rfc.zeromq.org/spec:23/ZMTP/.
type Conn struct {
	typ    SocketType
	id     SocketIdentity
	rw     io.ReadWriteCloser
	sec    Security
	Server bool
	Meta   Metadata
	Peer   struct {
		Server bool
		Meta   Metadata
	}

	maxSize int64 // inbound frame limit, negative for none
	ep      *endpoint
	rid     string // routing id assigned by a ROUTER socket

	wmu    sync.Mutex // serializes outgoing messages
	mu     sync.RWMutex
	topics map[string]struct{} // set of subscribed topics
	closed atomic.Bool
}

type deadliner interface {
	SetDeadline(t time.Time) error
}

// Open opens a ZMTP connection over rw with the given security, socket type and identity.
// Open performs a complete ZMTP handshake.
func Open(rw io.ReadWriteCloser, sec Security, sockType SocketType, sockID SocketIdentity, server bool) (*Conn, error) {
	if rw == nil {
		return nil, errors.Errorf("zsock: invalid nil read-writer")
	}

	if sec == nil {
		return nil, errors.Errorf("zsock: invalid nil security")
	}

	conn := &Conn{
		typ:     sockType,
		id:      sockID,
		rw:      rw,
		sec:     sec,
		Server:  server,
		Meta:    make(Metadata),
		maxSize: -1,
		topics:  make(map[string]struct{}),
	}
	conn.Meta[sysSockType] = string(sockType)
	conn.Meta[sysSockID] = sockID.String()
	conn.Peer.Meta = make(Metadata)

	if dl, ok := rw.(deadliner); ok {
		_ = dl.SetDeadline(time.Now().Add(handshakeTimeout))
		defer dl.SetDeadline(time.Time{})
	}

	err := conn.init()
	if err != nil {
		return nil, err
	}

	return conn, nil
}

// init performs a ZMTP handshake over an io.ReadWriter
func (conn *Conn) init() error {
	err := conn.greet()
	if err != nil {
		return errors.Wrapf(err, "zsock: could not exchange greetings")
	}

	err = conn.sec.Handshake(conn, conn.Server)
	if err != nil {
		return errors.Wrapf(err, "zsock: could not perform security handshake")
	}

	peer := conn.PeerType()
	if !conn.typ.IsCompatible(peer) {
		return errors.Wrapf(errIncompatiblePeer, "zsock: peer=%q not compatible with %q", peer, conn.typ)
	}

	return nil
}

func (conn *Conn) greet() error {
	send, err := newGreeting(conn.sec.Type(), conn.Server)
	if err != nil {
		return err
	}

	err = send.write(conn.rw)
	if err != nil {
		return errors.Wrapf(err, "zsock: could not send greeting")
	}

	var recv greeting
	err = recv.read(conn.rw)
	if err != nil {
		return errors.Wrapf(err, "zsock: could not recv greeting")
	}

	peerKind := asString(recv.Mechanism[:])
	if peerKind != string(conn.sec.Type()) {
		return errBadSec
	}

	conn.Peer.Server, err = asBool(recv.Server)
	if err != nil {
		return errors.Wrapf(err, "zsock: could not get peer server flag")
	}

	return nil
}

// PeerType returns the socket type announced by the peer.
func (c *Conn) PeerType() SocketType {
	return SocketType(c.Peer.Meta[sysSockType])
}

// PeerID returns the identity announced by the peer.
func (c *Conn) PeerID() SocketIdentity {
	return SocketIdentity(c.Peer.Meta[sysSockID])
}

func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.rw.Close()
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// SendCmd sends a ZMTP command over the wire.
func (c *Conn) SendCmd(name string, body []byte) error {
	cmd := Cmd{Name: name, Body: body}
	buf, err := cmd.marshalZMTP()
	if err != nil {
		return err
	}
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return c.send(true, buf, 0)
}

// SendMsg sends a ZMTP message over the wire.
// The frames of a message are never interleaved with another message.
func (c *Conn) SendMsg(msg Msg) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	nframes := len(msg.Frames)
	for i, frame := range msg.Frames {
		var flag byte
		if i < nframes-1 {
			flag ^= hasMoreBitFlag
		}
		err := c.send(false, frame, flag)
		if err != nil {
			return errors.Wrapf(err, "zsock: error sending frame %d/%d", i+1, nframes)
		}
	}
	return nil
}

// RecvMsg receives a ZMTP message from the wire.
//
// PING commands are answered on the spot. SUBSCRIBE and CANCEL commands
// are returned as the equivalent subscription messages. Other commands
// are returned with Type CmdMsg, the command name as first frame and its
// body as second frame.
func (c *Conn) RecvMsg() (Msg, error) {
	msg, err := c.read()
	if err != nil {
		return msg, errors.WithStack(err)
	}

	if !msg.isCmd() {
		return msg, nil
	}

	cmd, err := asCmd(msg)
	if err != nil {
		return msg, err
	}

	switch cmd.Name {
	case CmdPing:
		// PING carries a 2-byte TTL followed by the context PONG echoes.
		var pctx []byte
		if len(cmd.Body) > 2 {
			pctx = cmd.Body[2:]
		}
		err = c.SendCmd(CmdPong, pctx)
		if err != nil {
			return msg, err
		}
	case CmdSubscribe:
		return NewMsg(append([]byte{1}, cmd.Body...)), nil
	case CmdCancel:
		return NewMsg(append([]byte{0}, cmd.Body...)), nil
	}

	return Msg{Frames: [][]byte{[]byte(cmd.Name), cmd.Body}, Type: CmdMsg}, nil
}

func (c *Conn) RecvCmd() (Cmd, error) {
	msg, err := c.read()
	if err != nil {
		return Cmd{}, errors.WithStack(err)
	}

	if !msg.isCmd() {
		return Cmd{}, ErrBadFrame
	}

	return asCmd(msg)
}

func asCmd(msg Msg) (Cmd, error) {
	var cmd Cmd
	switch len(msg.Frames) {
	case 0:
		return cmd, errors.Errorf("zsock: empty command")
	case 1:
		// ok
	default:
		return cmd, errors.Errorf("zsock: invalid length command")
	}

	err := cmd.unmarshalZMTP(msg.Frames[0])
	if err != nil {
		return cmd, errors.WithStack(err)
	}
	return cmd, nil
}

// send writes one frame. c.wmu must be held.
func (c *Conn) send(isCommand bool, body []byte, flag byte) error {
	size := len(body)
	isLong := size > 255
	if isLong {
		flag ^= isLongBitFlag
	}

	if isCommand {
		flag ^= isCommandBitFlag
	}

	var (
		hdr = [8 + 1]byte{flag}
		hsz int
	)

	if isLong {
		hsz = 9
		binary.BigEndian.PutUint64(hdr[1:], uint64(size))
	} else {
		hsz = 2
		hdr[1] = uint8(size)
	}

	// fast path for NULL security: header and body go out in one write.
	if c.sec.Type() == NullSecurity {
		buf := make([]byte, 0, hsz+size)
		buf = append(buf, hdr[:hsz]...)
		buf = append(buf, body...)
		_, err := c.rw.Write(buf)
		return err
	}

	if _, err := c.rw.Write(hdr[:hsz]); err != nil {
		return err
	}

	if _, err := c.sec.Encrypt(c.rw, body); err != nil {
		return err
	}

	return nil
}

// read returns the next complete message or command.
func (c *Conn) read() (Msg, error) {
	var (
		header  [2]byte
		longHdr [8]byte
		msg     Msg

		hasMore = true
		isCmd   = false
	)

	for hasMore {
		_, err := io.ReadFull(c.rw, header[:])
		if err != nil {
			return msg, err
		}

		fl := flag(header[0])

		hasMore = fl.hasMore()
		isCmd = isCmd || fl.isCommand()

		size := uint64(header[1])
		if fl.isLong() {
			// the first length byte came with the 2-byte header.
			longHdr[0] = header[1]

			_, err = io.ReadFull(c.rw, longHdr[1:])
			if err != nil {
				return msg, err
			}

			size = binary.BigEndian.Uint64(longHdr[:])
		}

		if size > uint64(maxInt64) {
			return msg, errOverflow
		}
		if c.maxSize >= 0 && !isCmd && size > uint64(c.maxSize) {
			return msg, errOverflow
		}

		body := make([]byte, size)
		_, err = io.ReadFull(c.rw, body)
		if err != nil {
			return msg, err
		}

		if c.sec.Type() == NullSecurity {
			msg.Frames = append(msg.Frames, body)
			continue
		}

		buf := new(bytes.Buffer)
		if _, err = c.sec.Decrypt(buf, body); err != nil {
			return msg, err
		}
		msg.Frames = append(msg.Frames, buf.Bytes())
	}
	if isCmd {
		msg.Type = CmdMsg
	}
	return msg, nil
}

// subscribe applies a subscription message sent by the peer.
func (conn *Conn) subscribe(msg Msg) {
	if len(msg.Frames) == 0 || len(msg.Frames[0]) == 0 {
		return
	}
	v := msg.Frames[0]
	k := string(v[1:])

	conn.mu.Lock()
	switch v[0] {
	case 0:
		delete(conn.topics, k)
	case 1:
		conn.topics[k] = struct{}{}
	}
	conn.mu.Unlock()
}

func (conn *Conn) subscribed(topic string) bool {
	conn.mu.RLock()
	defer conn.mu.RUnlock()
	for k := range conn.topics {
		if strings.HasPrefix(topic, k) {
			return true
		}
	}
	return false
}

func (conn *Conn) subscriptions() []string {
	conn.mu.RLock()
	defer conn.mu.RUnlock()
	o := make([]string, 0, len(conn.topics))
	for k := range conn.topics {
		o = append(o, k)
	}
	return o
}

// isSubscription reports whether msg is a ZMTP 3.0 (un)subscription.
func isSubscription(msg Msg) bool {
	if len(msg.Frames) != 1 || len(msg.Frames[0]) == 0 {
		return false
	}
	switch msg.Frames[0][0] {
	case 0, 1:
		return true
	}
	return false
}
