// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

var (
	errGreeting      = errors.New("zsock: invalid greeting received")
	errSecMech       = errors.New("zsock: invalid security mechanism")
	errBadSec        = errors.New("zsock: invalid or unsupported security mechanism")
	ErrBadCmd        = errors.New("zsock: invalid command name")
	ErrBadFrame      = errors.New("zsock: invalid frame")
	errOverflow      = errors.New("zsock: overflow")
	errEmptyAppMDKey = errors.New("zsock: empty application metadata key")
	errDupAppMDKey   = errors.New("zsock: duplicate application metadata key")
	errBoolCnv       = errors.New("zsock: invalid byte to bool conversion")
)

const (
	sigHeader = 0xFF
	sigFooter = 0x7F

	majorVersion uint8 = 3
	minorVersion uint8 = 0

	hasMoreBitFlag   = 0x1
	isLongBitFlag    = 0x2
	isCommandBitFlag = 0x4

	zmtpMsgLen = 64
)

var defaultVersion = [2]uint8{majorVersion, minorVersion}

const (
	maxUint   = ^uint(0)
	maxInt    = int(maxUint >> 1)
	maxUint64 = ^uint64(0)
	maxInt64  = int64(maxUint64 >> 1)
)

func asString(slice []byte) string {
	i := bytes.IndexByte(slice, 0)
	if i < 0 {
		i = len(slice)
	}
	return string(slice[:i])
}

func asBool(b byte) (bool, error) {
	switch b {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	}
	return false, errBoolCnv
}

type greeting struct {
	Sig struct {
		Header byte
		_      [8]byte
		Footer byte
	}
	Version   [2]uint8
	Mechanism [20]byte
	Server    byte
	_         [31]byte
}

func newGreeting(mech SecurityType, server bool) (greeting, error) {
	g := greeting{Version: defaultVersion}
	g.Sig.Header = sigHeader
	g.Sig.Footer = sigFooter
	if len(mech) > len(g.Mechanism) {
		return g, errSecMech
	}
	copy(g.Mechanism[:], mech)
	if server {
		g.Server = 1
	}
	return g, nil
}

func (g *greeting) read(r io.Reader) error {
	var data [zmtpMsgLen]byte
	_, err := io.ReadFull(r, data[:])
	if err != nil {
		return fmt.Errorf("could not read ZMTP greeting: %w", err)
	}

	g.unmarshal(data[:])

	if g.Sig.Header != sigHeader {
		return fmt.Errorf("invalid ZMTP signature header: %w", errGreeting)
	}

	if g.Sig.Footer != sigFooter {
		return fmt.Errorf("invalid ZMTP signature footer: %w", errGreeting)
	}

	if !g.validate(defaultVersion) {
		return fmt.Errorf(
			"invalid ZMTP version (got=%v, want=%v): %w",
			g.Version, defaultVersion, errGreeting,
		)
	}

	return nil
}

func (g *greeting) unmarshal(data []byte) {
	_ = data[:zmtpMsgLen]
	g.Sig.Header = data[0]
	g.Sig.Footer = data[9]
	g.Version[0] = data[10]
	g.Version[1] = data[11]
	copy(g.Mechanism[:], data[12:32])
	g.Server = data[32]
}

func (g *greeting) write(w io.Writer) error {
	_, err := w.Write(g.marshal())
	return err
}

func (g *greeting) marshal() []byte {
	var buf [zmtpMsgLen]byte
	buf[0] = g.Sig.Header
	buf[9] = g.Sig.Footer
	buf[10] = g.Version[0]
	buf[11] = g.Version[1]
	copy(buf[12:32], g.Mechanism[:])
	buf[32] = g.Server
	return buf[:]
}

// validate accepts any peer speaking ZMTP 3.0 or later.
func (g *greeting) validate(ref [2]uint8) bool {
	switch {
	case g.Version[0] > ref[0]:
		return true
	case g.Version[0] == ref[0]:
		return g.Version[1] >= ref[1]
	default:
		return false
	}
}

const (
	sysSockType = "Socket-Type"
	sysSockID   = "Identity"
)

// Metadata is describing a Conn's metadata information.
type Metadata map[string]string

// MarshalZMTP marshals Metadata to ZMTP encoded data.
// Properties are written in key order so the encoding is stable.
func (md Metadata) MarshalZMTP() ([]byte, error) {
	var (
		buf  []byte
		keys = make([]string, 0, len(md))
		seen = make(map[string]struct{}, len(md))
	)

	for k := range md {
		if len(k) == 0 {
			return nil, errEmptyAppMDKey
		}
		key := strings.ToLower(k)
		if _, dup := seen[key]; dup {
			return nil, errDupAppMDKey
		}
		seen[key] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		name := k
		switch canonicalKey(k) {
		case sysSockID, sysSockType:
		default:
			if !strings.HasPrefix(strings.ToLower(k), "x-") {
				name = "X-" + k
			}
		}
		var err error
		buf, err = Property{K: name, V: md[k]}.appendZMTP(buf)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

// UnmarshalZMTP unmarshals Metadata from a ZMTP encoded data.
func (md *Metadata) UnmarshalZMTP(p []byte) error {
	if *md == nil {
		*md = make(Metadata)
	}
	for len(p) > 0 {
		var kv Property
		n, err := kv.unmarshalZMTP(p)
		if err != nil {
			return err
		}
		p = p[n:]
		(*md)[kv.K] = kv.V
	}
	return nil
}

// Property describes a Conn metadata's entry.
// The on-wire respresentation of Property is specified by:
//
//	https://rfc.zeromq.org/spec:23/ZMTP/
type Property struct {
	K string
	V string
}

func (prop Property) appendZMTP(buf []byte) ([]byte, error) {
	if len(prop.K) == 0 || len(prop.K) > 255 {
		return buf, errEmptyAppMDKey
	}
	if uint64(len(prop.V)) > uint64(^uint32(0)) {
		return buf, errOverflow
	}
	buf = append(buf, byte(len(prop.K)))
	buf = append(buf, canonicalKey(prop.K)...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(prop.V)))
	buf = append(buf, prop.V...)
	return buf, nil
}

func (prop *Property) unmarshalZMTP(data []byte) (int, error) {
	if len(data) < 1 {
		return 0, io.ErrUnexpectedEOF
	}
	klen := int(data[0])
	n := 1
	if n+klen+4 > len(data) {
		return n, io.ErrUnexpectedEOF
	}
	prop.K = canonicalKey(string(data[n : n+klen]))
	n += klen

	v := binary.BigEndian.Uint32(data[n : n+4])
	n += 4
	if uint64(v) > uint64(maxInt) {
		return n, errOverflow
	}

	vlen := int(v)
	if n+vlen > len(data) {
		return n, io.ErrUnexpectedEOF
	}
	prop.V = string(data[n : n+vlen])
	n += vlen
	return n, nil
}

// canonicalKey upper-cases the first letter of each dash separated word.
// Property names are case-insensitive on the wire.
func canonicalKey(k string) string {
	b := []byte(strings.ToLower(k))
	up := true
	for i, c := range b {
		if up && 'a' <= c && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		up = c == '-'
	}
	return string(b)
}

type flag byte

func (fl flag) hasMore() bool   { return fl&hasMoreBitFlag == hasMoreBitFlag }
func (fl flag) isLong() bool    { return fl&isLongBitFlag == isLongBitFlag }
func (fl flag) isCommand() bool { return fl&isCommandBitFlag == isCommandBitFlag }

// Cmd is a ZMTP Cmd as per:
//
//	https://rfc.zeromq.org/spec:23/ZMTP/#formal-grammar
type Cmd struct {
	Name string
	Body []byte
}

func (cmd *Cmd) unmarshalZMTP(data []byte) error {
	if len(data) == 0 {
		return io.ErrUnexpectedEOF
	}
	n := int(data[0])
	if n > len(data)-1 {
		return ErrBadCmd
	}
	cmd.Name = string(data[1 : n+1])
	cmd.Body = data[n+1:]
	return nil
}

func (cmd *Cmd) marshalZMTP() ([]byte, error) {
	n := len(cmd.Name)
	if n == 0 || n > 255 {
		return nil, ErrBadCmd
	}

	buf := make([]byte, 0, 1+n+len(cmd.Body))
	buf = append(buf, byte(n))
	buf = append(buf, cmd.Name...)
	buf = append(buf, cmd.Body...)
	return buf, nil
}

// ZMTP commands as per:
//
//	https://rfc.zeromq.org/spec:23/ZMTP/#commands
const (
	CmdCancel    = "CANCEL"
	CmdError     = "ERROR"
	CmdHello     = "HELLO"
	CmdInitiate  = "INITIATE"
	CmdPing      = "PING"
	CmdPong      = "PONG"
	CmdReady     = "READY"
	CmdSubscribe = "SUBSCRIBE"
	CmdWelcome   = "WELCOME"
)
