// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"io"

	"github.com/pkg/errors"
)

// Security is a ZMTP security mechanism.
//
// Handshake runs right after the greeting. On success both conn.Meta and
// conn.Peer.Meta hold the metadata exchanged by the READY (or INITIATE)
// commands. A mechanism refusing the peer should tell it why with
// conn.SendError before returning.
type Security interface {
	Type() SecurityType
	Handshake(conn *Conn, server bool) error

	// Encrypt writes the encrypted form of data to w.
	Encrypt(w io.Writer, data []byte) (int, error)

	// Decrypt writes the decrypted form of data to w.
	Decrypt(w io.Writer, data []byte) (int, error)
}

// SecurityType is the mechanism name carried by the ZMTP greeting.
type SecurityType string

const (
	// NullSecurity does no authentication nor encryption.
	NullSecurity SecurityType = "NULL"

	// PlainSecurity sends clear-text credentials.
	// It should not be used for anything important.
	PlainSecurity SecurityType = "PLAIN"

	// CurveSecurity is recognized in greetings but not implemented.
	CurveSecurity SecurityType = "CURVE"
)

type nullSecurity struct{}

func (nullSecurity) Type() SecurityType { return NullSecurity }

// Handshake exchanges READY commands. Both sides send first.
func (nullSecurity) Handshake(conn *Conn, server bool) error {
	raw, err := conn.Meta.MarshalZMTP()
	if err != nil {
		return errors.Wrapf(err, "zsock: could not marshal metadata")
	}
	if err := conn.SendCmd(CmdReady, raw); err != nil {
		return errors.Wrapf(err, "zsock: could not send READY")
	}

	cmd, err := conn.RecvCmd()
	if err != nil {
		return errors.Wrapf(err, "zsock: could not receive READY")
	}
	switch cmd.Name {
	case CmdReady:
	case CmdError:
		return errors.Errorf("zsock: peer rejected handshake: %q", ErrorReason(cmd.Body))
	default:
		_ = conn.SendError("expected READY")
		return errors.Wrapf(ErrBadCmd, "zsock: got %q during NULL handshake", cmd.Name)
	}

	if err := conn.Peer.Meta.UnmarshalZMTP(cmd.Body); err != nil {
		_ = conn.SendError("malformed metadata")
		return errors.Wrapf(err, "zsock: could not unmarshal peer metadata")
	}
	if _, ok := conn.Peer.Meta[sysSockType]; !ok {
		_ = conn.SendError("missing Socket-Type")
		return errors.Wrapf(errIncompatiblePeer, "zsock: peer did not announce its socket type")
	}
	return nil
}

func (nullSecurity) Encrypt(w io.Writer, data []byte) (int, error) { return w.Write(data) }
func (nullSecurity) Decrypt(w io.Writer, data []byte) (int, error) { return w.Write(data) }

// SendError sends an ERROR command telling the peer why the handshake
// failed. Reasons longer than 255 bytes are truncated.
func (c *Conn) SendError(reason string) error {
	if len(reason) > 255 {
		reason = reason[:255]
	}
	body := make([]byte, 0, 1+len(reason))
	body = append(body, byte(len(reason)))
	body = append(body, reason...)
	return c.SendCmd(CmdError, body)
}

// ErrorReason decodes the reason carried by an ERROR command body.
func ErrorReason(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	n := int(body[0])
	if n > len(body)-1 {
		n = len(body) - 1
	}
	return string(body[1 : 1+n])
}

var _ Security = nullSecurity{}
