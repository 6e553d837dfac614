// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package plain provides the ZeroMQ PLAIN security mechanism as specified by:
// https://rfc.zeromq.org/spec:24/ZMTP-PLAIN/
package plain

import (
	"io"

	"github.com/go-zeromq/zsock"
	"golang.org/x/xerrors"
)

// errAuth is returned to a client whose credentials were rejected.
var errAuth = xerrors.New("security/plain: invalid credentials")

// Authenticator checks the credentials sent by a client.
type Authenticator func(user, pass string) bool

// security implements the PLAIN security mechanism.
type security struct {
	user []byte
	pass []byte
	auth Authenticator
}

// Security returns a value that implements the PLAIN security mechanism.
// The credentials are sent when acting as a client. When acting as a
// server, any credentials are accepted.
func Security(user, pass string) zsock.Security {
	return &security{user: []byte(user), pass: []byte(pass)}
}

// Server returns a PLAIN mechanism for servers, admitting the clients
// whose credentials auth accepts.
func Server(auth Authenticator) zsock.Security {
	return &security{auth: auth}
}

// Type returns the security mechanism type.
func (*security) Type() zsock.SecurityType {
	return zsock.PlainSecurity
}

// Handshake implements the ZMTP security handshake according to
// this security mechanism.
// see:
//
//	https://rfc.zeromq.org/spec:23/ZMTP/
//	https://rfc.zeromq.org/spec:24/ZMTP-PLAIN/
func (sec *security) Handshake(conn *zsock.Conn, server bool) error {
	if server {
		return sec.serve(conn)
	}
	return sec.dial(conn)
}

func (sec *security) serve(conn *zsock.Conn) error {
	cmd, err := conn.RecvCmd()
	if err != nil {
		return xerrors.Errorf("security/plain: could not receive HELLO from client: %w", err)
	}

	if cmd.Name != zsock.CmdHello {
		_ = conn.SendError("expected HELLO")
		return xerrors.Errorf("security/plain: expected HELLO command, got %q", cmd.Name)
	}

	user, pass, err := parseHello(cmd.Body)
	if err != nil {
		_ = conn.SendError("malformed HELLO")
		return xerrors.Errorf("security/plain: could not decode HELLO: %w", err)
	}

	if sec.auth != nil && !sec.auth(user, pass) {
		_ = conn.SendError("invalid credentials")
		return xerrors.Errorf("security/plain: could not authenticate user %q: %w", user, errAuth)
	}

	err = conn.SendCmd(zsock.CmdWelcome, nil)
	if err != nil {
		return xerrors.Errorf("security/plain: could not send WELCOME to client: %w", err)
	}

	cmd, err = conn.RecvCmd()
	if err != nil {
		return xerrors.Errorf("security/plain: could not receive INITIATE from client: %w", err)
	}
	if cmd.Name != zsock.CmdInitiate {
		_ = conn.SendError("expected INITIATE")
		return xerrors.Errorf("security/plain: expected INITIATE command, got %q", cmd.Name)
	}

	err = conn.Peer.Meta.UnmarshalZMTP(cmd.Body)
	if err != nil {
		return xerrors.Errorf("security/plain: could not unmarshal peer metadata: %w", err)
	}

	raw, err := conn.Meta.MarshalZMTP()
	if err != nil {
		_ = conn.SendError("internal error")
		return xerrors.Errorf("security/plain: could not serialize metadata: %w", err)
	}

	err = conn.SendCmd(zsock.CmdReady, raw)
	if err != nil {
		return xerrors.Errorf("security/plain: could not send READY to client: %w", err)
	}
	return nil
}

func (sec *security) dial(conn *zsock.Conn) error {
	hello := make([]byte, 0, len(sec.user)+len(sec.pass)+2)
	hello = append(hello, byte(len(sec.user)))
	hello = append(hello, sec.user...)
	hello = append(hello, byte(len(sec.pass)))
	hello = append(hello, sec.pass...)

	err := conn.SendCmd(zsock.CmdHello, hello)
	if err != nil {
		return xerrors.Errorf("security/plain: could not send HELLO to server: %w", err)
	}

	cmd, err := conn.RecvCmd()
	if err != nil {
		return xerrors.Errorf("security/plain: could not receive WELCOME from server: %w", err)
	}
	switch cmd.Name {
	case zsock.CmdWelcome:
	case zsock.CmdError:
		return xerrors.Errorf("security/plain: server rejected HELLO (%s): %w", zsock.ErrorReason(cmd.Body), errAuth)
	default:
		return xerrors.Errorf("security/plain: expected a WELCOME command from server, got %q", cmd.Name)
	}

	raw, err := conn.Meta.MarshalZMTP()
	if err != nil {
		return xerrors.Errorf("security/plain: could not serialize metadata: %w", err)
	}

	err = conn.SendCmd(zsock.CmdInitiate, raw)
	if err != nil {
		return xerrors.Errorf("security/plain: could not send INITIATE to server: %w", err)
	}

	cmd, err = conn.RecvCmd()
	if err != nil {
		return xerrors.Errorf("security/plain: could not receive READY from server: %w", err)
	}
	switch cmd.Name {
	case zsock.CmdReady:
	case zsock.CmdError:
		return xerrors.Errorf("security/plain: server rejected INITIATE: %s", zsock.ErrorReason(cmd.Body))
	default:
		return xerrors.Errorf("security/plain: expected a READY command from server, got %q", cmd.Name)
	}

	err = conn.Peer.Meta.UnmarshalZMTP(cmd.Body)
	if err != nil {
		return xerrors.Errorf("security/plain: could not unmarshal peer metadata: %w", err)
	}
	return nil
}

// Encrypt writes the encrypted form of data to w.
func (*security) Encrypt(w io.Writer, data []byte) (int, error) {
	return w.Write(data)
}

// Decrypt writes the decrypted form of data to w.
func (*security) Decrypt(w io.Writer, data []byte) (int, error) {
	return w.Write(data)
}

// parseHello decodes the user and password of a HELLO body.
func parseHello(body []byte) (user, pass string, err error) {
	field := func() (string, error) {
		if len(body) == 0 {
			return "", io.ErrUnexpectedEOF
		}
		n := int(body[0])
		if len(body) < 1+n {
			return "", io.ErrUnexpectedEOF
		}
		v := string(body[1 : 1+n])
		body = body[1+n:]
		return v, nil
	}

	user, err = field()
	if err != nil {
		return "", "", xerrors.Errorf("invalid user name: %w", err)
	}
	pass, err = field()
	if err != nil {
		return "", "", xerrors.Errorf("invalid password: %w", err)
	}
	if len(body) != 0 {
		return "", "", xerrors.Errorf("trailing %d bytes", len(body))
	}
	return user, pass, nil
}

var (
	_ zsock.Security = (*security)(nil)
)
