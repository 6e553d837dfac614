// Copyright 2020 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock_test

import (
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-zeromq/zsock"
	"github.com/google/uuid"
)

var (
	Devnull = log.New(io.Discard, "zsock: ", 0)
)

func must(str string, err error) string {
	if err != nil {
		panic(err)
	}
	return str
}

// EndPoint returns a fresh endpoint for the given transport.
func EndPoint(transport string) (string, error) {
	switch transport {
	case "tcp":
		addr, err := net.ResolveTCPAddr("tcp", "127.0.0.1:0")
		if err != nil {
			return "", fmt.Errorf("could not resolve TCP address: %w", err)
		}
		l, err := net.ListenTCP("tcp", addr)
		if err != nil {
			return "", fmt.Errorf("could not listen to TCP addr=%q: %w", addr, err)
		}
		defer l.Close()
		return fmt.Sprintf("tcp://%s", l.Addr()), nil
	case "ipc":
		return "ipc://tmp-" + uuid.NewString(), nil
	case "inproc":
		return "inproc://tmp-" + uuid.NewString(), nil
	default:
		panic("invalid transport: [" + transport + "]")
	}
}

// cleanUp removes the socket file of an ipc endpoint.
func cleanUp(ep string) {
	switch {
	case strings.HasPrefix(ep, "ipc://"):
		os.Remove(ep[len("ipc://"):])
	}
}

// newContext returns a context terminated at the end of the test.
func newContext(t *testing.T, opts ...zsock.ContextOption) *zsock.Context {
	t.Helper()
	ctx, err := zsock.NewContext(1, append([]zsock.ContextOption{zsock.WithContextLogger(Devnull)}, opts...)...)
	if err != nil {
		t.Fatalf("could not create context: %+v", err)
	}
	t.Cleanup(func() {
		if err := ctx.Term(5 * time.Second); err != nil {
			t.Errorf("could not terminate context: %+v", err)
		}
	})
	return ctx
}

// newSocket returns a socket without linger, closed at the end of the test.
func newSocket(t *testing.T, ctx *zsock.Context, typ zsock.SocketType, opts ...zsock.Option) *zsock.Socket {
	t.Helper()
	opts = append([]zsock.Option{zsock.WithLogger(Devnull)}, opts...)
	sck, err := ctx.NewSocket(typ, opts...)
	if err != nil {
		t.Fatalf("could not create %s socket: %+v", typ, err)
	}
	if err := sck.SetOption(zsock.OptionLinger, 0); err != nil {
		t.Fatalf("could not set linger: %+v", err)
	}
	t.Cleanup(func() { sck.Close() })
	return sck
}

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func recvString(t *testing.T, sck *zsock.Socket) []string {
	t.Helper()
	msg, err := sck.RecvMsg(0)
	if err != nil {
		t.Fatalf("could not receive on %s: %+v", sck.Type(), err)
	}
	o := make([]string, len(msg.Frames))
	for i, f := range msg.Frames {
		o[i] = string(f)
	}
	return o
}
