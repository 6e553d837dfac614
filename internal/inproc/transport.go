// Copyright 2020 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package inproc

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/go-zeromq/zsock/transport"
)

// Transport serves inproc:// endpoints. The dialer is not used: peers
// meet through the process-wide registry of listeners.
type Transport struct{}

func (Transport) Dial(ctx context.Context, _ transport.Dialer, name string) (net.Conn, error) {
	return Dial(ctx, name)
}

func (Transport) Listen(ctx context.Context, name string) (net.Listener, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Listen(name)
}

// Addr accepts any non-empty name without white space.
func (Transport) Addr(name string) (string, error) {
	switch {
	case name == "":
		return "", fmt.Errorf("inproc: empty name")
	case strings.ContainsAny(name, " \t\r\n"):
		return "", fmt.Errorf("inproc: invalid name %q", name)
	}
	return name, nil
}

var _ transport.Transport = Transport{}
