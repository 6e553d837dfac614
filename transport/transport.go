// Copyright 2020 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package transport defines the stream transports zsock sockets
// bind and connect over.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
)

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Transport is the zsock transport interface that wraps
// the Dial and Listen methods.
type Transport interface {
	Dial(ctx context.Context, dialer Dialer, addr string) (net.Conn, error)
	Listen(ctx context.Context, addr string) (net.Listener, error)

	// Addr validates the address part of an endpoint and returns
	// the form Dial and Listen expect.
	Addr(ep string) (addr string, err error)
}

type ipv6Key struct{}

// WithIPv6 returns a context selecting whether TCP transports may use
// IPv6 addresses.
func WithIPv6(ctx context.Context, enabled bool) context.Context {
	return context.WithValue(ctx, ipv6Key{}, enabled)
}

// IPv6 reports whether ctx allows IPv6. Unset means allowed.
func IPv6(ctx context.Context) bool {
	v, ok := ctx.Value(ipv6Key{}).(bool)
	return !ok || v
}

type netTransport struct {
	prot string
}

// New returns a new net-based transport with the given network (e.g "tcp").
func New(network string) Transport {
	return netTransport{prot: network}
}

func (trans netTransport) network(ctx context.Context) string {
	if trans.prot == "tcp" && !IPv6(ctx) {
		return "tcp4"
	}
	return trans.prot
}

func (trans netTransport) Dial(ctx context.Context, dialer Dialer, addr string) (net.Conn, error) {
	return dialer.DialContext(ctx, trans.network(ctx), addr)
}

func (trans netTransport) Listen(ctx context.Context, addr string) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(ctx, trans.network(ctx), addr)
}

func (trans netTransport) Addr(ep string) (string, error) {
	switch trans.prot {
	case "tcp":
		host, port, err := net.SplitHostPort(ep)
		if err != nil {
			return "", fmt.Errorf("transport: invalid tcp address %q: %w", ep, err)
		}
		switch port {
		case "":
			return "", fmt.Errorf("transport: missing port in %q", ep)
		case "*":
			port = "0"
		default:
			if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
				return "", fmt.Errorf("transport: invalid port in %q", ep)
			}
		}
		if host == "*" {
			host = ""
		}
		return net.JoinHostPort(host, port), nil
	case "unix":
		if strings.TrimSpace(ep) == "" {
			return "", fmt.Errorf("transport: empty ipc path")
		}
		return ep, nil
	default:
		return ep, nil
	}
}
