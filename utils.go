// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var (
	errInvalidAddress   = errors.New("zsock: invalid address")
	errUnknownTransport = errors.New("zsock: unknown transport")
)

// splitAddr returns the triplet (network, addr, error)
func splitAddr(v string) (network, addr string, err error) {
	ep := strings.SplitN(v, "://", 2)
	if len(ep) != 2 || ep[0] == "" {
		return network, addr, fmt.Errorf("%w %q", errInvalidAddress, v)
	}
	network = ep[0]

	trans, err := drivers.lookup(network)
	if err != nil {
		return network, addr, err
	}

	addr, err = trans.Addr(ep[1])
	if err != nil {
		return network, addr, fmt.Errorf("%w %q: %v", errInvalidAddress, v, err)
	}
	return network, addr, nil
}

// newIdentity returns a random routing identity.
func newIdentity() SocketIdentity {
	return SocketIdentity(uuid.NewString())
}
