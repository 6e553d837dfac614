// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fdpoll waits for readiness of raw file descriptors.
package fdpoll

import "errors"

// ErrNotSupported is returned on platforms without poll(2).
var ErrNotSupported = errors.New("fdpoll: descriptor polling not supported on this platform")

// Events is a set of descriptor conditions.
type Events uint8

const (
	In  Events = 1 << iota // readable
	Out                    // writable
	Err                    // error, hang-up or invalid descriptor
)

// Fd is one descriptor to poll.
type Fd struct {
	Fd      uintptr
	Events  Events // requested
	Revents Events // observed
}
