// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build !unix

package fdpoll

import "time"

type Waker struct{}

func NewWaker() (*Waker, error) { return nil, ErrNotSupported }

func (w *Waker) Wake() {}

func (w *Waker) Close() error { return nil }

func Poll(fds []Fd, w *Waker, timeout time.Duration) (int, error) {
	return 0, ErrNotSupported
}
