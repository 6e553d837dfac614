// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build unix

package fdpoll

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func pipe(t *testing.T) (r, w int) {
	t.Helper()
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		t.Fatalf("could not create pipe: %+v", err)
	}
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	return p[0], p[1]
}

func TestPollReadable(t *testing.T) {
	r, w := pipe(t)

	fds := []Fd{{Fd: uintptr(r), Events: In}}
	n, err := Poll(fds, nil, 0)
	if err != nil {
		t.Fatalf("could not poll: %+v", err)
	}
	if n != 0 || fds[0].Revents != 0 {
		t.Fatalf("empty pipe reported ready: n=%d revents=%v", n, fds[0].Revents)
	}

	if _, err := unix.Write(w, []byte("x")); err != nil {
		t.Fatalf("could not write: %+v", err)
	}

	n, err = Poll(fds, nil, time.Second)
	if err != nil {
		t.Fatalf("could not poll: %+v", err)
	}
	if n != 1 || fds[0].Revents != In {
		t.Fatalf("invalid poll result: n=%d revents=%v", n, fds[0].Revents)
	}
}

func TestPollWritable(t *testing.T) {
	_, w := pipe(t)

	fds := []Fd{{Fd: uintptr(w), Events: In | Out}}
	n, err := Poll(fds, nil, 0)
	if err != nil {
		t.Fatalf("could not poll: %+v", err)
	}
	if n != 1 || fds[0].Revents != Out {
		t.Fatalf("invalid poll result: n=%d revents=%v", n, fds[0].Revents)
	}
}

func TestPollTimeout(t *testing.T) {
	r, _ := pipe(t)

	const timeout = 50 * time.Millisecond
	start := time.Now()
	n, err := Poll([]Fd{{Fd: uintptr(r), Events: In}}, nil, timeout)
	if err != nil {
		t.Fatalf("could not poll: %+v", err)
	}
	if n != 0 {
		t.Fatalf("invalid number of ready fds: %d", n)
	}
	if elapsed := time.Since(start); elapsed < timeout {
		t.Fatalf("poll returned too early: %v", elapsed)
	}
}

func TestWakerInterruptsPoll(t *testing.T) {
	r, _ := pipe(t)

	wk, err := NewWaker()
	if err != nil {
		t.Fatalf("could not create waker: %+v", err)
	}
	defer wk.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		wk.Wake()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		n, err := Poll([]Fd{{Fd: uintptr(r), Events: In}}, wk, -1)
		if err != nil {
			t.Errorf("could not poll: %+v", err)
		}
		if n != 0 {
			t.Errorf("invalid number of ready fds: %d", n)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("waker did not interrupt poll")
	}

	// the wake-up was consumed.
	n, err := Poll(nil, wk, 0)
	if err != nil || n != 0 {
		t.Fatalf("invalid poll result: n=%d err=%+v", n, err)
	}
}

func TestPollInvalidFd(t *testing.T) {
	r, w := pipe(t)
	unix.Close(r)
	_ = w

	fds := []Fd{{Fd: uintptr(r), Events: In}}
	n, err := Poll(fds, nil, 0)
	if err != nil {
		t.Fatalf("could not poll: %+v", err)
	}
	if n != 1 || fds[0].Revents&Err == 0 {
		t.Fatalf("closed fd not reported in error: n=%d revents=%v", n, fds[0].Revents)
	}
}
