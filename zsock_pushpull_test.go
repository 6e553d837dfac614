// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/go-zeromq/zsock"
	"golang.org/x/sync/errgroup"
)

func TestPushPull(t *testing.T) {
	var (
		hello = zsock.NewMsg([]byte("HELLO WORLD"))
		bye   = zsock.NewMsgFrom([]byte("GOOD"), []byte("BYE"))
	)

	for _, transport := range []string{"tcp", "ipc", "inproc"} {
		t.Run(transport, func(t *testing.T) {
			ep := must(EndPoint(transport))
			cleanUp(ep)
			defer cleanUp(ep)

			zctx := newContext(t)
			push := newSocket(t, zctx, zsock.Push)
			pull := newSocket(t, zctx, zsock.Pull)

			if err := push.Bind(ep); err != nil {
				t.Fatalf("could not bind: %+v", err)
			}
			if addr := push.Addr(); addr == nil {
				t.Fatalf("listener with nil Addr")
			}

			ctx, timeout := context.WithTimeout(context.Background(), 20*time.Second)
			defer timeout()

			grp, _ := errgroup.WithContext(ctx)
			grp.Go(func() error {
				err := push.SendMsg(hello, zsock.SendCopy)
				if err != nil {
					return fmt.Errorf("could not send %v: %w", hello, err)
				}

				err = push.SendMsg(bye, zsock.SendCopy)
				if err != nil {
					return fmt.Errorf("could not send %v: %w", bye, err)
				}
				return nil
			})
			grp.Go(func() error {
				err := pull.Connect(ep)
				if err != nil {
					return fmt.Errorf("could not connect: %w", err)
				}

				if addr := pull.Addr(); addr != nil {
					return fmt.Errorf("dialer with non-nil Addr")
				}

				msg, err := pull.RecvMsg(0)
				if err != nil {
					return fmt.Errorf("could not recv %v: %w", hello, err)
				}

				if got, want := msg, hello; !reflect.DeepEqual(got, want) {
					return fmt.Errorf("recv1: got = %v, want= %v", got, want)
				}

				msg, err = pull.RecvMsg(0)
				if err != nil {
					return fmt.Errorf("could not recv %v: %w", bye, err)
				}

				if got, want := msg, bye; !reflect.DeepEqual(got, want) {
					return fmt.Errorf("recv2: got = %v, want= %v", got, want)
				}
				return nil
			})
			if err := grp.Wait(); err != nil {
				t.Fatalf("error: %+v", err)
			}
		})
	}
}

func TestPushPullHello(t *testing.T) {
	zctx := newContext(t)

	push := newSocket(t, zctx, zsock.Push)
	if err := push.Bind("tcp://127.0.0.1:5555"); err != nil {
		t.Fatalf("could not bind: %+v", err)
	}

	pull := newSocket(t, zctx, zsock.Pull)
	if err := pull.Connect("tcp://127.0.0.1:5555"); err != nil {
		t.Fatalf("could not connect: %+v", err)
	}

	if err := push.Send(zsock.NewFrameString("hello"), 0); err != nil {
		t.Fatalf("could not send: %+v", err)
	}

	f, err := pull.Recv(0)
	if err != nil {
		t.Fatalf("could not recv: %+v", err)
	}
	if got, want := string(f.Bytes()), "hello"; got != want {
		t.Fatalf("invalid message: got=%q, want=%q", got, want)
	}
	if f.More() {
		t.Fatalf("single-frame message with more flag")
	}
}

func TestPushRoundRobin(t *testing.T) {
	zctx := newContext(t)

	push := newSocket(t, zctx, zsock.Push)
	pulls := []*zsock.Socket{
		newSocket(t, zctx, zsock.Pull),
		newSocket(t, zctx, zsock.Pull),
	}
	for _, pull := range pulls {
		ep := must(EndPoint("inproc"))
		if err := pull.Bind(ep); err != nil {
			t.Fatalf("could not bind: %+v", err)
		}
		if err := push.Connect(ep); err != nil {
			t.Fatalf("could not connect: %+v", err)
		}
	}

	for i := 0; i < 4; i++ {
		if err := push.Send(zsock.NewFrameString(fmt.Sprintf("msg-%d", i)), 0); err != nil {
			t.Fatalf("could not send message %d: %+v", i, err)
		}
	}

	for i, pull := range pulls {
		for j := 0; j < 2; j++ {
			got := recvString(t, pull)
			want := fmt.Sprintf("msg-%d", i+2*j)
			if got[0] != want {
				t.Fatalf("pull-%d: got=%q, want=%q", i, got[0], want)
			}
		}
	}
}

func TestPushNoPeerWouldBlock(t *testing.T) {
	zctx := newContext(t)
	push := newSocket(t, zctx, zsock.Push)

	start := time.Now()
	err := push.Send(zsock.NewFrameString("lost"), zsock.DontWait)
	if !errors.Is(err, zsock.ErrWouldBlock) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, zsock.ErrWouldBlock)
	}
	if !errors.Is(err, zsock.EAGAIN) {
		t.Fatalf("invalid error code: %+v", err)
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		t.Fatalf("non-blocking send took %v", d)
	}
}

func TestPullEmptyWouldBlock(t *testing.T) {
	zctx := newContext(t)
	pull := newSocket(t, zctx, zsock.Pull)
	if err := pull.Bind(must(EndPoint("inproc"))); err != nil {
		t.Fatalf("could not bind: %+v", err)
	}

	start := time.Now()
	_, err := pull.Recv(zsock.DontWait)
	if !errors.Is(err, zsock.ErrWouldBlock) {
		t.Fatalf("invalid error: got=%+v, want=%v", err, zsock.ErrWouldBlock)
	}
	if d := time.Since(start); d > 100*time.Millisecond {
		t.Fatalf("non-blocking recv took %v", d)
	}
}

func TestPushSendTimeout(t *testing.T) {
	zctx := newContext(t)
	ep := must(EndPoint("inproc"))

	push := newSocket(t, zctx, zsock.Push, zsock.WithTimeout(100*time.Millisecond))
	if err := push.SetOption(zsock.OptionSndHWM, 1); err != nil {
		t.Fatalf("could not set SNDHWM: %+v", err)
	}
	if err := push.Bind(ep); err != nil {
		t.Fatalf("could not bind: %+v", err)
	}

	pull := newSocket(t, zctx, zsock.Pull)
	if err := pull.SetOption(zsock.OptionRcvHWM, 1); err != nil {
		t.Fatalf("could not set RCVHWM: %+v", err)
	}
	if err := pull.Connect(ep); err != nil {
		t.Fatalf("could not connect: %+v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		if time.Now().After(deadline) {
			t.Fatalf("send never timed out")
		}
		err := push.Send(zsock.NewFrameString("test string"), 0)
		if err == nil {
			continue
		}
		if !errors.Is(err, zsock.ErrWouldBlock) {
			t.Fatalf("invalid error: %+v", err)
		}
		break
	}
}
