// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock_test

import (
	"errors"
	"testing"
	"time"

	"github.com/go-zeromq/zsock"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	for _, tc := range []struct {
		name    string
		threads int
		opts    []zsock.ContextOption
		want    zsock.Errno
	}{
		{name: "no-threads", threads: 0, want: zsock.EINVAL},
		{name: "negative-threads", threads: -1, want: zsock.EINVAL},
		{name: "too-many-threads", threads: zsock.MaxIOThreads + 1, want: zsock.ENOMEM},
		{name: "no-sockets", threads: 1, opts: []zsock.ContextOption{zsock.WithMaxSockets(0)}, want: zsock.EINVAL},
		{name: "too-many-sockets", threads: 1, opts: []zsock.ContextOption{zsock.WithMaxSockets(1 << 20)}, want: zsock.EINVAL},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx, err := zsock.NewContext(tc.threads, tc.opts...)
			require.Nil(t, ctx)
			require.Equal(t, tc.want, zsock.ErrnoOf(err))
		})
	}

	ctx, err := zsock.NewContext(zsock.MaxIOThreads, zsock.WithBlocky(false), zsock.WithIPv6(false))
	require.NoError(t, err)
	require.Equal(t, zsock.MaxIOThreads, ctx.IOThreads())
	require.Equal(t, 1023, ctx.MaxSockets())
	require.Equal(t, int64(-1), ctx.MaxMsgSize())
	require.False(t, ctx.Blocky())
	require.False(t, ctx.IPv6())
	require.Equal(t, 65535, ctx.SocketLimit())
	require.NoError(t, ctx.Term(time.Second))
}

func TestContextMaxSockets(t *testing.T) {
	zctx := newContext(t, zsock.WithMaxSockets(2))

	a := newSocket(t, zctx, zsock.Pair)
	newSocket(t, zctx, zsock.Pair)
	require.Equal(t, 2, zctx.Sockets())

	_, err := zctx.NewSocket(zsock.Pair)
	require.Equal(t, zsock.EMFILE, zsock.ErrnoOf(err))
	require.ErrorIs(t, err, zsock.ErrResourceExhausted)

	// closing a socket frees its slot.
	require.NoError(t, a.Close())
	require.Equal(t, 1, zctx.Sockets())
	newSocket(t, zctx, zsock.Pair)

	_, err = zctx.NewSocket(zsock.SocketType("BOGUS"))
	require.Equal(t, zsock.EINVAL, zsock.ErrnoOf(err))
}

func TestContextTerm(t *testing.T) {
	zctx, err := zsock.NewContext(1, zsock.WithContextLogger(Devnull))
	require.NoError(t, err)

	sck, err := zctx.NewSocket(zsock.Pull, zsock.WithLogger(Devnull))
	require.NoError(t, err)
	require.NoError(t, sck.Close())

	require.NoError(t, zctx.Term(time.Second))
	require.NoError(t, zctx.Term(time.Second), "terminating twice is a no-op")

	_, err = zctx.NewSocket(zsock.Pull)
	require.Equal(t, zsock.ETERM, zsock.ErrnoOf(err))
	require.ErrorIs(t, err, zsock.ErrUseAfterClose)
}

func TestContextTermBusy(t *testing.T) {
	zctx, err := zsock.NewContext(1, zsock.WithBlocky(false), zsock.WithContextLogger(Devnull))
	require.NoError(t, err)

	sck, err := zctx.NewSocket(zsock.Pair, zsock.WithLogger(Devnull))
	require.NoError(t, err)

	err = zctx.Term(time.Second)
	require.Equal(t, zsock.EBUSY, zsock.ErrnoOf(err))
	require.ErrorIs(t, err, zsock.ErrShutdownTimeout)

	require.NoError(t, sck.Close())
	require.NoError(t, zctx.Term(time.Second))
}

func TestContextTermTimeout(t *testing.T) {
	zctx, err := zsock.NewContext(1, zsock.WithContextLogger(Devnull))
	require.NoError(t, err)

	// the default LINGER is infinite: the socket is forcibly closed.
	_, err = zctx.NewSocket(zsock.Push, zsock.WithLogger(Devnull))
	require.NoError(t, err)

	start := time.Now()
	err = zctx.Term(50 * time.Millisecond)
	require.Equal(t, zsock.ETIMEDOUT, zsock.ErrnoOf(err))
	require.ErrorIs(t, err, zsock.ErrShutdownTimeout)
	require.Less(t, time.Since(start), 5*time.Second)
	require.Equal(t, 0, zctx.Sockets())
}

func TestContextTermNoLinger(t *testing.T) {
	zctx, err := zsock.NewContext(1, zsock.WithContextLogger(Devnull))
	require.NoError(t, err)

	sck, err := zctx.NewSocket(zsock.Push, zsock.WithLogger(Devnull))
	require.NoError(t, err)
	require.NoError(t, sck.SetOption(zsock.OptionLinger, 0))

	// sockets without linger are closed quietly.
	require.NoError(t, zctx.Term(50*time.Millisecond))
}

func TestContextLinger(t *testing.T) {
	zctx := newContext(t)
	pull := newSocket(t, zctx, zsock.Pull)

	ep := must(EndPoint("tcp"))
	require.NoError(t, pull.Bind(ep))

	push, err := zctx.NewSocket(zsock.Push, zsock.WithLogger(Devnull))
	require.NoError(t, err)
	require.NoError(t, push.SetOption(zsock.OptionLinger, 5*time.Second))
	require.NoError(t, push.Connect(ep))

	const n = 100
	for i := 0; i < n; i++ {
		require.NoError(t, push.SendMsg(zsock.NewMsgString("queued"), 0))
	}
	// queued messages are still delivered after Close.
	require.NoError(t, push.Close())

	for i := 0; i < n; i++ {
		require.Equal(t, []string{"queued"}, recvString(t, pull))
	}
}

func TestContextShutdown(t *testing.T) {
	zctx := newContext(t)
	pull := newSocket(t, zctx, zsock.Pull)
	push := newSocket(t, zctx, zsock.Push)

	require.NoError(t, zctx.Shutdown())
	require.NoError(t, zctx.Shutdown(), "shutdown is idempotent")

	_, err := pull.Recv(0)
	require.Equal(t, zsock.ETERM, zsock.ErrnoOf(err))
	err = push.SendMsg(zsock.NewMsgString("x"), 0)
	require.Equal(t, zsock.ETERM, zsock.ErrnoOf(err))
	require.True(t, errors.Is(err, zsock.ErrUseAfterClose))

	_, err = zctx.NewSocket(zsock.Pair)
	require.Equal(t, zsock.ETERM, zsock.ErrnoOf(err))

	// closing interrupted sockets still works.
	require.NoError(t, pull.Close())
	require.NoError(t, push.Close())
}

func TestContextSingleThreadSameContext(t *testing.T) {
	zctx := newContext(t)
	require.Equal(t, 1, zctx.IOThreads())

	pull := newSocket(t, zctx, zsock.Pull)
	push := newSocket(t, zctx, zsock.Push)

	ep := must(EndPoint("tcp"))
	require.NoError(t, pull.Bind(ep))
	require.NoError(t, push.Connect(ep))

	require.NoError(t, pull.SetOption(zsock.OptionRcvTimeout, 5*time.Second))
	require.NoError(t, push.SendMsg(zsock.NewMsgString("hello"), 0))
	require.Equal(t, []string{"hello"}, recvString(t, pull))
}

func TestContextSingleThreadManyPeers(t *testing.T) {
	zctx := newContext(t)

	router := newSocket(t, zctx, zsock.Router)
	ep := must(EndPoint("tcp"))
	require.NoError(t, router.Bind(ep))
	require.NoError(t, router.SetOption(zsock.OptionRcvTimeout, 5*time.Second))

	const n = 8
	for i := 0; i < n; i++ {
		dealer := newSocket(t, zctx, zsock.Dealer)
		require.NoError(t, dealer.Connect(ep))
		require.NoError(t, dealer.SendMsg(zsock.NewMsgString("ready"), 0))
	}

	for i := 0; i < n; i++ {
		msg := recvString(t, router)
		require.Len(t, msg, 2)
		require.Equal(t, "ready", msg[1])
	}
}

func TestContextNonBlockyLinger(t *testing.T) {
	for _, tc := range []struct {
		blocky bool
		want   time.Duration
	}{
		{blocky: true, want: -1},
		{blocky: false, want: 0},
	} {
		zctx := newContext(t, zsock.WithBlocky(tc.blocky))
		sck, err := zctx.NewSocket(zsock.Dealer, zsock.WithLogger(Devnull))
		require.NoError(t, err)

		v, err := sck.GetOption(zsock.OptionLinger)
		require.NoError(t, err)
		require.Equal(t, tc.want, v, "blocky=%v", tc.blocky)

		require.NoError(t, sck.SetOption(zsock.OptionLinger, 0))
		require.NoError(t, sck.Close())
	}
}
