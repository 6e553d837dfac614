// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/go-zeromq/zsock"
)

var (
	pubsubTopics = []string{"", "MSG", "msg"}
	pubsubMsgs   = [][]string{
		0: {"anything", "MSG 1", "msg 2"},
		1: {"MSG 1"},
		2: {"msg 2"},
	}
)

func TestPubSub(t *testing.T) {
	for _, transport := range []string{"tcp", "ipc", "inproc"} {
		t.Run(transport, func(t *testing.T) {
			ep := must(EndPoint(transport))
			cleanUp(ep)
			defer cleanUp(ep)

			zctx := newContext(t)
			pub := newSocket(t, zctx, zsock.Pub)
			testFanOut(t, zctx, pub, zsock.Sub, ep)
		})
	}
}

func TestXPubSub(t *testing.T) {
	for _, transport := range []string{"tcp", "inproc"} {
		t.Run(transport, func(t *testing.T) {
			ep := must(EndPoint(transport))

			zctx := newContext(t)
			xpub := newSocket(t, zctx, zsock.XPub)
			testFanOut(t, zctx, xpub, zsock.Sub, ep)

			// XPUB hands the subscriptions of its peers to the application.
			seen := make(map[string]bool)
			for range pubsubTopics {
				msg, err := xpub.RecvMsg(0)
				if err != nil {
					t.Fatalf("could not recv subscription: %+v", err)
				}
				if len(msg.Frames) != 1 || msg.Frames[0][0] != 1 {
					t.Fatalf("invalid subscription message: %v", msg)
				}
				seen[string(msg.Frames[0][1:])] = true
			}
			for _, topic := range pubsubTopics {
				if !seen[topic] {
					t.Errorf("missing subscription to %q", topic)
				}
			}
		})
	}
}

// testFanOut connects one subscriber per topic of pubsubTopics to pub
// and checks each one only gets the messages matching its topic.
func testFanOut(t *testing.T, zctx *zsock.Context, pub *zsock.Socket, typ zsock.SocketType, ep string) {
	t.Helper()

	if err := pub.Bind(ep); err != nil {
		t.Fatalf("could not bind: %+v", err)
	}
	if addr := pub.Addr(); addr == nil {
		t.Fatalf("listener with nil Addr")
	}

	subs := make([]*zsock.Socket, len(pubsubTopics))
	for i, topic := range pubsubTopics {
		subs[i] = newSocket(t, zctx, typ)
		if err := subs[i].Connect(ep); err != nil {
			t.Fatalf("could not connect: %+v", err)
		}
		if addr := subs[i].Addr(); addr != nil {
			t.Fatalf("connected socket with non-nil Addr")
		}
		if err := subs[i].SetOption(zsock.OptionSubscribe, topic); err != nil {
			t.Fatalf("could not subscribe to topic %q: %+v", topic, err)
		}
	}
	waitFor(t, "subscriptions", func() bool {
		return reflect.DeepEqual(pub.Topics(), pubsubTopics)
	})

	for _, msg := range pubsubMsgs[0] {
		if err := pub.SendMsg(zsock.NewMsgString(msg), 0); err != nil {
			t.Fatalf("could not send message %q: %+v", msg, err)
		}
	}

	for i, sub := range subs {
		for imsg, want := range pubsubMsgs[i] {
			got := recvString(t, sub)
			if !reflect.DeepEqual(got, []string{want}) {
				t.Fatalf("sub[%d][msg=%d]: got = %q, want= %q", i, imsg, got, want)
			}
		}
		if _, err := sub.RecvMsg(zsock.DontWait); !errors.Is(err, zsock.ErrWouldBlock) {
			t.Fatalf("sub[%d]: unexpected extra message (err=%v)", i, err)
		}
	}
}

func TestPubNoPeer(t *testing.T) {
	zctx := newContext(t)
	pub := newSocket(t, zctx, zsock.Pub)

	// a PUB socket never blocks: messages without subscribers are dropped.
	for i := 0; i < 10; i++ {
		if err := pub.SendMsg(zsock.NewMsgString("lost"), zsock.DontWait); err != nil {
			t.Fatalf("could not send: %+v", err)
		}
	}
	if _, err := pub.Recv(0); zsock.ErrnoOf(err) != zsock.ENOTSUP {
		t.Fatalf("PUB recv: got=%v, want ENOTSUP", err)
	}
}

func TestSubUnsubscribe(t *testing.T) {
	zctx := newContext(t)
	pub := newSocket(t, zctx, zsock.Pub)
	sub := newSocket(t, zctx, zsock.Sub)

	ep := must(EndPoint("inproc"))
	if err := pub.Bind(ep); err != nil {
		t.Fatalf("could not bind: %+v", err)
	}
	if err := sub.Connect(ep); err != nil {
		t.Fatalf("could not connect: %+v", err)
	}

	if err := sub.Send(zsock.NewFrameString("x"), 0); zsock.ErrnoOf(err) != zsock.ENOTSUP {
		t.Fatalf("SUB send: got=%v, want ENOTSUP", err)
	}

	// subscriptions are counted: the topic stays until the last one goes.
	for i := 0; i < 2; i++ {
		if err := sub.SetOption(zsock.OptionSubscribe, "a"); err != nil {
			t.Fatalf("could not subscribe: %+v", err)
		}
	}
	if got := sub.Topics(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("invalid topics: %q", got)
	}
	waitFor(t, "subscription", func() bool { return len(pub.Topics()) == 1 })

	if err := sub.SetOption(zsock.OptionUnsubscribe, "a"); err != nil {
		t.Fatalf("could not unsubscribe: %+v", err)
	}
	if got := sub.Topics(); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("invalid topics after first unsubscribe: %q", got)
	}

	if err := sub.SetOption(zsock.OptionUnsubscribe, "a"); err != nil {
		t.Fatalf("could not unsubscribe: %+v", err)
	}
	if got := sub.Topics(); len(got) != 0 {
		t.Fatalf("invalid topics after last unsubscribe: %q", got)
	}
	waitFor(t, "cancel", func() bool { return len(pub.Topics()) == 0 })

	if err := pub.SendMsg(zsock.NewMsgString("a-1"), 0); err != nil {
		t.Fatalf("could not send: %+v", err)
	}
	if err := sub.SetOption(zsock.OptionRcvTimeout, 50*time.Millisecond); err != nil {
		t.Fatalf("could not set RCVTIMEO: %+v", err)
	}
	if _, err := sub.RecvMsg(0); !errors.Is(err, zsock.ErrWouldBlock) {
		t.Fatalf("recv after unsubscribe: got=%v, want ErrWouldBlock", err)
	}
}

func TestXSubForwardsSubscriptions(t *testing.T) {
	zctx := newContext(t)
	pub := newSocket(t, zctx, zsock.Pub)
	xsub := newSocket(t, zctx, zsock.XSub)

	ep := must(EndPoint("tcp"))
	if err := pub.Bind(ep); err != nil {
		t.Fatalf("could not bind: %+v", err)
	}
	if err := xsub.Connect(ep); err != nil {
		t.Fatalf("could not connect: %+v", err)
	}

	// XSUB subscribes by sending subscription messages.
	if err := xsub.SendMsg(zsock.NewMsgFrom([]byte("\x01news")), 0); err != nil {
		t.Fatalf("could not send subscription: %+v", err)
	}
	waitFor(t, "subscription", func() bool {
		return reflect.DeepEqual(pub.Topics(), []string{"news"})
	})
	if got := xsub.Topics(); !reflect.DeepEqual(got, []string{"news"}) {
		t.Fatalf("invalid XSUB topics: %q", got)
	}

	for _, msg := range []string{"sports", "news 1"} {
		if err := pub.SendMsg(zsock.NewMsgString(msg), 0); err != nil {
			t.Fatalf("could not publish %q: %+v", msg, err)
		}
	}
	if got := recvString(t, xsub); !reflect.DeepEqual(got, []string{"news 1"}) {
		t.Fatalf("invalid message: %q", got)
	}

	if err := xsub.SendMsg(zsock.NewMsgFrom([]byte("\x00news")), 0); err != nil {
		t.Fatalf("could not send cancel: %+v", err)
	}
	waitFor(t, "cancel", func() bool { return len(pub.Topics()) == 0 })
}
