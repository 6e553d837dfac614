// Copyright 2019 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func makeMsg(i int) qmsg {
	return qmsg{frames: [][]byte{{byte(i)}}}
}

func TestQueue(t *testing.T) {
	var notified int
	q := newMsgQueue(2, func() { notified++ })
	if q.Len() != 0 {
		t.Fatal("queue should be empty")
	}
	if _, ok := q.tryPop(); ok {
		t.Fatal("queue should be empty")
	}

	q.push(makeMsg(1))
	q.push(makeMsg(2))
	if q.Len() != 2 {
		t.Fatal("queue should contain 2 elements")
	}
	if q.hasRoom() {
		t.Fatal("queue should be at its high-water mark")
	}

	// push ignores the high-water mark.
	q.push(makeMsg(3))
	if q.Len() != 3 {
		t.Fatal("queue should contain 3 elements")
	}

	for i := 1; i <= 3; i++ {
		m, ok := q.tryPop()
		if !ok || !reflect.DeepEqual(m, makeMsg(i)) {
			t.Fatalf("unexpected value in queue: %v", m)
		}
	}
	if !q.drained() {
		t.Fatal("queue should be drained")
	}
	if notified == 0 {
		t.Fatal("queue changes must be notified")
	}

	q.push(makeMsg(1))
	q.reset()
	if q.Len() != 0 {
		t.Fatal("queue should be empty")
	}

	q.close()
	if q.push(makeMsg(1)) {
		t.Fatal("closed queue accepted a message")
	}
	if err := q.pushWait(context.Background(), makeMsg(1)); !errors.Is(err, errQueueClosed) {
		t.Fatalf("closed queue: got=%v", err)
	}
}

func TestQueueInflight(t *testing.T) {
	q := newMsgQueue(0, nil)
	q.push(makeMsg(1))

	m, err := q.take(context.Background())
	if err != nil {
		t.Fatalf("could not take: %+v", err)
	}
	if !reflect.DeepEqual(m, makeMsg(1)) {
		t.Fatalf("unexpected value: %v", m)
	}
	if q.drained() {
		t.Fatal("queue with a message in flight is not drained")
	}
	q.done()
	if !q.drained() {
		t.Fatal("queue should be drained")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := q.take(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("take on empty queue: got=%v", err)
	}
}

func TestQueuePushWait(t *testing.T) {
	q := newMsgQueue(1, nil)
	q.push(makeMsg(1))

	done := make(chan error, 1)
	go func() {
		done <- q.pushWait(context.Background(), makeMsg(2))
	}()

	select {
	case err := <-done:
		t.Fatalf("pushWait did not wait for room: %v", err)
	case <-time.After(10 * time.Millisecond):
	}

	if _, ok := q.tryPop(); !ok {
		t.Fatal("queue should not be empty")
	}
	if err := <-done; err != nil {
		t.Fatalf("could not push: %+v", err)
	}
	if m, ok := q.tryPop(); !ok || !reflect.DeepEqual(m, makeMsg(2)) {
		t.Fatalf("unexpected value in queue: %v", m)
	}

	// raising the high-water mark wakes blocked pushers.
	q.push(makeMsg(3))
	go func() {
		done <- q.pushWait(context.Background(), makeMsg(4))
	}()
	time.Sleep(5 * time.Millisecond)
	q.setHWM(2)
	if err := <-done; err != nil {
		t.Fatalf("could not push: %+v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("queue should contain 2 elements, got %d", q.Len())
	}
}
