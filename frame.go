// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import "fmt"

// Flag modifies the behaviour of Send and Recv.
type Flag int

const (
	// DontWait makes the operation fail with ErrWouldBlock instead of
	// waiting for the socket to become ready.
	DontWait Flag = 1 << iota

	// SendMore announces that more frames of the same message follow.
	SendMore

	// SendCopy leaves the sent Frame usable by the caller.
	// By default Send takes ownership of the Frame buffer.
	SendCopy
)

// Frame is one part of a message.
//
// A Frame handed to Send is consumed unless SendCopy is set: its buffer
// belongs to the socket afterwards and the Frame reads as empty.
// Frames returned by Recv may be read freely until Release is called.
type Frame struct {
	data     []byte
	more     bool
	consumed bool
}

// NewFrame creates a frame owning data.
func NewFrame(data []byte) *Frame {
	return &Frame{data: data}
}

// NewFrameString creates a frame holding a copy of s.
func NewFrameString(s string) *Frame {
	return &Frame{data: []byte(s)}
}

// NewFrameSize creates a zero-filled frame of n bytes.
func NewFrameSize(n int) *Frame {
	return &Frame{data: make([]byte, n)}
}

// Bytes returns the frame content.
// It returns nil once the frame was sent or released.
func (f *Frame) Bytes() []byte {
	if f == nil || f.consumed {
		return nil
	}
	return f.data
}

// Len returns the size of the frame content.
func (f *Frame) Len() int {
	return len(f.Bytes())
}

// More reports whether more frames of the same message follow
// this received frame.
func (f *Frame) More() bool {
	return f != nil && f.more
}

// Release gives up the frame buffer.
func (f *Frame) Release() {
	if f == nil {
		return
	}
	f.data = nil
	f.more = false
	f.consumed = true
}

// Valid reports whether the frame can still be sent.
func (f *Frame) Valid() bool {
	return f != nil && !f.consumed
}

func (f *Frame) String() string {
	if !f.Valid() {
		return "Frame{<released>}"
	}
	return fmt.Sprintf("Frame{%q, more=%v}", f.data, f.more)
}
