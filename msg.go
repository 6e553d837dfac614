// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"bytes"
	"fmt"
)

type MsgType byte

const (
	UsrMsg MsgType = 0
	CmdMsg MsgType = 1
)

// Msg is a ZMTP message, possibly composed of multiple frames.
type Msg struct {
	Frames [][]byte
	Type   MsgType
}

func NewMsg(frame []byte) Msg {
	return Msg{Frames: [][]byte{frame}}
}

func NewMsgFrom(frames ...[]byte) Msg {
	return Msg{Frames: frames}
}

func NewMsgString(frame string) Msg {
	return NewMsg([]byte(frame))
}

func NewMsgFromString(frames []string) Msg {
	msg := Msg{Frames: make([][]byte, len(frames))}
	for i, frame := range frames {
		msg.Frames[i] = []byte(frame)
	}
	return msg
}

func (msg Msg) isCmd() bool {
	return msg.Type == CmdMsg
}

// Bytes returns the concatenated content of all its frames.
func (msg Msg) Bytes() []byte {
	buf := make([]byte, 0, msg.size())
	for _, frame := range msg.Frames {
		buf = append(buf, frame...)
	}
	return buf
}

func (msg Msg) size() int {
	n := 0
	for _, frame := range msg.Frames {
		n += len(frame)
	}
	return n
}

func (msg Msg) String() string {
	buf := new(bytes.Buffer)
	buf.WriteString("Msg{Frames:{")
	for i, frame := range msg.Frames {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(buf, "%q", frame)
	}
	buf.WriteString("}}")
	return buf.String()
}

func (msg Msg) Clone() Msg {
	o := Msg{Frames: make([][]byte, len(msg.Frames)), Type: msg.Type}
	for i, frame := range msg.Frames {
		o.Frames[i] = make([]byte, len(frame))
		copy(o.Frames[i], frame)
	}
	return o
}

// SendMsg sends all frames of msg as one message.
// Only DontWait and SendCopy are meaningful in flags; the frames of msg
// are handed to the socket unless SendCopy is set.
func (s *Socket) SendMsg(msg Msg, flags Flag) error {
	if flags&SendMore != 0 {
		return newError("send", EINVAL, nil)
	}
	if len(msg.Frames) == 0 {
		return newError("send", EINVAL, nil)
	}
	n := len(msg.Frames)
	for i, frame := range msg.Frames {
		fl := flags
		if i < n-1 {
			fl |= SendMore
		}
		if i > 0 {
			// writability was settled by the first frame.
			fl &^= DontWait
		}
		if err := s.Send(NewFrame(frame), fl); err != nil {
			if i > 0 {
				s.abortSend()
			}
			return err
		}
	}
	return nil
}

// RecvMsg receives all remaining frames of the next message.
func (s *Socket) RecvMsg(flags Flag) (Msg, error) {
	var msg Msg
	for {
		f, err := s.Recv(flags)
		if err != nil {
			return msg, err
		}
		msg.Frames = append(msg.Frames, f.Bytes())
		if !f.More() {
			return msg, nil
		}
		// the rest of the message is already queued.
		flags = 0
	}
}
