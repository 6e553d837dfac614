// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// codec turns command line arguments into frames and frames into
// printable text.
type codec interface {
	encode(arg string) ([]byte, error)
	decode(frame []byte) (string, error)
}

func newCodec(name string) (codec, error) {
	switch name {
	case "", "raw":
		return rawCodec{}, nil
	case "msgpack":
		return msgpackCodec{}, nil
	case "cbor":
		return cborCodec{}, nil
	}
	return nil, fmt.Errorf("unknown codec %q (want raw, msgpack or cbor)", name)
}

type rawCodec struct{}

func (rawCodec) encode(arg string) ([]byte, error) { return []byte(arg), nil }

func (rawCodec) decode(frame []byte) (string, error) {
	if utf8.Valid(frame) {
		return string(frame), nil
	}
	return strconv.Quote(string(frame)), nil
}

// msgpackCodec sends arguments as msgpack strings and prints any
// msgpack value it receives.
type msgpackCodec struct{}

func (msgpackCodec) encode(arg string) ([]byte, error) { return msgpack.Marshal(arg) }

func (msgpackCodec) decode(frame []byte) (string, error) {
	var v any
	if err := msgpack.Unmarshal(frame, &v); err != nil {
		return "", fmt.Errorf("invalid msgpack frame: %w", err)
	}
	return fmt.Sprintf("%v", v), nil
}

// cborCodec prints received frames in diagnostic notation.
type cborCodec struct{}

func (cborCodec) encode(arg string) ([]byte, error) { return cbor.Marshal(arg) }

func (cborCodec) decode(frame []byte) (string, error) {
	s, err := cbor.Diagnose(frame)
	if err != nil {
		return "", fmt.Errorf("invalid cbor frame: %w", err)
	}
	return s, nil
}
