// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command zsock sends and receives ZeroMQ messages from the command line.
//
//	zsock send --type push --connect tcp://127.0.0.1:5555 hello world
//	zsock recv --type pull --bind tcp://*:5555 --count 1 --timeout 5s
//	zsock version
//
// Flags may also be given as ZSOCK_* environment variables, for instance
// ZSOCK_TYPE=pull or ZSOCK_BIND=tcp://*:5555.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "zsock: %+v\n", err)
		os.Exit(1)
	}
}
