// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/go-zeromq/zsock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newRecvCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "receive and print messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			dec, err := newCodec(cfg.Codec)
			if err != nil {
				return err
			}
			ctx, sck, err := open(cfg)
			if err != nil {
				return err
			}
			defer shutdown(ctx, sck, 0)

			return recvLoop(cmd.OutOrStdout(), sck, dec, cfg.Count, cfg.Timeout)
		},
	}
	cmd.Flags().Int("count", 0, "stop after this many messages (0 for no limit)")
	cmd.Flags().StringSlice("subscribe", nil, "topics of a SUB socket (default all)")
	return cmd
}

// recvLoop prints the messages received on sck until count messages were
// received or no message arrived within timeout.
func recvLoop(w io.Writer, sck *zsock.Socket, dec codec, count int, timeout time.Duration) error {
	poller := zsock.NewPoller()
	defer poller.Close()
	poller.Register(sck, zsock.PollIn)

	for n := 0; count <= 0 || n < count; n++ {
		ready, err := poller.Poll(timeout)
		if err != nil {
			return fmt.Errorf("could not poll: %w", err)
		}
		if len(ready) == 0 {
			return fmt.Errorf("no message received within %v", timeout)
		}

		msg, err := sck.RecvMsg(zsock.DontWait)
		if err != nil {
			return fmt.Errorf("could not receive message: %w", err)
		}
		printMsg(w, dec, msg)

		if sck.Type() == zsock.Rep {
			if err := sck.SendMsg(msg, 0); err != nil {
				return fmt.Errorf("could not echo reply: %w", err)
			}
		}
	}
	return nil
}

// printMsg writes one line per frame. Frames the codec cannot decode
// are printed raw.
func printMsg(w io.Writer, dec codec, msg zsock.Msg) {
	for i, frame := range msg.Frames {
		txt, err := dec.decode(frame)
		if err != nil {
			txt, _ = rawCodec{}.decode(frame)
		}
		fmt.Fprintf(w, "[%d] %s\n", i, txt)
	}
}
