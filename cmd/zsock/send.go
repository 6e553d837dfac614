// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/go-zeromq/zsock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSendCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [frame...]",
		Short: "send one message, each argument being a frame",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			enc, err := newCodec(cfg.Codec)
			if err != nil {
				return err
			}
			frames := make([][]byte, len(args))
			for i, arg := range args {
				frames[i], err = enc.encode(arg)
				if err != nil {
					return fmt.Errorf("could not encode frame %d: %w", i, err)
				}
			}

			ctx, sck, err := open(cfg)
			if err != nil {
				return err
			}

			if err := sck.SetOption(zsock.OptionSndTimeout, cfg.Timeout); err != nil {
				return err
			}
			if err := sck.SendMsg(zsock.NewMsgFrom(frames...), 0); err != nil {
				shutdown(ctx, sck, 0)
				return fmt.Errorf("could not send message: %w", err)
			}

			if sck.Type() == zsock.Req {
				msg, err := sck.RecvMsg(0)
				if err != nil {
					shutdown(ctx, sck, 0)
					return fmt.Errorf("could not receive reply: %w", err)
				}
				printMsg(cmd.OutOrStdout(), enc, msg)
			}
			return shutdown(ctx, sck, cfg.Linger)
		},
	}
	return cmd
}
