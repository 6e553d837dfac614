// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/go-zeromq/zsock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// config holds the settings shared by the send and recv commands.
type config struct {
	Type      string
	Bind      []string
	Connect   []string
	IOThreads int
	Linger    time.Duration
	Timeout   time.Duration
	Count     int
	Subscribe []string
	Codec     string
	Verbose   bool
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:           "zsock",
		Short:         "send and receive ZeroMQ messages",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("type", "", "socket type (push, pull, pub, sub, req, rep, dealer, router, pair, xpub, xsub)")
	cmd.PersistentFlags().StringSlice("bind", nil, "endpoints to bind")
	cmd.PersistentFlags().StringSlice("connect", nil, "endpoints to connect to")
	cmd.PersistentFlags().Int("io-threads", 1, "number of I/O threads")
	cmd.PersistentFlags().Duration("linger", time.Second, "time to deliver pending messages on exit")
	cmd.PersistentFlags().Duration("timeout", -1, "give up after this long (negative waits forever)")
	cmd.PersistentFlags().String("codec", "raw", "frame encoding (raw, msgpack, cbor)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "log connection events")
	cmd.PersistentFlags().String("config", "", "read defaults from this file (yaml, toml or json)")

	cmd.AddCommand(newSendCmd(v))
	cmd.AddCommand(newRecvCmd(v))
	cmd.AddCommand(newVersionCmd())

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return fmt.Errorf("could not bind flags: %w", err)
		}
		v.SetEnvPrefix("zsock")
		v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		v.AutomaticEnv()

		if file := v.GetString("config"); file != "" {
			v.SetConfigFile(file)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("could not read config file %q: %w", file, err)
			}
		}
		return nil
	}
	return cmd
}

func loadConfig(v *viper.Viper) (config, error) {
	cfg := config{
		Type:      v.GetString("type"),
		Bind:      v.GetStringSlice("bind"),
		Connect:   v.GetStringSlice("connect"),
		IOThreads: v.GetInt("io-threads"),
		Linger:    v.GetDuration("linger"),
		Timeout:   v.GetDuration("timeout"),
		Count:     v.GetInt("count"),
		Subscribe: v.GetStringSlice("subscribe"),
		Codec:     v.GetString("codec"),
		Verbose:   v.GetBool("verbose"),
	}
	if cfg.Type == "" {
		return cfg, fmt.Errorf("missing socket type")
	}
	if len(cfg.Bind) == 0 && len(cfg.Connect) == 0 {
		return cfg, fmt.Errorf("missing endpoint: use --bind or --connect")
	}
	return cfg, nil
}

// open creates the context and the socket described by cfg.
func open(cfg config) (*zsock.Context, *zsock.Socket, error) {
	msg := log.New(io.Discard, "zsock: ", 0)
	if cfg.Verbose {
		msg = log.New(os.Stderr, "zsock: ", log.LstdFlags)
	}

	ctx, err := zsock.NewContext(cfg.IOThreads, zsock.WithContextLogger(msg))
	if err != nil {
		return nil, nil, fmt.Errorf("could not create context: %w", err)
	}

	typ := zsock.SocketType(strings.ToUpper(cfg.Type))
	sck, err := ctx.NewSocket(typ)
	if err != nil {
		ctx.Term(0)
		return nil, nil, fmt.Errorf("could not create %s socket: %w", typ, err)
	}

	setup := func() error {
		if err := sck.SetOption(zsock.OptionLinger, cfg.Linger); err != nil {
			return err
		}
		if typ == zsock.Sub {
			topics := cfg.Subscribe
			if len(topics) == 0 {
				topics = []string{""}
			}
			for _, topic := range topics {
				if err := sck.SetOption(zsock.OptionSubscribe, topic); err != nil {
					return err
				}
			}
		}
		for _, ep := range cfg.Bind {
			if err := sck.Bind(ep); err != nil {
				return err
			}
		}
		for _, ep := range cfg.Connect {
			if err := sck.Connect(ep); err != nil {
				return err
			}
		}
		return nil
	}

	if err := setup(); err != nil {
		sck.Close()
		ctx.Term(0)
		return nil, nil, err
	}
	return ctx, sck, nil
}

// shutdown closes sck and terminates ctx, waiting for the linger period.
func shutdown(ctx *zsock.Context, sck *zsock.Socket, linger time.Duration) error {
	sck.Close()
	if linger < 0 {
		linger = -1
	}
	return ctx.Term(linger)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the ZeroMQ API version",
		RunE: func(cmd *cobra.Command, args []string) error {
			major, minor, patch := zsock.Version()
			fmt.Fprintf(cmd.OutOrStdout(), "zsock %d.%d.%d (transports: %s)\n",
				major, minor, patch, strings.Join(zsock.Transports(), ", "),
			)
			return nil
		},
	}
}
