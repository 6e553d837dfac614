// Copyright 2023 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-zeromq/zsock"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	for _, tc := range []struct {
		name string
		set  map[string]any
		err  string
	}{
		{
			name: "no-type",
			set:  map[string]any{"bind": []string{"inproc://x"}},
			err:  "missing socket type",
		},
		{
			name: "no-endpoint",
			set:  map[string]any{"type": "pull"},
			err:  "missing endpoint",
		},
		{
			name: "ok",
			set: map[string]any{
				"type":    "pull",
				"bind":    []string{"inproc://x"},
				"timeout": "2s",
				"count":   3,
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			v := viper.New()
			for k, val := range tc.set {
				v.Set(k, val)
			}
			cfg, err := loadConfig(v)
			if tc.err != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "pull", cfg.Type)
			assert.Equal(t, []string{"inproc://x"}, cfg.Bind)
			assert.Equal(t, 2*time.Second, cfg.Timeout)
			assert.Equal(t, 3, cfg.Count)
		})
	}
}

func TestEnvConfig(t *testing.T) {
	t.Setenv("ZSOCK_TYPE", "push")
	t.Setenv("ZSOCK_IO_THREADS", "2")

	cmd := newRootCmd()
	v := viper.New()
	require.NoError(t, v.BindPFlags(cmd.PersistentFlags()))
	v.SetEnvPrefix("zsock")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.Set("connect", []string{"inproc://y"})

	cfg, err := loadConfig(v)
	require.NoError(t, err)
	assert.Equal(t, "push", cfg.Type)
	assert.Equal(t, 2, cfg.IOThreads)
	assert.Equal(t, time.Second, cfg.Linger)
}

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())

	major, minor, patch := zsock.Version()
	assert.True(t, strings.HasPrefix(out.String(), "zsock "), "output: %q", out.String())
	assert.Contains(t, out.String(), fmt.Sprintf("%d.%d.%d", major, minor, patch))
	assert.Contains(t, out.String(), "tcp")
}

func TestPrintMsg(t *testing.T) {
	out := new(bytes.Buffer)
	printMsg(out, rawCodec{}, zsock.NewMsgFrom([]byte("hello"), []byte{0xff, 0x00}))
	assert.Equal(t, "[0] hello\n[1] \"\\xff\\x00\"\n", out.String())
}

func TestSendRecv(t *testing.T) {
	ep := "inproc://cmd-send-recv"

	ctx, pull, err := open(config{Type: "pull", Bind: []string{ep}, IOThreads: 1})
	require.NoError(t, err)
	defer shutdown(ctx, pull, 0)

	root := newRootCmd()
	root.SetArgs([]string{"send", "--type", "push", "--connect", ep, "hello", "world"})

	done := make(chan error, 1)
	go func() { done <- root.Execute() }()

	out := new(bytes.Buffer)
	require.NoError(t, recvLoop(out, pull, rawCodec{}, 1, 5*time.Second))
	require.NoError(t, <-done)
	assert.Equal(t, "[0] hello\n[1] world\n", out.String())

	err = recvLoop(out, pull, rawCodec{}, 1, 10*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no message received")
}

func TestOpenInvalid(t *testing.T) {
	_, _, err := open(config{Type: "bogus", Bind: []string{"inproc://z"}, IOThreads: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, zsock.ErrInvalidOption)

	_, _, err = open(config{Type: "pull", Bind: []string{"udp://z"}, IOThreads: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, zsock.ErrInvalidEndpoint)
}

func TestCodecs(t *testing.T) {
	_, err := newCodec("xml")
	require.Error(t, err)

	for _, tc := range []struct {
		name string
		want string
	}{
		{"raw", "hello"},
		{"msgpack", "hello"},
		{"cbor", `"hello"`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, err := newCodec(tc.name)
			require.NoError(t, err)

			frame, err := c.encode("hello")
			require.NoError(t, err)
			got, err := c.decode(frame)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	// undecodable frames fall back to the raw form.
	out := new(bytes.Buffer)
	printMsg(out, cborCodec{}, zsock.NewMsgFrom([]byte{0xff}))
	assert.Equal(t, "[0] \"\\xff\"\n", out.String())
}

func TestSendRecvMsgpack(t *testing.T) {
	ep := "inproc://cmd-send-recv-msgpack"

	ctx, pull, err := open(config{Type: "pull", Bind: []string{ep}, IOThreads: 1})
	require.NoError(t, err)
	defer shutdown(ctx, pull, 0)

	root := newRootCmd()
	root.SetArgs([]string{"send", "--type", "push", "--connect", ep, "--codec", "msgpack", "hi"})
	done := make(chan error, 1)
	go func() { done <- root.Execute() }()

	out := new(bytes.Buffer)
	require.NoError(t, recvLoop(out, pull, msgpackCodec{}, 1, 5*time.Second))
	require.NoError(t, <-done)
	assert.Equal(t, "[0] hi\n", out.String())
}

func TestConfigFile(t *testing.T) {
	ep := "inproc://cmd-config-file"
	file := filepath.Join(t.TempDir(), "zsock.yaml")
	err := os.WriteFile(file, []byte("type: push\nconnect:\n  - "+ep+"\n"), 0o644)
	require.NoError(t, err)

	ctx, pull, err := open(config{Type: "pull", Bind: []string{ep}, IOThreads: 1})
	require.NoError(t, err)
	defer shutdown(ctx, pull, 0)

	root := newRootCmd()
	root.SetArgs([]string{"send", "--config", file, "from-config"})
	done := make(chan error, 1)
	go func() { done <- root.Execute() }()

	out := new(bytes.Buffer)
	require.NoError(t, recvLoop(out, pull, rawCodec{}, 1, 5*time.Second))
	require.NoError(t, <-done)
	assert.Equal(t, "[0] from-config\n", out.String())

	root = newRootCmd()
	root.SetArgs([]string{"send", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "x"})
	require.Error(t, root.Execute())
}
