// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-zeromq/zsock/internal/inproc"
	"github.com/go-zeromq/zsock/transport"
)

// Transports returns the sorted list of currently registered transports.
func Transports() []string {
	return drivers.names()
}

// RegisterTransport makes endpoints of the form name://addr served by trans.
// The name must be a lower-case URI scheme that is not yet registered.
func RegisterTransport(name string, trans transport.Transport) error {
	return drivers.register(name, trans)
}

// registry maps endpoint schemes to transports.
type registry struct {
	mu     sync.RWMutex
	byName map[string]transport.Transport
}

func (r *registry) lookup(scheme string) (transport.Transport, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trans, ok := r.byName[scheme]
	if !ok {
		return nil, fmt.Errorf("%w %q", errUnknownTransport, scheme)
	}
	return trans, nil
}

func (r *registry) has(scheme string) bool {
	_, err := r.lookup(scheme)
	return err == nil
}

func (r *registry) register(name string, trans transport.Transport) error {
	if !validScheme(name) {
		return fmt.Errorf("zsock: invalid transport name %q", name)
	}
	if trans == nil {
		return fmt.Errorf("zsock: nil transport %q", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, dup := r.byName[name]; dup {
		return fmt.Errorf("zsock: duplicate transport %q (%T)", name, old)
	}
	r.byName[name] = trans
	return nil
}

func (r *registry) names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o := make([]string, 0, len(r.byName))
	for k := range r.byName {
		o = append(o, k)
	}
	sort.Strings(o)
	return o
}

// validScheme reports whether name is a lower-case URI scheme.
func validScheme(name string) bool {
	if name == "" || name[0] < 'a' || name[0] > 'z' {
		return false
	}
	for _, c := range name {
		switch {
		case 'a' <= c && c <= 'z', '0' <= c && c <= '9', c == '+', c == '-', c == '.':
		default:
			return false
		}
	}
	return true
}

var drivers = registry{
	byName: map[string]transport.Transport{
		"ipc":    transport.New("unix"),
		"tcp":    transport.New("tcp"),
		"inproc": inproc.Transport{},
	},
}
