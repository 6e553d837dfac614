// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"log"
	"sort"
	"strings"
	"time"
)

// Option configures some aspect of a ZeroMQ socket.
// (e.g. SocketIdentity, Security, ...)
type Option func(s *Socket)

// WithID configures a ZeroMQ socket identity.
func WithID(id SocketIdentity) Option {
	return func(s *Socket) {
		s.id = id
	}
}

// WithSecurity configures a ZeroMQ socket to use the given security mechanism.
// If the security mechanims is nil, the NULL mechanism is used.
func WithSecurity(sec Security) Option {
	return func(s *Socket) {
		s.sec = sec
	}
}

// WithDialerRetry configures the time to wait before two failed attempts
// at dialing an endpoint.
func WithDialerRetry(retry time.Duration) Option {
	return func(s *Socket) {
		s.retry = retry
	}
}

// WithDialerTimeout sets the maximum amount of time a dial will wait
// for a connect to complete.
func WithDialerTimeout(timeout time.Duration) Option {
	return func(s *Socket) {
		s.dialer.Timeout = timeout
	}
}

// WithLogger sets a dedicated log.Logger for the socket.
func WithLogger(msg *log.Logger) Option {
	return func(s *Socket) {
		s.log = msg
	}
}

// WithDialerMaxRetries configures the maximum number of retries
// when dialing an endpoint (-1 means infinite retries).
// Connect fails on the first refused attempt by default.
func WithDialerMaxRetries(maxRetries int) Option {
	return func(s *Socket) {
		s.maxRetries = maxRetries
	}
}

// WithTimeout sets both the send and the receive timeout.
// A negative value waits forever.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Socket) {
		s.opts.sndtimeo = timeout
		s.opts.rcvtimeo = timeout
	}
}

const (
	OptionSubscribe       = "SUBSCRIBE"
	OptionUnsubscribe     = "UNSUBSCRIBE"
	OptionLinger          = "LINGER"
	OptionRcvTimeout      = "RCVTIMEO"
	OptionSndTimeout      = "SNDTIMEO"
	OptionSndHWM          = "SNDHWM"
	OptionRcvHWM          = "RCVHWM"
	OptionHWM             = "HWM"
	OptionRoutingID       = "ROUTING_ID"
	OptionIdentity        = "IDENTITY"
	OptionRouterMandatory = "ROUTER_MANDATORY"
	OptionAffinity        = "AFFINITY"
	OptionRate            = "RATE"
	OptionRecoveryIvl     = "RECOVERY_IVL"
	OptionSndBuf          = "SNDBUF"
	OptionRcvBuf          = "RCVBUF"
	OptionReconnectIvl    = "RECONNECT_IVL"
	OptionReconnectIvlMax = "RECONNECT_IVL_MAX"
	OptionBacklog         = "BACKLOG"
	OptionMaxMsgSize      = "MAXMSGSIZE"
	OptionType            = "TYPE"
	OptionRcvMore         = "RCVMORE"
	OptionEvents          = "EVENTS"
	OptionLastEndpoint    = "LAST_ENDPOINT"
)

const (
	defaultHWM          = 1000
	defaultBacklog      = 100
	defaultReconnectIvl = 100 * time.Millisecond
	defaultRate         = 100
	defaultRecoveryIvl  = 10000
)

// sockOptions holds the option values of a socket.
type sockOptions struct {
	linger          time.Duration // negative: until the context terminates
	rcvtimeo        time.Duration // negative: forever
	sndtimeo        time.Duration // negative: forever
	sndhwm          int           // 0: unbounded
	rcvhwm          int           // 0: unbounded
	routerMandatory bool
	affinity        uint64
	rate            int
	recoveryIvl     int
	sndbuf          int // 0: OS default
	rcvbuf          int // 0: OS default
	reconnectIvl    time.Duration
	reconnectIvlMax time.Duration
	backlog         int
	maxMsgSize      int64 // negative: unlimited
}

func defaultOptions() sockOptions {
	return sockOptions{
		linger:       -1,
		rcvtimeo:     -1,
		sndtimeo:     -1,
		sndhwm:       defaultHWM,
		rcvhwm:       defaultHWM,
		rate:         defaultRate,
		recoveryIvl:  defaultRecoveryIvl,
		reconnectIvl: defaultReconnectIvl,
		backlog:      defaultBacklog,
		maxMsgSize:   -1,
	}
}

// optKind is the Go type an option value is decoded into.
type optKind uint8

const (
	optDuration optKind = iota // time.Duration, or int milliseconds
	optInt                     // int
	optInt64                   // int64, or int
	optUint64                  // uint64
	optBool                    // bool
	optBytes                   // []byte, or string
)

// optionSpec is one row of the option table.
type optionSpec struct {
	kind      optKind
	legal     func(typ SocketType) bool
	readOnly  bool
	writeOnly bool
	preBind   bool // only before the first Bind or Connect
	valid     func(v interface{}) bool
	set       func(s *Socket, v interface{})
	get       func(s *Socket) interface{}
}

func anyType(SocketType) bool { return true }

func senders(typ SocketType) bool { return patterns[typ].send }

func receivers(typ SocketType) bool { return patterns[typ].recv }

func pubsubFamily(typ SocketType) bool { return patterns[typ].pubsub }

func routable(typ SocketType) bool { return patterns[typ].identity }

func only(types ...SocketType) func(SocketType) bool {
	return func(typ SocketType) bool {
		for _, t := range types {
			if t == typ {
				return true
			}
		}
		return false
	}
}

func nonNegative(v interface{}) bool {
	switch v := v.(type) {
	case int:
		return v >= 0
	case int64:
		return v >= 0
	case time.Duration:
		return v >= 0
	}
	return false
}

func positive(v interface{}) bool {
	n, ok := v.(int)
	return ok && n > 0
}

func atLeastMinusOne(v interface{}) bool {
	switch v := v.(type) {
	case int64:
		return v >= -1
	case time.Duration:
		// any negative duration means forever.
		return true
	}
	return false
}

func validRoutingID(v interface{}) bool {
	id, ok := v.([]byte)
	return ok && len(id) > 0 && len(id) <= 255 && id[0] != 0
}

// opt builds the get/set pair of a plain stored option.
func opt(kind optKind, legal func(SocketType) bool, field func(o *sockOptions) interface{}, store func(o *sockOptions, v interface{})) optionSpec {
	return optionSpec{
		kind:  kind,
		legal: legal,
		set: func(s *Socket, v interface{}) {
			s.mu.Lock()
			store(&s.opts, v)
			s.mu.Unlock()
		},
		get: func(s *Socket) interface{} {
			s.mu.RLock()
			defer s.mu.RUnlock()
			return field(&s.opts)
		},
	}
}

func with(spec optionSpec, fn func(*optionSpec)) optionSpec {
	fn(&spec)
	return spec
}

var optionTable = map[string]optionSpec{
	OptionSubscribe: {
		kind:      optBytes,
		legal:     only(Sub),
		writeOnly: true,
		set:       func(s *Socket, v interface{}) { s.subscribe(v.([]byte)) },
	},
	OptionUnsubscribe: {
		kind:      optBytes,
		legal:     only(Sub),
		writeOnly: true,
		set:       func(s *Socket, v interface{}) { s.unsubscribe(v.([]byte)) },
	},
	OptionLinger: with(opt(optDuration, anyType,
		func(o *sockOptions) interface{} { return o.linger },
		func(o *sockOptions, v interface{}) { o.linger = v.(time.Duration) },
	), func(spec *optionSpec) { spec.valid = atLeastMinusOne }),
	OptionRcvTimeout: with(opt(optDuration, receivers,
		func(o *sockOptions) interface{} { return o.rcvtimeo },
		func(o *sockOptions, v interface{}) { o.rcvtimeo = v.(time.Duration) },
	), func(spec *optionSpec) { spec.valid = atLeastMinusOne }),
	OptionSndTimeout: with(opt(optDuration, senders,
		func(o *sockOptions) interface{} { return o.sndtimeo },
		func(o *sockOptions, v interface{}) { o.sndtimeo = v.(time.Duration) },
	), func(spec *optionSpec) { spec.valid = atLeastMinusOne }),
	OptionSndHWM: {
		kind:  optInt,
		legal: senders,
		valid: nonNegative,
		set:   func(s *Socket, v interface{}) { s.setHWM(v.(int), -1) },
		get:   func(s *Socket) interface{} { return s.hwm(true) },
	},
	OptionRcvHWM: {
		kind:  optInt,
		legal: receivers,
		valid: nonNegative,
		set:   func(s *Socket, v interface{}) { s.setHWM(-1, v.(int)) },
		get:   func(s *Socket) interface{} { return s.hwm(false) },
	},
	OptionHWM: {
		kind:  optInt,
		legal: anyType,
		valid: nonNegative,
		set:   func(s *Socket, v interface{}) { s.setHWM(v.(int), v.(int)) },
		get: func(s *Socket) interface{} {
			if patterns[s.typ].send {
				return s.hwm(true)
			}
			return s.hwm(false)
		},
	},
	OptionRoutingID: {
		kind:    optBytes,
		legal:   routable,
		preBind: true,
		valid:   validRoutingID,
		set: func(s *Socket, v interface{}) {
			s.mu.Lock()
			s.id = SocketIdentity(v.([]byte))
			s.mu.Unlock()
		},
		get: func(s *Socket) interface{} {
			s.mu.RLock()
			defer s.mu.RUnlock()
			return append([]byte(nil), s.id...)
		},
	},
	OptionRouterMandatory: opt(optBool, only(Router),
		func(o *sockOptions) interface{} { return o.routerMandatory },
		func(o *sockOptions, v interface{}) { o.routerMandatory = v.(bool) },
	),
	OptionAffinity: opt(optUint64, anyType,
		func(o *sockOptions) interface{} { return o.affinity },
		func(o *sockOptions, v interface{}) { o.affinity = v.(uint64) },
	),
	OptionRate: with(opt(optInt, pubsubFamily,
		func(o *sockOptions) interface{} { return o.rate },
		func(o *sockOptions, v interface{}) { o.rate = v.(int) },
	), func(spec *optionSpec) { spec.valid = positive }),
	OptionRecoveryIvl: with(opt(optInt, pubsubFamily,
		func(o *sockOptions) interface{} { return o.recoveryIvl },
		func(o *sockOptions, v interface{}) { o.recoveryIvl = v.(int) },
	), func(spec *optionSpec) { spec.valid = nonNegative }),
	OptionSndBuf: with(opt(optInt, anyType,
		func(o *sockOptions) interface{} { return o.sndbuf },
		func(o *sockOptions, v interface{}) { o.sndbuf = v.(int) },
	), func(spec *optionSpec) { spec.valid = nonNegative }),
	OptionRcvBuf: with(opt(optInt, anyType,
		func(o *sockOptions) interface{} { return o.rcvbuf },
		func(o *sockOptions, v interface{}) { o.rcvbuf = v.(int) },
	), func(spec *optionSpec) { spec.valid = nonNegative }),
	OptionReconnectIvl: with(opt(optDuration, anyType,
		func(o *sockOptions) interface{} { return o.reconnectIvl },
		func(o *sockOptions, v interface{}) { o.reconnectIvl = v.(time.Duration) },
	), func(spec *optionSpec) { spec.valid = atLeastMinusOne }),
	OptionReconnectIvlMax: with(opt(optDuration, anyType,
		func(o *sockOptions) interface{} { return o.reconnectIvlMax },
		func(o *sockOptions, v interface{}) { o.reconnectIvlMax = v.(time.Duration) },
	), func(spec *optionSpec) { spec.valid = nonNegative }),
	OptionBacklog: with(opt(optInt, anyType,
		func(o *sockOptions) interface{} { return o.backlog },
		func(o *sockOptions, v interface{}) { o.backlog = v.(int) },
	), func(spec *optionSpec) { spec.valid = positive }),
	OptionMaxMsgSize: with(opt(optInt64, anyType,
		func(o *sockOptions) interface{} { return o.maxMsgSize },
		func(o *sockOptions, v interface{}) { o.maxMsgSize = v.(int64) },
	), func(spec *optionSpec) { spec.valid = atLeastMinusOne }),
	OptionType: {
		readOnly: true,
		legal:    anyType,
		get:      func(s *Socket) interface{} { return s.typ },
	},
	OptionRcvMore: {
		readOnly: true,
		legal:    anyType,
		get: func(s *Socket) interface{} {
			s.mu.RLock()
			defer s.mu.RUnlock()
			return len(s.rcur) > 0
		},
	},
	OptionEvents: {
		readOnly: true,
		legal:    anyType,
		get:      func(s *Socket) interface{} { return s.Events() },
	},
	OptionLastEndpoint: {
		readOnly: true,
		legal:    anyType,
		get: func(s *Socket) interface{} {
			s.mu.RLock()
			defer s.mu.RUnlock()
			return s.lastEP
		},
	},
}

func init() {
	optionTable[OptionIdentity] = optionTable[OptionRoutingID]
}

// Options returns the sorted names of the options a socket of type typ
// accepts in SetOption.
func Options(typ SocketType) []string {
	var o []string
	for name, spec := range optionTable {
		if spec.readOnly || !spec.legal(typ) {
			continue
		}
		o = append(o, name)
	}
	sort.Strings(o)
	return o
}

// decodeOption converts v to the canonical Go type of kind.
func decodeOption(kind optKind, v interface{}) (interface{}, bool) {
	switch kind {
	case optDuration:
		switch v := v.(type) {
		case time.Duration:
			return v, true
		case int:
			switch {
			case v == -1:
				return time.Duration(-1), true
			case v < -1:
				return nil, false
			}
			return time.Duration(v) * time.Millisecond, true
		}
	case optInt:
		if v, ok := v.(int); ok {
			return v, true
		}
	case optInt64:
		switch v := v.(type) {
		case int64:
			return v, true
		case int:
			return int64(v), true
		}
	case optUint64:
		if v, ok := v.(uint64); ok {
			return v, true
		}
	case optBool:
		if v, ok := v.(bool); ok {
			return v, true
		}
	case optBytes:
		switch v := v.(type) {
		case []byte:
			return append([]byte(nil), v...), true
		case string:
			return []byte(v), true
		}
	}
	return nil, false
}

func lookupOption(name string) (optionSpec, bool) {
	spec, ok := optionTable[strings.ToUpper(name)]
	return spec, ok
}

// SetOption is used to set an option for a socket.
//
// A closed socket fails first, whatever the option. Otherwise unknown
// names, values of the wrong type or range, options that do not apply to
// the socket type and options set in the wrong state fail with
// ErrInvalidOption and leave the socket unchanged.
func (s *Socket) SetOption(name string, value interface{}) error {
	defer s.guard.enter()()

	const op = "setsockopt"
	if err := s.usable(op); err != nil {
		return err
	}
	spec, ok := lookupOption(name)
	if !ok || spec.readOnly || !spec.legal(s.typ) {
		return newError(op, EINVAL, nil)
	}

	v, ok := decodeOption(spec.kind, value)
	if !ok {
		return newError(op, EINVAL, nil)
	}
	if spec.valid != nil && !spec.valid(v) {
		return newError(op, EINVAL, nil)
	}
	if spec.preBind {
		s.mu.RLock()
		n := len(s.eps)
		s.mu.RUnlock()
		if n > 0 {
			return newError(op, EINVAL, nil)
		}
	}

	spec.set(s, v)
	return nil
}

// GetOption is used to retrieve an option for a socket.
func (s *Socket) GetOption(name string) (interface{}, error) {
	const op = "getsockopt"
	if s.isClosed() {
		return nil, newError(op, ENOTSOCK, nil)
	}
	spec, ok := lookupOption(name)
	if !ok || spec.writeOnly || !spec.legal(s.typ) {
		return nil, newError(op, EINVAL, nil)
	}
	return spec.get(s), nil
}
