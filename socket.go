// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"context"
	"errors"
	"log"
	"net"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-zeromq/zsock/internal/inproc"
	"github.com/go-zeromq/zsock/transport"
)

const (
	defaultRetry   = 250 * time.Millisecond
	defaultTimeout = 5 * time.Minute
)

// Socket is one endpoint of a ZeroMQ messaging pattern.
//
// A Socket must be used by one goroutine at a time: concurrent calls to
// Send, Recv, Bind, Connect, Unbind, Disconnect or SetOption panic.
// Events, GetOption and Close may be called from any goroutine.
type Socket struct {
	typ SocketType
	pat pattern
	ctx *Context
	log *log.Logger

	id         SocketIdentity
	sec        Security
	retry      time.Duration
	maxRetries int
	dialer     net.Dialer

	guard guard

	life   context.Context // done once closed or interrupted
	stop   context.CancelFunc
	io     context.Context // done once the connections are torn down
	ioStop context.CancelFunc

	sig signal
	in  *msgQueue
	out *msgQueue

	mu      sync.RWMutex
	opts    sockOptions
	closed  bool
	termed  bool
	eps     []*endpoint
	lastEP  string
	conns   []*Conn
	next    int
	ids     map[string]*Conn // ROUTER peers by routing id
	fan     map[*Conn]chan Msg
	subs    topics
	rcur    [][]byte // frames of the message being received
	spart   [][]byte // frames of the message being sent
	req     reqState
	rep     repState
	pending atomic.Int64 // messages accepted by subscriber queues, not yet written

	wg sync.WaitGroup
}

// endpoint is a bound or connected address of a socket.
type endpoint struct {
	addr     string // as given by the user
	resolved string // with wildcards resolved
	network  string
	host     string
	bound    bool
	l        net.Listener
	removed  bool // guarded by the socket mutex
}

func newSocket(ctx *Context, typ SocketType, opts ...Option) *Socket {
	life, stop := context.WithCancel(ctx.life)
	io, ioStop := context.WithCancel(ctx.life)

	s := &Socket{
		typ:    typ,
		pat:    patterns[typ],
		ctx:    ctx,
		log:    ctx.log,
		sec:    nullSecurity{},
		retry:  defaultRetry,
		dialer: net.Dialer{Timeout: defaultTimeout},
		life:   life,
		stop:   stop,
		io:     io,
		ioStop: ioStop,
		opts:   defaultOptions(),
		ids:    make(map[string]*Conn),
		fan:    make(map[*Conn]chan Msg),
		subs:   make(topics),
	}
	s.opts.maxMsgSize = ctx.maxMsgSize
	if !ctx.blocky {
		s.opts.linger = 0
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sec == nil {
		s.sec = nullSecurity{}
	}
	if s.log == nil {
		s.log = log.New(os.Stderr, "zsock: ", 0)
	}

	s.in = newMsgQueue(s.opts.rcvhwm, s.sig.broadcast)
	s.out = newMsgQueue(s.opts.sndhwm, s.sig.broadcast)

	if s.pat.send {
		s.wg.Add(1)
		go s.dispatch()
	}
	return s
}

// Type returns the type of this Socket (PUB, SUB, ...)
func (s *Socket) Type() SocketType {
	return s.typ
}

// Context returns the context the socket was created from.
func (s *Socket) Context() *Context {
	return s.ctx
}

// Addr returns the address of the first bound endpoint.
// Addr returns nil if the socket isn't bound.
func (s *Socket) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.eps {
		if e.bound {
			return e.l.Addr()
		}
	}
	return nil
}

// Endpoints returns the bound and connected endpoints, in the order they
// were added. Bound endpoints are reported with wildcards resolved.
func (s *Socket) Endpoints() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o := make([]string, len(s.eps))
	for i, e := range s.eps {
		o[i] = e.resolved
	}
	return o
}

// Topics returns the sorted list of subscriptions.
// For PUB and XPUB sockets these are the subscriptions of connected peers,
// for SUB and XSUB sockets the local ones.
func (s *Socket) Topics() []string {
	switch s.typ {
	case Pub, XPub:
		keys := make(map[string]struct{})
		s.mu.RLock()
		for _, c := range s.conns {
			for _, topic := range c.subscriptions() {
				keys[topic] = struct{}{}
			}
		}
		s.mu.RUnlock()
		o := make([]string, 0, len(keys))
		for k := range keys {
			o = append(o, k)
		}
		sort.Strings(o)
		return o
	default:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.subs.list()
	}
}

func (s *Socket) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// usable checks that op may proceed in the current socket state.
func (s *Socket) usable(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.closed:
		return newError(op, ENOTSOCK, nil)
	case s.termed:
		return newError(op, ETERM, nil)
	case len(s.spart) > 0 && op != "send":
		return newError(op, EFSM, nil)
	}
	return nil
}

// lifeErr reports why a blocked op was interrupted.
func (s *Socket) lifeErr(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return newError(op, ENOTSOCK, nil)
	}
	return newError(op, ETERM, nil)
}

func (s *Socket) dialCtx() context.Context {
	return transport.WithIPv6(s.life, s.ctx.ipv6)
}

// Bind binds the socket to a local endpoint and accepts incoming
// connections on it.
func (s *Socket) Bind(ep string) error {
	defer s.guard.enter()()

	const op = "bind"
	if err := s.usable(op); err != nil {
		return err
	}

	network, addr, err := splitAddr(ep)
	if err != nil {
		return wrapError(op, err)
	}
	trans, err := drivers.lookup(network)
	if err != nil {
		return wrapError(op, err)
	}

	l, err := trans.Listen(s.dialCtx(), addr)
	if err != nil {
		return wrapError(op, err)
	}

	e := &endpoint{
		addr:     ep,
		resolved: network + "://" + l.Addr().String(),
		network:  network,
		host:     addr,
		bound:    true,
		l:        l,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		l.Close()
		return newError(op, ENOTSOCK, nil)
	}
	s.eps = append(s.eps, e)
	s.lastEP = e.resolved
	s.wg.Add(1)
	s.mu.Unlock()

	go s.accept(e)
	return nil
}

func (s *Socket) accept(e *endpoint) {
	defer s.wg.Done()
	for {
		rw, err := e.l.Accept()
		if err != nil {
			if s.io.Err() != nil || errors.Is(err, net.ErrClosed) || errors.Is(err, inproc.ErrClosed) {
				return
			}
			s.log.Printf("error accepting connection from %q: %+v", e.addr, err)
			select {
			case <-time.After(10 * time.Millisecond):
			case <-s.io.Done():
				return
			}
			continue
		}

		s.tune(rw)
		s.wg.Add(1)
		go s.handshake(rw, e)
	}
}

// handshake runs the server half of the ZMTP handshake of an accepted
// connection. It does not hold an I/O thread: the dialing peer may be
// holding the only one of a shared context.
func (s *Socket) handshake(rw net.Conn, e *endpoint) {
	defer s.wg.Done()
	stop := context.AfterFunc(s.io, func() { rw.Close() })
	defer stop()

	c, err := s.open(rw, true, e)
	if err != nil {
		if s.io.Err() == nil {
			s.log.Printf("could not open a ZMTP connection with %q: %+v", e.addr, err)
		}
		rw.Close()
		return
	}
	s.addConn(c)
}

// Connect connects the socket to a remote endpoint.
// The connection is re-established in the background if it is lost.
func (s *Socket) Connect(ep string) error {
	defer s.guard.enter()()

	const op = "connect"
	if err := s.usable(op); err != nil {
		return err
	}

	network, addr, err := splitAddr(ep)
	if err != nil {
		return wrapError(op, err)
	}

	e := &endpoint{
		addr:     ep,
		resolved: ep,
		network:  network,
		host:     addr,
	}

	c, err := s.dial(e)
	if err != nil {
		if code := ErrnoOf(err); code == ETERM || code == ENOCOMPATPROTO {
			return newError(op, code, err)
		}
		return newError(op, dialErrno(err), err)
	}

	s.mu.Lock()
	s.eps = append(s.eps, e)
	s.lastEP = e.resolved
	s.mu.Unlock()

	s.addConn(c)
	return nil
}

// dial connects to e, retrying up to the configured number of times.
func (s *Socket) dial(e *endpoint) (*Conn, error) {
	retries := 0
	for {
		c, err := s.dialOnce(e)
		if err == nil {
			return c, nil
		}
		if errors.Is(err, errIncompatiblePeer) || s.life.Err() != nil {
			return nil, err
		}
		if s.maxRetries >= 0 && retries >= s.maxRetries {
			return nil, err
		}
		retries++

		select {
		case <-time.After(s.retry):
		case <-s.life.Done():
			return nil, s.life.Err()
		}
	}
}

// dialOnce performs one connection attempt and handshake.
// Only the transport dial runs on an I/O thread; the handshake waits on
// the peer and must not keep the thread from the accepting side.
func (s *Socket) dialOnce(e *endpoint) (*Conn, error) {
	trans, err := drivers.lookup(e.network)
	if err != nil {
		return nil, err
	}

	var (
		mu        sync.Mutex
		abandoned bool
		conn      net.Conn
	)
	err = s.ctx.io.Do(s.life, func() error {
		rw, err := trans.Dial(s.dialCtx(), &s.dialer, e.host)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if abandoned {
			// Do gave up on us when s.life ended.
			return rw.Close()
		}
		conn = rw
		return nil
	})
	mu.Lock()
	rw := conn
	if err != nil {
		abandoned = true
		if rw != nil {
			rw.Close()
		}
	}
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.tune(rw)
	stop := context.AfterFunc(s.life, func() { rw.Close() })
	defer stop()

	c, err := s.open(rw, false, e)
	if err != nil {
		rw.Close()
		if s.life.Err() != nil {
			return nil, s.life.Err()
		}
		return nil, err
	}
	return c, nil
}

// reconnect re-establishes a lost connection to e with a backoff bounded
// by RECONNECT_IVL_MAX.
func (s *Socket) reconnect(e *endpoint) {
	s.mu.RLock()
	ivl, maxIvl := s.opts.reconnectIvl, s.opts.reconnectIvlMax
	s.mu.RUnlock()
	if ivl < 0 {
		return
	}

	for {
		select {
		case <-time.After(ivl):
		case <-s.life.Done():
			return
		}

		s.mu.RLock()
		removed := e.removed
		s.mu.RUnlock()
		if removed {
			return
		}

		c, err := s.dialOnce(e)
		if err == nil {
			s.addConn(c)
			return
		}
		if errors.Is(err, errIncompatiblePeer) {
			s.log.Printf("giving up reconnecting to %q: %+v", e.addr, err)
			return
		}

		if maxIvl > ivl {
			ivl *= 2
			if ivl > maxIvl {
				ivl = maxIvl
			}
		}
	}
}

func (s *Socket) open(rw net.Conn, server bool, e *endpoint) (*Conn, error) {
	s.mu.RLock()
	id, maxSize := s.id, s.opts.maxMsgSize
	s.mu.RUnlock()

	c, err := Open(rw, s.sec, s.typ, id, server)
	if err != nil {
		return nil, err
	}
	c.maxSize = maxSize
	c.ep = e
	return c, nil
}

// tune applies the kernel buffer sizes to TCP connections.
func (s *Socket) tune(rw net.Conn) {
	tcp, ok := rw.(*net.TCPConn)
	if !ok {
		return
	}
	s.mu.RLock()
	sndbuf, rcvbuf := s.opts.sndbuf, s.opts.rcvbuf
	s.mu.RUnlock()
	if sndbuf > 0 {
		_ = tcp.SetWriteBuffer(sndbuf)
	}
	if rcvbuf > 0 {
		_ = tcp.SetReadBuffer(rcvbuf)
	}
}

// Unbind stops accepting connections on a bound endpoint and closes the
// connections accepted on it.
func (s *Socket) Unbind(ep string) error {
	defer s.guard.enter()()
	return s.detach("unbind", ep, true)
}

// Disconnect closes the connection to a connected endpoint.
func (s *Socket) Disconnect(ep string) error {
	defer s.guard.enter()()
	return s.detach("disconnect", ep, false)
}

func (s *Socket) detach(op, ep string, bound bool) error {
	if err := s.usable(op); err != nil {
		return err
	}

	s.mu.Lock()
	var e *endpoint
	for i, v := range s.eps {
		if v.bound == bound && (v.addr == ep || v.resolved == ep) {
			e = v
			s.eps = append(s.eps[:i:i], s.eps[i+1:]...)
			break
		}
	}
	if e == nil {
		s.mu.Unlock()
		return newError(op, ENOENT, nil)
	}
	e.removed = true
	var conns []*Conn
	for _, c := range s.conns {
		if c.ep == e {
			conns = append(conns, c)
		}
	}
	s.mu.Unlock()

	if bound {
		e.l.Close()
	}
	for _, c := range conns {
		s.rmConn(c)
	}
	return nil
}

func (s *Socket) addConn(c *Conn) {
	s.mu.Lock()
	switch {
	case s.io.Err() != nil, c.ep != nil && c.ep.removed:
		s.mu.Unlock()
		c.Close()
		return
	case s.pat.route == routeExclusive && len(s.conns) > 0:
		s.mu.Unlock()
		s.log.Printf("rejecting second peer on %s socket", s.typ)
		c.Close()
		return
	}

	s.conns = append(s.conns, c)
	if s.typ == Router {
		s.assignID(c)
	}
	var fan chan Msg
	if s.pat.route == routeFanOut {
		fan = make(chan Msg, fanCap(s.opts.sndhwm))
		s.fan[c] = fan
		s.wg.Add(1)
	}
	s.wg.Add(1)
	replay := s.subs.list()
	s.mu.Unlock()

	go s.rpump(c)
	if fan != nil {
		go s.fanWriter(c, fan)
	}

	if s.typ == Sub || s.typ == XSub {
		for _, topic := range replay {
			if err := c.SendMsg(subscription(1, topic)); err != nil {
				s.rmConn(c)
				return
			}
		}
	}
	s.sig.broadcast()
}

func (s *Socket) rmConn(c *Conn) {
	s.mu.Lock()
	cur := -1
	for i := range s.conns {
		if s.conns[i] == c {
			cur = i
			break
		}
	}
	if cur == -1 {
		s.mu.Unlock()
		c.Close()
		return
	}

	s.conns = append(s.conns[:cur:cur], s.conns[cur+1:]...)
	if c.rid != "" && s.ids[c.rid] == c {
		delete(s.ids, c.rid)
	}
	if fan, ok := s.fan[c]; ok {
		delete(s.fan, c)
		close(fan)
	}
	if s.rep.conn == c {
		s.rep.conn = nil
	}
	e := c.ep
	again := e != nil && !e.bound && !e.removed && s.life.Err() == nil
	s.mu.Unlock()

	c.Close()
	s.sig.broadcast()

	if again {
		go s.reconnect(e)
	}
}

// Send sends one frame of a message.
//
// With SendMore the frame is held until the final frame is sent; the
// message is then queued as a whole. DontWait makes Send fail with
// ErrWouldBlock instead of waiting for room or for a peer. Unless
// SendCopy is set, f is consumed.
func (s *Socket) Send(f *Frame, flags Flag) error {
	defer s.guard.enter()()

	const op = "send"
	if flags&^(DontWait|SendMore|SendCopy) != 0 {
		return newError(op, EINVAL, nil)
	}
	if !f.Valid() {
		return newError(op, EFAULT, nil)
	}
	if err := s.usable(op); err != nil {
		return err
	}
	if !s.pat.send {
		return newError(op, ENOTSUP, nil)
	}

	data := f.data
	if flags&SendCopy != 0 {
		data = append(make([]byte, 0, len(data)), data...)
	}

	s.mu.RLock()
	first := len(s.spart) == 0
	maxSize := s.opts.maxMsgSize
	timeout := s.opts.sndtimeo
	s.mu.RUnlock()

	if maxSize >= 0 && int64(len(data)) > maxSize {
		return newError(op, EMSGSIZE, nil)
	}

	if first {
		if err := s.checkSendState(op, data); err != nil {
			return err
		}
		if err := s.wait(op, flags, timeout, s.writable); err != nil {
			return err
		}
	}

	if flags&SendCopy == 0 {
		f.Release()
	}

	s.mu.Lock()
	s.spart = append(s.spart, data)
	if flags&SendMore != 0 {
		s.mu.Unlock()
		return nil
	}
	m := s.seal(s.spart)
	s.spart = nil
	s.mu.Unlock()

	if !s.out.push(m) {
		return s.lifeErr(op)
	}
	return nil
}

// checkSendState rejects the first frame of a message the pattern does
// not allow now.
func (s *Socket) checkSendState(op string, first []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.typ {
	case Req:
		if s.req.awaiting {
			return newError(op, EFSM, nil)
		}
	case Rep:
		if !s.rep.holding || len(s.rcur) > 0 {
			return newError(op, EFSM, nil)
		}
	case Router:
		if s.opts.routerMandatory && s.ids[string(first)] == nil {
			return newError(op, EHOSTUNREACH, nil)
		}
	}
	return nil
}

// seal turns the frames of a complete outgoing message into a queue
// entry. s.mu must be held.
func (s *Socket) seal(frames [][]byte) qmsg {
	switch s.typ {
	case Req:
		return s.reqSeal(frames)
	case Rep:
		return s.repSeal(frames)
	case XSub:
		s.xsubTrack(frames)
	}
	return qmsg{frames: frames}
}

// abortSend drops the frames of an unfinished multipart message.
func (s *Socket) abortSend() {
	s.mu.Lock()
	s.spart = nil
	s.mu.Unlock()
}

// Recv receives the next frame.
// Only DontWait is a valid flag. Frame.More reports whether more frames
// of the same message follow.
func (s *Socket) Recv(flags Flag) (*Frame, error) {
	defer s.guard.enter()()

	const op = "recv"
	if flags&^DontWait != 0 {
		return nil, newError(op, EINVAL, nil)
	}
	if err := s.usable(op); err != nil {
		return nil, err
	}
	if !s.pat.recv {
		return nil, newError(op, ENOTSUP, nil)
	}

	s.mu.RLock()
	draining := len(s.rcur) > 0
	timeout := s.opts.rcvtimeo
	s.mu.RUnlock()

	if !draining {
		if err := s.checkRecvState(op); err != nil {
			return nil, err
		}
		for {
			if err := s.wait(op, flags, timeout, s.readable); err != nil {
				return nil, err
			}
			if m, ok := s.in.tryPop(); ok {
				s.mu.Lock()
				if s.closed {
					s.mu.Unlock()
					return nil, newError(op, ENOTSOCK, nil)
				}
				s.rcur = s.unseal(m)
				s.mu.Unlock()
				break
			}
		}
	}

	s.mu.Lock()
	if s.closed || len(s.rcur) == 0 {
		// Close ran between the two critical sections and dropped rcur.
		s.mu.Unlock()
		return nil, newError(op, ENOTSOCK, nil)
	}
	data := s.rcur[0]
	s.rcur[0] = nil
	s.rcur = s.rcur[1:]
	more := len(s.rcur) > 0
	if !more {
		s.rcur = nil
		if s.typ == Req {
			s.req.awaiting = false
		}
	}
	s.mu.Unlock()
	s.sig.broadcast()

	return &Frame{data: data, more: more}, nil
}

func (s *Socket) checkRecvState(op string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.typ {
	case Req:
		if !s.req.awaiting {
			return newError(op, EFSM, nil)
		}
	case Rep:
		if s.rep.holding {
			return newError(op, EFSM, nil)
		}
	}
	return nil
}

// unseal returns the application frames of a received message.
// s.mu must be held.
func (s *Socket) unseal(m qmsg) [][]byte {
	var frames [][]byte
	switch s.typ {
	case Req:
		frames = s.reqUnseal(m)
	case Rep:
		frames = s.repUnseal(m)
	default:
		frames = m.frames
	}
	if len(frames) == 0 {
		frames = [][]byte{{}}
	}
	return frames
}

// wait blocks until ready reports true, honouring DontWait and timeout.
func (s *Socket) wait(op string, flags Flag, timeout time.Duration, ready func() bool) error {
	var expired <-chan time.Time
	if flags&DontWait == 0 && timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}

	for {
		ch := s.sig.wait()
		if ready() {
			return nil
		}
		if err := s.usable(op); err != nil {
			return err
		}
		if flags&DontWait != 0 || timeout == 0 {
			return newError(op, EAGAIN, nil)
		}

		select {
		case <-ch:
		case <-expired:
			return newError(op, EAGAIN, nil)
		case <-s.life.Done():
			return s.lifeErr(op)
		}
	}
}

func (s *Socket) writable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writableLocked()
}

func (s *Socket) writableLocked() bool {
	if s.closed || s.termed || !s.pat.send {
		return false
	}
	switch s.typ {
	case Req:
		if s.req.awaiting {
			return false
		}
	case Rep:
		if !s.rep.holding || len(s.rcur) > 0 {
			return false
		}
	}
	if !s.out.hasRoom() {
		return false
	}
	switch s.pat.route {
	case routeExclusive, routeRoundRobin:
		return len(s.conns) > 0
	}
	return true
}

func (s *Socket) readable() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readableLocked()
}

func (s *Socket) readableLocked() bool {
	if s.closed || s.termed || !s.pat.recv {
		return false
	}
	if len(s.rcur) > 0 {
		return true
	}
	switch s.typ {
	case Req:
		if !s.req.awaiting {
			return false
		}
	case Rep:
		if s.rep.holding {
			return false
		}
	}
	return s.in.Len() > 0
}

// Events returns the current readiness of the socket.
// A closed or interrupted socket reports PollErr.
func (s *Socket) Events() Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed || s.termed {
		return PollErr
	}
	var ev Event
	if s.readableLocked() {
		ev |= PollIn
	}
	if s.writableLocked() {
		ev |= PollOut
	}
	return ev
}

func (s *Socket) setHWM(snd, rcv int) {
	s.mu.Lock()
	if snd >= 0 {
		s.opts.sndhwm = snd
	}
	if rcv >= 0 {
		s.opts.rcvhwm = rcv
	}
	s.mu.Unlock()

	if snd >= 0 {
		s.out.setHWM(snd)
	}
	if rcv >= 0 {
		s.in.setHWM(rcv)
	}
}

func (s *Socket) hwm(snd bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if snd {
		return s.opts.sndhwm
	}
	return s.opts.rcvhwm
}

// Close closes the socket.
//
// Messages still queued for sending are delivered in the background for
// up to LINGER. A negative linger keeps trying until the context is
// terminated. Closing a closed socket is a no-op.
func (s *Socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	linger := s.opts.linger
	s.spart = nil
	s.rcur = nil
	var ls []net.Listener
	for _, e := range s.eps {
		if e.bound {
			ls = append(ls, e.l)
		}
	}
	s.mu.Unlock()

	s.stop()
	for _, l := range ls {
		l.Close()
	}
	s.in.close()
	s.in.reset()
	s.out.close()

	lingering := linger != 0 && !s.flushed()
	s.ctx.release(s, lingering)
	if lingering {
		go s.linger(linger)
	} else {
		s.teardown()
	}
	s.sig.broadcast()
	return nil
}

// flushed reports whether every accepted message was handed to a peer.
func (s *Socket) flushed() bool {
	return s.out.drained() && s.pending.Load() == 0
}

func (s *Socket) linger(d time.Duration) {
	defer s.ctx.lingered(s)

	var expired <-chan time.Time
	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		expired = t.C
	}

	for {
		ch := s.sig.wait()
		if s.flushed() {
			break
		}
		select {
		case <-ch:
			continue
		case <-expired:
		case <-s.io.Done():
		}
		break
	}
	s.teardown()
}

// teardown closes every connection and stops the I/O goroutines.
func (s *Socket) teardown() {
	s.ioStop()

	s.mu.Lock()
	conns := s.conns
	s.conns = nil
	s.ids = make(map[string]*Conn)
	for c, fan := range s.fan {
		delete(s.fan, c)
		close(fan)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	s.out.reset()
	s.sig.broadcast()

	go func() {
		s.wg.Wait()
		s.ctx.wg.Done()
	}()
}

// kill closes the socket without lingering.
func (s *Socket) kill() {
	s.mu.Lock()
	s.opts.linger = 0
	s.mu.Unlock()
	s.Close()
	s.ioStop()
}

// interrupt makes pending and future operations fail with ETERM.
func (s *Socket) interrupt() {
	s.mu.Lock()
	s.termed = true
	s.mu.Unlock()
	s.stop()
	s.sig.broadcast()
}

func (s *Socket) lingerValue() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts.linger
}

// guard detects concurrent use of a socket.
type guard struct {
	busy atomic.Int32
}

func (g *guard) enter() func() {
	if !g.busy.CompareAndSwap(0, 1) {
		panic("zsock: concurrent use of socket")
	}
	return g.leave
}

func (g *guard) leave() {
	g.busy.Store(0)
}
