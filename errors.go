// Copyright 2018 The go-zeromq Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package zsock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/go-zeromq/zsock/internal/inproc"
)

// Errno is a transport error code.
// Values follow the POSIX numbering used by libzmq, plus the ZeroMQ
// specific codes starting at hausnumero.
type Errno int

const hausnumero = 156384712

const (
	ENOENT          Errno = 2
	EINTR           Errno = 4
	EIO             Errno = 5
	EAGAIN          Errno = 11
	ENOMEM          Errno = 12
	EFAULT          Errno = 14
	EBUSY           Errno = 16
	EINVAL          Errno = 22
	EMFILE          Errno = 24
	ENOTSOCK        Errno = 88
	EMSGSIZE        Errno = 90
	EPROTONOSUPPORT Errno = 93
	ENOTSUP         Errno = 95
	EADDRINUSE      Errno = 98
	EADDRNOTAVAIL   Errno = 99
	ENETDOWN        Errno = 100
	ENETUNREACH     Errno = 101
	ECONNRESET      Errno = 104
	ENOBUFS         Errno = 105
	ETIMEDOUT       Errno = 110
	ECONNREFUSED    Errno = 111
	EHOSTUNREACH    Errno = 113

	EFSM           Errno = hausnumero + 51
	ENOCOMPATPROTO Errno = hausnumero + 52
	ETERM          Errno = hausnumero + 53
	EMTHREAD       Errno = hausnumero + 54
)

var errnoText = map[Errno]string{
	ENOENT:          "no such endpoint",
	EINTR:           "interrupted",
	EIO:             "input/output error",
	EAGAIN:          "resource temporarily unavailable",
	ENOMEM:          "cannot allocate memory",
	EFAULT:          "bad address",
	EBUSY:           "device or resource busy",
	EINVAL:          "invalid argument",
	EMFILE:          "too many open sockets",
	ENOTSOCK:        "socket operation on non-socket",
	EMSGSIZE:        "message too long",
	EPROTONOSUPPORT: "protocol not supported",
	ENOTSUP:         "operation not supported",
	EADDRINUSE:      "address already in use",
	EADDRNOTAVAIL:   "cannot assign requested address",
	ENETDOWN:        "network is down",
	ENETUNREACH:     "network is unreachable",
	ECONNRESET:      "connection reset by peer",
	ENOBUFS:         "no buffer space available",
	ETIMEDOUT:       "operation timed out",
	ECONNREFUSED:    "connection refused",
	EHOSTUNREACH:    "host unreachable",
	EFSM:            "operation cannot be accomplished in current state",
	ENOCOMPATPROTO:  "the protocol is not compatible with the socket type",
	ETERM:           "context was terminated",
	EMTHREAD:        "no thread available",
}

func (e Errno) Error() string {
	if s, ok := errnoText[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", int(e))
}

// ErrorKind classifies failures reported by this package.
// An ErrorKind is itself an error so that errors.Is(err, ErrWouldBlock)
// can be used on any returned error.
type ErrorKind uint8

const (
	ErrTransport ErrorKind = iota + 1
	ErrInvalidOption
	ErrInvalidEndpoint
	ErrAddressInUse
	ErrAddressUnreachable
	ErrWouldBlock
	ErrShutdownTimeout
	ErrResourceExhausted
	ErrUseAfterClose
)

func (k ErrorKind) Error() string {
	switch k {
	case ErrTransport:
		return "transport error"
	case ErrInvalidOption:
		return "invalid option"
	case ErrInvalidEndpoint:
		return "invalid endpoint"
	case ErrAddressInUse:
		return "address in use"
	case ErrAddressUnreachable:
		return "address unreachable"
	case ErrWouldBlock:
		return "would block"
	case ErrShutdownTimeout:
		return "shutdown timeout"
	case ErrResourceExhausted:
		return "resource exhausted"
	case ErrUseAfterClose:
		return "use after close"
	}
	return fmt.Sprintf("error kind %d", uint8(k))
}

// MapErrno returns the kind of failure a transport code denotes.
func MapErrno(code Errno) ErrorKind {
	switch code {
	case EAGAIN:
		return ErrWouldBlock
	case EINVAL:
		return ErrInvalidOption
	case ENOENT, EPROTONOSUPPORT, ENOCOMPATPROTO, EADDRNOTAVAIL:
		return ErrInvalidEndpoint
	case EADDRINUSE:
		return ErrAddressInUse
	case ECONNREFUSED, EHOSTUNREACH, ENETUNREACH, ENETDOWN:
		return ErrAddressUnreachable
	case ETIMEDOUT, EBUSY:
		return ErrShutdownTimeout
	case ENOMEM, EMFILE, ENOBUFS, EMTHREAD:
		return ErrResourceExhausted
	case ETERM, ENOTSOCK:
		return ErrUseAfterClose
	}
	return ErrTransport
}

// Error is the error type returned by Context, Socket and Poller operations.
// It carries both the classified kind and the original transport code.
type Error struct {
	Op   string    // operation that failed (e.g. "bind", "send")
	Kind ErrorKind // classification of Code
	Code Errno     // transport error code
	Err  error     // underlying error, if any
}

func newError(op string, code Errno, err error) *Error {
	return &Error{Op: op, Kind: MapErrno(code), Code: code, Err: err}
}

// wrapError classifies err as the failure of op.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var zerr *Error
	if errors.As(err, &zerr) {
		return err
	}
	return newError(op, ErrnoOf(err), err)
}

func (e *Error) Error() string {
	msg := "zsock: " + e.Op + ": " + e.Code.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind, e.Code}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// ErrnoOf returns the transport code that best describes err.
func ErrnoOf(err error) Errno {
	if err == nil {
		return 0
	}

	var (
		zerr *Error
		code Errno
	)
	switch {
	case errors.As(err, &zerr):
		return zerr.Code
	case errors.As(err, &code):
		return code
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, os.ErrDeadlineExceeded):
		return EAGAIN
	case errors.Is(err, context.Canceled):
		return ETERM
	case errors.Is(err, errInvalidAddress):
		return EADDRNOTAVAIL
	case errors.Is(err, errUnknownTransport):
		return EPROTONOSUPPORT
	case errors.Is(err, errIncompatiblePeer):
		return ENOCOMPATPROTO
	case errors.Is(err, errOverflow):
		return EMSGSIZE
	case errors.Is(err, inproc.ErrConnRefused):
		return ECONNREFUSED
	case errors.Is(err, inproc.ErrAddrInUse):
		return EADDRINUSE
	case errors.Is(err, inproc.ErrClosed),
		errors.Is(err, net.ErrClosed):
		return ENOTSOCK
	case errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.ErrClosedPipe):
		return ECONNRESET
	}

	var sys syscall.Errno
	if errors.As(err, &sys) {
		switch sys {
		case syscall.EADDRINUSE:
			return EADDRINUSE
		case syscall.EADDRNOTAVAIL:
			return EADDRNOTAVAIL
		case syscall.ECONNREFUSED:
			return ECONNREFUSED
		case syscall.EHOSTUNREACH:
			return EHOSTUNREACH
		case syscall.ENETUNREACH:
			return ENETUNREACH
		case syscall.ENETDOWN:
			return ENETDOWN
		case syscall.ECONNRESET, syscall.EPIPE:
			return ECONNRESET
		case syscall.ENOENT:
			return ENOENT
		case syscall.EMFILE, syscall.ENFILE:
			return EMFILE
		case syscall.ENOMEM:
			return ENOMEM
		case syscall.ENOBUFS:
			return ENOBUFS
		case syscall.EINVAL:
			return EINVAL
		case syscall.EINTR:
			return EINTR
		case syscall.EAGAIN:
			return EAGAIN
		case syscall.ETIMEDOUT:
			return ETIMEDOUT
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return ETIMEDOUT
	}

	return EIO
}

// dialErrno reports the code of a failed connection attempt.
// Timeouts and missing ipc paths denote an unreachable peer there.
func dialErrno(err error) Errno {
	switch code := ErrnoOf(err); code {
	case ETIMEDOUT, EAGAIN:
		return EHOSTUNREACH
	case ENOENT, ECONNRESET, EIO:
		return ECONNREFUSED
	default:
		return code
	}
}
