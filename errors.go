package alsapcm

import (
	"errors"
	"fmt"
	"strings"
	"syscall"
)

// Error represents a structured playback error with context and errno mapping
type Error struct {
	Op    string        // Operation that failed (e.g., "start", "mmap_commit")
	Kind  ErrorKind     // High-level error category
	Errno syscall.Errno // Kernel errno (0 if not applicable)
	Msg   string        // Human-readable message
	Inner error         // Wrapped error
}

// Error implements the error interface
func (e *Error) Error() string {
	var parts []string

	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}

	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", int(e.Errno)))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}

	if len(parts) > 0 {
		return fmt.Sprintf("alsapcm: %s (%s)", msg, strings.Join(parts, " "))
	}

	return fmt.Sprintf("alsapcm: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support for Kind comparison
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if te, ok := target.(*Error); ok {
		return e.Kind == te.Kind
	}

	return false
}

// ErrorKind represents high-level error categories. The playback loop
// surfaces exactly these kinds: xrun and suspend conditions are recovered
// locally, and only their failure to resolve appears here.
type ErrorKind string

const (
	// KindStart means the stream could not be started.
	KindStart ErrorKind = "start failed"

	// KindXrun means an under/overrun that prepare could not clear.
	KindXrun ErrorKind = "xrun"

	// KindSuspended means a suspend that resume could not clear.
	KindSuspended ErrorKind = "suspended"

	// KindTimeout means resume stayed in EAGAIN past the retry budget.
	KindTimeout ErrorKind = "resume timeout"

	// KindUnexpected means a broken invariant: an unknown state code, a
	// nil mmap area, or a driver response outside the contract.
	KindUnexpected ErrorKind = "unexpected"

	// KindInvalidParameters means a configuration value the device layer
	// rejected before the loop ever ran.
	KindInvalidParameters ErrorKind = "invalid parameters"

	// KindDeviceNotFound means the requested PCM endpoint does not exist.
	KindDeviceNotFound ErrorKind = "device not found"
)

// Error constructors

// NewError creates a new structured error
func NewError(op string, kind ErrorKind, msg string) *Error {
	return &Error{
		Op:   op,
		Kind: kind,
		Msg:  msg,
	}
}

// NewErrorWithErrno creates a new structured error with errno
func NewErrorWithErrno(op string, kind ErrorKind, errno syscall.Errno) *Error {
	return &Error{
		Op:    op,
		Kind:  kind,
		Errno: errno,
		Msg:   errno.Error(),
	}
}

// WrapError wraps an existing error with playback context
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	// If it's already a structured error, just update the operation
	if pe, ok := inner.(*Error); ok {
		return &Error{
			Op:    op,
			Kind:  pe.Kind,
			Errno: pe.Errno,
			Msg:   pe.Msg,
			Inner: pe.Inner,
		}
	}

	var errno syscall.Errno
	if errors.As(inner, &errno) {
		return &Error{
			Op:    op,
			Kind:  KindFromErrno(errno),
			Errno: errno,
			Msg:   errno.Error(),
			Inner: inner,
		}
	}

	return &Error{
		Op:    op,
		Kind:  KindUnexpected,
		Msg:   inner.Error(),
		Inner: inner,
	}
}

// KindFromErrno maps a kernel errno to the recovery cause taxonomy.
// EPIPE signals an xrun and ESTRPIPE a suspended stream; everything else
// is outside the recoverable set.
func KindFromErrno(errno syscall.Errno) ErrorKind {
	switch errno {
	case syscall.EPIPE:
		return KindXrun
	case syscall.ESTRPIPE:
		return KindSuspended
	case syscall.ETIMEDOUT:
		return KindTimeout
	case syscall.ENOENT, syscall.ENODEV:
		return KindDeviceNotFound
	case syscall.EINVAL:
		return KindInvalidParameters
	default:
		return KindUnexpected
	}
}

// IsKind checks if an error matches a specific error kind
func IsKind(err error, kind ErrorKind) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind == kind
	}
	return false
}

// IsErrno checks if an error matches a specific errno
func IsErrno(err error, errno syscall.Errno) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Errno == errno
	}
	return false
}
