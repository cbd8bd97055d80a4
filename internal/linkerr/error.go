package linkerr

import (
	"errors"
	"fmt"
)

// Kind classifies an unrecoverable link failure.
type Kind string

const (
	KindBind     Kind = "bind"
	KindConnect  Kind = "connect"
	KindRead     Kind = "read"
	KindWrite    Kind = "write"
	KindDecode   Kind = "decode"
	KindProtocol Kind = "protocol"
	KindTimeout  Kind = "timeout"
)

// Error is a fatal link error. A session that produces one is closed and
// stays closed; callers decide whether that ends the process.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "link error"
	}
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Fatal wraps err as a fatal link error of the given kind.
func Fatal(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Fatalf is Fatal with a formatted cause.
func Fatalf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// IsFatal reports whether err (or anything it wraps) is a fatal link error.
func IsFatal(err error) bool {
	var le *Error
	return errors.As(err, &le)
}

// KindOf returns the kind of a fatal link error, or "" when err is not one.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}
