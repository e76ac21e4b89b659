// Package sync is the router-sync engine: it keeps the billing store's
// profiles, subscriber accounts and session history consistent with the
// live configuration of the active router.
package sync

import (
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"netbill.id/panel/internal/routeros"
)

type Kind string

const (
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindProtocol   Kind = "protocol"
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
)

// Error carries a classified router/sync failure. Kind drives both the
// HTTP status and the operator guidance attached to the message.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf walks the error chain for a classified *Error, else returns "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Classify turns a raw transport or protocol error into a typed one.
func Classify(op string, err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}

	var trap *routeros.TrapError
	if errors.As(err, &trap) {
		msg := strings.ToLower(trap.Message)
		switch {
		case strings.Contains(msg, "no such item"), strings.Contains(msg, "not found"):
			return newError(KindNotFound, op, trap.Message, err)
		case strings.Contains(msg, "invalid user name or password"), strings.Contains(msg, "not logged in"):
			return newError(KindAuth, op, trap.Message, err)
		default:
			return newError(KindProtocol, op, trap.Message, err)
		}
	}

	var fatal *routeros.FatalError
	if errors.As(err, &fatal) {
		return newError(KindProtocol, op, fatal.Message, err)
	}

	switch {
	case IsTimeout(err):
		return newError(KindNetwork, op, "router timed out", err)
	case IsRefused(err):
		return newError(KindNetwork, op, "connection refused", err)
	default:
		return newError(KindNetwork, op, err.Error(), err)
	}
}

func IsTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ETIMEDOUT)
}

func IsRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// isStreamError reports whether an error looks like the transport died
// mid-read: the pattern seen when the plain API port is talked to on a
// TLS-only router. Auth rejections never match.
func isStreamError(err error) bool {
	if err == nil {
		return false
	}
	if IsTimeout(err) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection reset") || strings.Contains(msg, "stream")
}

// Advice pairs a classified error with a concrete next action for the
// operator-facing message.
func Advice(err error) string {
	switch KindOf(err) {
	case KindNotFound:
		return "the object is already absent on the router; safe to treat as done"
	case KindAuth:
		return "check the router API username and password"
	case KindNetwork:
		if IsRefused(err) {
			return "the API service looks disabled on the router; enable it under /ip service"
		}
		if IsTimeout(errors.Unwrap(err)) || IsTimeout(err) {
			return "the router is slow or under load; retry later"
		}
		return "check the VPN tunnel or route to the router"
	default:
		return ""
	}
}
