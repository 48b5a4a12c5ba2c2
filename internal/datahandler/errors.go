package datahandler

import (
	"errors"
	"fmt"
	"time"
)

// TransportError is a connection or I/O failure against the Data Handler.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError is a message the client could not interpret, or an explicit
// error reported by the server. It is fatal to the job that received it.
type ProtocolError struct {
	Op  string
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// NotReadyError means the readiness check answered but the run is not ready.
// Jobs for the run must not be submitted.
type NotReadyError struct {
	Run uint32
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("data handler is not ready for run %d", e.Run)
}

// TimeoutError means no terminal message arrived within the job timeout.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no result after %s", e.Op, e.After)
}

// IsTransport reports whether err is a *TransportError.
func IsTransport(err error) bool {
	var e *TransportError
	return errors.As(err, &e)
}

// IsProtocol reports whether err is a *ProtocolError.
func IsProtocol(err error) bool {
	var e *ProtocolError
	return errors.As(err, &e)
}

// IsNotReady reports whether err is a *NotReadyError.
func IsNotReady(err error) bool {
	var e *NotReadyError
	return errors.As(err, &e)
}

// IsTimeout reports whether err is a *TimeoutError.
func IsTimeout(err error) bool {
	var e *TimeoutError
	return errors.As(err, &e)
}

// Class returns a short label for err, used as a metrics label.
func Class(err error) string {
	switch {
	case err == nil:
		return ""
	case IsTimeout(err):
		return "timeout"
	case IsProtocol(err):
		return "protocol"
	case IsNotReady(err):
		return "not_ready"
	case IsTransport(err):
		return "transport"
	default:
		return "other"
	}
}
