package payment

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig = errors.New("invalid gateway config")
	ErrMissingRetref = errors.New("retref is required")

	// ErrTransport matches every *TransportError via errors.Is.
	ErrTransport = errors.New("gateway transport error")
	// ErrProtocol matches every *ProtocolError via errors.Is.
	ErrProtocol = errors.New("gateway protocol error")
)

// TransportError means the call did not complete with a 2xx response:
// either nothing came back (StatusCode 0, Err set) or the gateway
// answered with a non-success status (StatusCode and raw Body set).
type TransportError struct {
	Op         string
	Method     string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("cardpointe %s: %s %s: %v", e.Op, e.Method, e.URL, e.Err)
	}
	return fmt.Sprintf("cardpointe %s: %s %s: status=%d body=%s", e.Op, e.Method, e.URL, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// ProtocolError means the gateway answered 2xx but the body was not the
// expected JSON shape.
type ProtocolError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("cardpointe %s: decode response (status=%d): %v", e.Op, e.StatusCode, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func (e *ProtocolError) Is(target error) bool { return target == ErrProtocol }
