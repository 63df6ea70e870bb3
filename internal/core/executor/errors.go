package executor

import (
	"fmt"
)

type Kind int

const (
	KindTimeout Kind = iota + 1
	KindTruncated
	KindTransport
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindTruncated:
		return "truncated"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// FetchError is the terminal failure of a map fetch. Body carries what the
// server sent for protocol errors, usually an OGC exception report.
type FetchError struct {
	Kind   Kind
	Status int
	Body   []byte
	Err    error
}

func (e *FetchError) Error() string {
	msg := "wms fetch " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// State is the lifecycle of a single fetch.
type State int

const (
	StateConnecting State = iota
	StateReceiving
	StateComplete
	StateTruncated
	StateTimedOut
	StateTransportError
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReceiving:
		return "receiving"
	case StateComplete:
		return "complete"
	case StateTruncated:
		return "truncated"
	case StateTimedOut:
		return "timed_out"
	case StateTransportError:
		return "transport_error"
	default:
		return "unknown"
	}
}
