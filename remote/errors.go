package remote

import (
	"errors"
	"fmt"

	"github.com/danderson/uia"
	"github.com/danderson/uia/wire"
)

// Error names sent by a [Server] in error replies.
const (
	ErrNameFailed          = "uia.Error.Failed"
	ErrNameNotDispatchable = "uia.Error.NotDispatchable"
	ErrNameNotSupported    = "uia.Error.NotSupported"
	ErrNameType            = "uia.Error.Type"
	ErrNameUnknownPattern  = "uia.Error.UnknownPattern"
	ErrNameProtocol        = "uia.Error.Protocol"
)

// CallError is the error returned from failed bridge calls.
type CallError struct {
	// Name is the error name provided by the server.
	Name string
	// Detail is the human-readable explanation of what went wrong.
	Detail string
}

func (e CallError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("bridge call error %s", e.Name)
	}
	return fmt.Sprintf("bridge call error %s: %s", e.Name, e.Detail)
}

// Unwrap returns [uia.ErrNotDispatchable] for errors that carry that
// meaning on the server, so that a [uia.Client] driving a remote
// instance reports [uia.UnsupportedOperationError] as it would
// in-process.
func (e CallError) Unwrap() error {
	if e.Name == ErrNameNotDispatchable {
		return uia.ErrNotDispatchable
	}
	return nil
}

// errorName returns the error name under which err is sent to
// clients.
func errorName(err error) string {
	switch {
	case errors.Is(err, uia.ErrNotDispatchable):
		return ErrNameNotDispatchable
	case errors.As(err, new(uia.NotSupportedError)):
		return ErrNameNotSupported
	case errors.As(err, new(uia.TypeError)):
		return ErrNameType
	case errors.As(err, new(unknownPatternError)):
		return ErrNameUnknownPattern
	default:
		return ErrNameFailed
	}
}

type unknownPatternError struct {
	ID uia.GUID
}

func (e unknownPatternError) Error() string {
	return fmt.Sprintf("no pattern instance hosted for %s", e.ID)
}

// messageTooLongError is returned when an encoded message body is
// larger than the bridge accepts.
type messageTooLongError struct {
	Length int
}

func (e messageTooLongError) Error() string {
	return fmt.Sprintf("message body length %d exceeds maximum of %d", e.Length, wire.MaxLength)
}
