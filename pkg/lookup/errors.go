package lookup

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownLookup is returned by a Mux for refs without a route.
	ErrUnknownLookup = errors.New("lookup: unknown lookup reference")
	// ErrNoEndpoint is returned by HTTPTransport for definitions without an
	// endpoint.
	ErrNoEndpoint = errors.New("lookup: definition has no endpoint")
)

// Error wraps a transport failure for a ref. Failures are never cached.
type Error struct {
	Ref string
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("lookup: resolve %q: %v", e.Ref, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// TransportError reports a non-2xx HTTP response.
type TransportError struct {
	Ref        string
	StatusCode int
	Status     string
}

func (e *TransportError) Error() string {
	if e == nil {
		return "<nil>"
	}
	status := e.Status
	if status == "" {
		status = fmt.Sprintf("%d", e.StatusCode)
	}
	return fmt.Sprintf("lookup: %q unexpected status %s", e.Ref, status)
}
