package platesvc

import (
	"errors"
	"fmt"
)

// ErrNoDownloadURL is returned when the generate endpoint succeeds without a reference.
var ErrNoDownloadURL = errors.New("generate: response has no download_url")

// TransportError means the request never produced an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a response with a non-2xx status or an undecodable body.
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s failed: %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed: %d: %s", e.Op, e.StatusCode, e.Detail)
}

// IsTransport reports whether err comes from the network rather than the service.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
