package server

import "fmt"

// TransportInitError reports that the listening socket could not be set up.
// It is fatal at startup.
type TransportInitError struct {
	Addr string
	Err  error
}

func (e *TransportInitError) Error() string {
	return fmt.Sprintf("transport init on %s: %v", e.Addr, e.Err)
}

func (e *TransportInitError) Unwrap() error {
	return e.Err
}
