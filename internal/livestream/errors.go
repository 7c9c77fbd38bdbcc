package livestream

import (
	"errors"
	"fmt"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomLive        = errors.New("room is already live")
	ErrServiceNotFound = errors.New("service not found")
	ErrUnauthorized    = errors.New("unauthorized action")
	ErrQuotaExceeded   = errors.New("no quota for livestream, buy more quota")
	ErrMissingIdentity = errors.New("missing caller identity")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrNoPublisher     = errors.New("room has no publisher")
)

// abortError marks failures after which the connection is closed.
type abortError struct {
	err error
}

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

func abort(err error) error {
	return &abortError{err: err}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
