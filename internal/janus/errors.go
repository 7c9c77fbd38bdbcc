package janus

import (
	"errors"
	"fmt"
)

var (
	// ErrGatewayTimeout is returned when no matching response arrived in time.
	ErrGatewayTimeout = errors.New("janus: gateway timeout")
	// ErrGatewayUnreachable is returned when the gateway connection is gone.
	ErrGatewayUnreachable = errors.New("janus: gateway unreachable")
)

// ProtocolError is a non-success answer from the gateway, either a top level
// {"janus":"error"} or a video-room plugin error_code.
type ProtocolError struct {
	Code   int
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("janus: error %d: %s", e.Code, e.Reason)
}
