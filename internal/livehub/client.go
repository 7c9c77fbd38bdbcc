package livehub

import "livesignal/backend/internal/models"

// Client is one connected participant of a livestream, host or viewer.
// It abstracts the transport so the Manager and the orchestrator can be tested
// without sockets.
type Client interface {
	// ID is unique per connection, not per user.
	ID() string
	UserID() string
	ClinicID() string

	// Send queues ev for delivery without blocking. It reports false when the
	// event was dropped because the client is gone or its buffer is full.
	Send(ev models.Event) bool

	// Close shuts the connection down. Safe to call more than once.
	Close()
}

// Dispatcher handles inbound frames of a client.
type Dispatcher interface {
	Dispatch(c Client, req models.ClientRequest)
	Disconnect(c Client)
}
