package livehub_test

import (
	"sync"

	"livesignal/backend/internal/models"
)

type MockClient struct {
	id       string
	userID   string
	clinicID string

	mu     sync.Mutex
	events []models.Event
	closed bool
	full   bool
}

func newMockClient(id string) *MockClient {
	return &MockClient{id: id, userID: "user-" + id}
}

func (c *MockClient) ID() string       { return c.id }
func (c *MockClient) UserID() string   { return c.userID }
func (c *MockClient) ClinicID() string { return c.clinicID }

func (c *MockClient) Send(ev models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.full {
		return false
	}
	c.events = append(c.events, ev)
	return true
}

func (c *MockClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *MockClient) Events() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Event, len(c.events))
	copy(out, c.events)
	return out
}
