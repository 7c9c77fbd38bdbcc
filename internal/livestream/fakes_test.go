package livestream_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"livesignal/backend/internal/janus"
	"livesignal/backend/internal/models"
)

// fakeGateway answers like the video-room plugin and records every call by name,
// e.g. "create", "attach", "message:join", "destroy".
type fakeGateway struct {
	mu          sync.Mutex
	calls       []string
	nextID      int64
	fail        map[string]error
	noPublisher bool
	panicOn     string
	// beforeSubscribed runs when a subscriber join reaches the gateway, outside the lock.
	beforeSubscribed func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{nextID: 1000, fail: map[string]error{}}
}

func (g *fakeGateway) failOn(call string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[call] = err
}

func (g *fakeGateway) clearFailures() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail = map[string]error{}
}

func (g *fakeGateway) record(call string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, call)
	if call == g.panicOn {
		panic("gateway exploded")
	}
	g.nextID++
	return g.nextID, g.fail[call]
}

func (g *fakeGateway) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *fakeGateway) count(call string) int {
	n := 0
	for _, c := range g.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (g *fakeGateway) CreateSession(context.Context) (int64, error) {
	id, err := g.record("create")
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (g *fakeGateway) AttachPlugin(_ context.Context, _ int64, plugin string) (int64, error) {
	if plugin != "janus.plugin.videoroom" {
		return 0, fmt.Errorf("unexpected plugin %s", plugin)
	}
	id, err := g.record("attach")
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (g *fakeGateway) Message(_ context.Context, _, _ int64, body janus.PluginBody, jsep *models.JSEP) (*janus.Response, error) {
	_, err := g.record("message:" + body.RequestName())
	if err != nil {
		return nil, err
	}

	resp := &janus.Response{Janus: "success"}
	switch b := body.(type) {
	case janus.ListParticipants:
		participants := []janus.Participant{{ID: 1, Display: "viewer"}}
		g.mu.Lock()
		if !g.noPublisher {
			participants = append(participants, janus.Participant{ID: 77, Display: "host", Publisher: true})
		}
		g.mu.Unlock()
		data, _ := json.Marshal(janus.VideoRoomData{VideoRoom: "participants", Room: b.Room, Participants: participants})
		resp.PluginData = &janus.PluginData{Plugin: "janus.plugin.videoroom", Data: data}
	case janus.JoinSubscriber:
		if hook := g.beforeSubscribed; hook != nil {
			hook()
		}
		resp.Janus = "event"
		resp.Jsep = &models.JSEP{Type: "offer", SDP: fmt.Sprintf("subscriber-offer-%d", b.Streams[0].Feed)}
	case janus.Publish:
		resp.Janus = "event"
		resp.Jsep = &models.JSEP{Type: "answer", SDP: "answer-for-" + jsep.SDP}
	case janus.JoinPublisher, janus.Start:
		resp.Janus = "event"
	}
	return resp, nil
}

func (g *fakeGateway) KeepAlive(context.Context, int64) error {
	_, err := g.record("keepalive")
	return err
}

func (g *fakeGateway) DestroySession(context.Context, int64) error {
	_, err := g.record("destroy")
	return err
}

// fakeClient is a connection that keeps every event it was sent.
type fakeClient struct {
	id       string
	userID   string
	clinicID string

	mu     sync.Mutex
	events []models.Event
	closed bool
}

func newFakeClient(id, userID, clinicID string) *fakeClient {
	return &fakeClient{id: id, userID: userID, clinicID: clinicID}
}

func (c *fakeClient) ID() string       { return c.id }
func (c *fakeClient) UserID() string   { return c.userID }
func (c *fakeClient) ClinicID() string { return c.clinicID }

func (c *fakeClient) Send(ev models.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.events = append(c.events, ev)
	return true
}

func (c *fakeClient) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeClient) Events() []models.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Event(nil), c.events...)
}

// Named returns the events with the given name, in arrival order.
func (c *fakeClient) Named(name string) []models.Event {
	var out []models.Event
	for _, ev := range c.Events() {
		if ev.Name == name {
			out = append(out, ev)
		}
	}
	return out
}

func (c *fakeClient) Last() models.Event {
	evs := c.Events()
	if len(evs) == 0 {
		return models.Event{}
	}
	return evs[len(evs)-1]
}

// counts extracts the viewer counts of every ListenerCountUpdated event.
func (c *fakeClient) counts() []int {
	var out []int
	for _, ev := range c.Named(models.EventListenerCountUpdated) {
		out = append(out, ev.Data.(models.ListenerCountData).Count)
	}
	return out
}
