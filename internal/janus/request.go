package janus

import (
	"encoding/json"

	"livesignal/backend/internal/models"
)

// Top level request verbs.
const (
	verbCreate    = "create"
	verbAttach    = "attach"
	verbMessage   = "message"
	verbKeepAlive = "keepalive"
	verbDestroy   = "destroy"
)

// Request is one outbound gateway frame. Transaction is stamped by Client.Send.
type Request struct {
	Janus       string       `json:"janus"`
	Transaction string       `json:"transaction"`
	SessionID   int64        `json:"session_id,omitempty"`
	HandleID    int64        `json:"handle_id,omitempty"`
	Plugin      string       `json:"plugin,omitempty"`
	Body        PluginBody   `json:"body,omitempty"`
	Jsep        *models.JSEP `json:"jsep,omitempty"`
}

// PluginBody is the closed set of video-room message bodies.
type PluginBody interface {
	// RequestName is the value of body.request on the wire.
	RequestName() string
	// Async reports whether the plugin answers with an ack followed by an event.
	Async() bool
	videoRoom()
}

// CreateRoom allocates a room on the gateway.
type CreateRoom struct {
	Room        int64  `json:"room"`
	Description string `json:"description,omitempty"`
	Publishers  int    `json:"publishers,omitempty"`
}

// JoinPublisher joins the handle to a room as its publisher.
type JoinPublisher struct {
	Room    int64  `json:"room"`
	Display string `json:"display,omitempty"`
}

// JoinSubscriber subscribes the handle to the given publisher feeds.
type JoinSubscriber struct {
	Room    int64    `json:"room"`
	Streams []Stream `json:"streams"`
}

type Stream struct {
	Feed int64 `json:"feed"`
}

// Publish starts sending media; the offer travels in Request.Jsep.
type Publish struct {
	Audio bool `json:"audio"`
	Video bool `json:"video"`
}

// Start completes a subscription; the answer travels in Request.Jsep.
type Start struct {
	Room int64 `json:"room,omitempty"`
}

type ListParticipants struct {
	Room int64 `json:"room"`
}

type DestroyRoom struct {
	Room int64 `json:"room"`
}

func (CreateRoom) RequestName() string       { return "create" }
func (JoinPublisher) RequestName() string    { return "join" }
func (JoinSubscriber) RequestName() string   { return "join" }
func (Publish) RequestName() string          { return "publish" }
func (Start) RequestName() string            { return "start" }
func (ListParticipants) RequestName() string { return "listparticipants" }
func (DestroyRoom) RequestName() string      { return "destroy" }

func (CreateRoom) Async() bool       { return false }
func (JoinPublisher) Async() bool    { return true }
func (JoinSubscriber) Async() bool   { return true }
func (Publish) Async() bool          { return true }
func (Start) Async() bool            { return true }
func (ListParticipants) Async() bool { return false }
func (DestroyRoom) Async() bool      { return false }

func (CreateRoom) videoRoom()       {}
func (JoinPublisher) videoRoom()    {}
func (JoinSubscriber) videoRoom()   {}
func (Publish) videoRoom()          {}
func (Start) videoRoom()            {}
func (ListParticipants) videoRoom() {}
func (DestroyRoom) videoRoom()      {}

func (b CreateRoom) MarshalJSON() ([]byte, error) {
	type plain CreateRoom
	return encodeBody(plain(b), "request", b.RequestName())
}

func (b JoinPublisher) MarshalJSON() ([]byte, error) {
	type plain JoinPublisher
	return encodeBody(plain(b), "request", b.RequestName(), "ptype", "publisher")
}

func (b JoinSubscriber) MarshalJSON() ([]byte, error) {
	type plain JoinSubscriber
	return encodeBody(plain(b), "request", b.RequestName(), "ptype", "subscriber")
}

func (b Publish) MarshalJSON() ([]byte, error) {
	type plain Publish
	return encodeBody(plain(b), "request", b.RequestName())
}

func (b Start) MarshalJSON() ([]byte, error) {
	type plain Start
	return encodeBody(plain(b), "request", b.RequestName())
}

func (b ListParticipants) MarshalJSON() ([]byte, error) {
	type plain ListParticipants
	return encodeBody(plain(b), "request", b.RequestName())
}

func (b DestroyRoom) MarshalJSON() ([]byte, error) {
	type plain DestroyRoom
	return encodeBody(plain(b), "request", b.RequestName())
}

// encodeBody marshals v and adds the given string key/value pairs next to its fields.
func encodeBody(v any, kv ...string) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	for i := 0; i+1 < len(kv); i += 2 {
		val, err := json.Marshal(kv[i+1])
		if err != nil {
			return nil, err
		}
		fields[kv[i]] = val
	}
	return json.Marshal(fields)
}
