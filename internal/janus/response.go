package janus

import (
	"encoding/json"
	"fmt"

	"livesignal/backend/internal/models"
)

// Response is one inbound gateway frame.
type Response struct {
	Janus       string       `json:"janus"`
	Transaction string       `json:"transaction,omitempty"`
	SessionID   int64        `json:"session_id,omitempty"`
	Sender      int64        `json:"sender,omitempty"`
	Data        ResponseData `json:"data"`
	Error       *ErrorBody   `json:"error,omitempty"`
	PluginData  *PluginData  `json:"plugindata,omitempty"`
	Jsep        *models.JSEP `json:"jsep,omitempty"`
}

type ResponseData struct {
	ID int64 `json:"id"`
}

type ErrorBody struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

type PluginData struct {
	Plugin string          `json:"plugin"`
	Data   json.RawMessage `json:"data"`
}

// VideoRoomData is the decoded plugindata.data of a video-room answer.
type VideoRoomData struct {
	VideoRoom    string        `json:"videoroom"`
	Room         int64         `json:"room"`
	ID           int64         `json:"id"`
	ErrorCode    int           `json:"error_code"`
	Error        string        `json:"error"`
	Participants []Participant `json:"participants"`
}

type Participant struct {
	ID        int64  `json:"id"`
	Display   string `json:"display"`
	Publisher bool   `json:"publisher"`
}

// VideoRoom decodes the plugin payload. A response without plugindata yields an empty value.
func (r *Response) VideoRoom() (*VideoRoomData, error) {
	var d VideoRoomData
	if r.PluginData == nil || len(r.PluginData.Data) == 0 {
		return &d, nil
	}
	if err := json.Unmarshal(r.PluginData.Data, &d); err != nil {
		return nil, fmt.Errorf("decode videoroom data: %w", err)
	}
	return &d, nil
}

// Err returns a *ProtocolError when the gateway or the plugin reported a failure.
// success, ack and event answers without error_code are not failures.
func (r *Response) Err() error {
	if r.Janus == "error" {
		if r.Error != nil {
			return &ProtocolError{Code: r.Error.Code, Reason: r.Error.Reason}
		}
		return &ProtocolError{Reason: "unknown gateway error"}
	}
	switch r.Janus {
	case "success", "ack", "event":
	default:
		return &ProtocolError{Reason: "unexpected answer " + r.Janus}
	}
	vr, err := r.VideoRoom()
	if err != nil {
		return &ProtocolError{Reason: err.Error()}
	}
	if vr.ErrorCode != 0 {
		return &ProtocolError{Code: vr.ErrorCode, Reason: vr.Error}
	}
	return nil
}

// Publisher returns the first participant flagged as publisher.
func (d *VideoRoomData) Publisher() (Participant, bool) {
	for _, p := range d.Participants {
		if p.Publisher {
			return p, true
		}
	}
	return Participant{}, false
}
