package models

import "encoding/json"

// Client → server methods carried in ClientRequest.Method.
const (
	MethodHostCreateRoom      = "HostCreateRoom"
	MethodJoinAsListener      = "JoinAsListener"
	MethodStartPublish        = "StartPublish"
	MethodSendAnswerToJanus   = "SendAnswerToJanus"
	MethodKeepAlive           = "KeepAlive"
	MethodSendMessage         = "SendMessage"
	MethodSendReaction        = "SendReaction"
	MethodDisplayService      = "DisplayService"
	MethodSetPromotionService = "SetPromotionService"
	MethodEndLivestream       = "EndLivestream"
)

// Server → client event names carried in Event.Name.
const (
	EventRoomCreatedAndJoined   = "RoomCreatedAndJoined"
	EventJanusError             = "JanusError"
	EventSystemError            = "SystemError"
	EventJoinRoomResponse       = "JoinRoomResponse"
	EventPublishStarted         = "PublishStarted"
	EventAnswerAccepted         = "AnswerAccepted"
	EventListenerCountUpdated   = "ListenerCountUpdated"
	EventReceiveMessage         = "ReceiveMessage"
	EventReceiveReaction        = "ReceiveReaction"
	EventDisplayService         = "DisplayService"
	EventUpdateServicePromotion = "UpdateServicePromotion"
	EventLivestreamEnded        = "LivestreamEnded"
)

// ClientRequest is one inbound frame: {"method": "...", "payload": {...}}.
type ClientRequest struct {
	Method  string          `json:"method"`
	Payload json.RawMessage `json:"payload"`
}

// Event is one outbound frame: {"event": "...", "data": ...}.
type Event struct {
	Name string `json:"event"`
	Data any    `json:"data,omitempty"`
}

// JSEP is a WebRTC session description exchanged with the media gateway.
type JSEP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// HostCreateRoomPayload carries the show metadata. The room GUID is always minted
// by the server and returned in RoomCreatedAndJoined.
type HostCreateRoomPayload struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Image       string  `json:"image"`
	EventID     *string `json:"eventId,omitempty"`
}

type RoomPayload struct {
	RoomGUID string `json:"roomGuid"`
}

type StartPublishPayload struct {
	RoomGUID string `json:"roomGuid"`
	JSEP     JSEP   `json:"jsep"`
}

type SendAnswerPayload struct {
	JanusRoomID int64  `json:"janusRoomId"`
	SessionID   int64  `json:"sessionId"`
	HandleID    int64  `json:"handleId"`
	SDP         string `json:"sdp"`
}

type KeepAlivePayload struct {
	SessionID int64 `json:"sessionId"`
}

type SendMessagePayload struct {
	RoomGUID string `json:"roomGuid"`
	Message  string `json:"message"`
}

type SendReactionPayload struct {
	RoomGUID   string `json:"roomGuid"`
	ReactionID int    `json:"reactionId"`
}

type DisplayServicePayload struct {
	ServiceID string `json:"serviceId"`
	RoomGUID  string `json:"roomGuid"`
	IsDisplay bool   `json:"isDisplay"`
}

type SetPromotionPayload struct {
	ServiceID       string  `json:"serviceId"`
	RoomGUID        string  `json:"roomGuid"`
	DiscountPercent float64 `json:"discountPercent"`
}

// RoomCreatedData answers HostCreateRoom.
type RoomCreatedData struct {
	RoomGUID    string `json:"roomGuid"`
	JanusRoomID int64  `json:"janusRoomId"`
	SessionID   int64  `json:"sessionId"`
	HandleID    int64  `json:"handleId"`
}

// JoinRoomData answers JoinAsListener with the subscriber offer.
type JoinRoomData struct {
	JSEP      *JSEP `json:"jsep"`
	RoomID    int64 `json:"roomId"`
	SessionID int64 `json:"sessionId"`
	HandleID  int64 `json:"handleId"`
}

type PublishStartedData struct {
	SessionID int64 `json:"sessionId"`
	JSEP      *JSEP `json:"jsep"`
}

type ErrorData struct {
	Message string `json:"message"`
}

type ListenerCountData struct {
	RoomGUID string `json:"roomGuid"`
	Count    int    `json:"count"`
}

type ChatMessageData struct {
	UserID    string `json:"userId"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"createdAt"`
}

type ReactionData struct {
	UserID     string `json:"userId"`
	ReactionID int    `json:"reactionId"`
	CreatedAt  int64  `json:"createdAt"`
}

// ServiceDisplayData is the DisplayService broadcast. Service is nil when hiding.
type ServiceDisplayData struct {
	ServiceID string           `json:"id"`
	IsDisplay bool             `json:"isDisplay"`
	Service   *ServiceCardData `json:"service,omitempty"`
}

type ServiceCardData struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Images          []string  `json:"images"`
	MinPrice        float64   `json:"minPrice"`
	MaxPrice        float64   `json:"maxPrice"`
	Category        *Category `json:"category,omitempty"`
	DiscountPercent float64   `json:"discountPercent"`
}

type PromotionData struct {
	ServiceID           string  `json:"id"`
	DiscountLivePercent float64 `json:"discountLivePercent"`
	CreatedAt           int64   `json:"createdAt"`
}

// LivestreamEndedData goes to the host audience. Listeners receive the bare event.
type LivestreamEndedData struct {
	RoomGUID   string            `json:"roomGuid"`
	Settlement *LiveStreamDetail `json:"settlement"`
}
