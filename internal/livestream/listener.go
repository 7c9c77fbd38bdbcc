package livestream

import (
	"context"
	"errors"

	"livesignal/backend/internal/analytics"
	"livesignal/backend/internal/config"
	"livesignal/backend/internal/janus"
	"livesignal/backend/internal/livehub"
	"livesignal/backend/internal/models"

	"go.uber.org/zap"
)

// JoinAsListener subscribes c to the room's publisher. The listener is added to the
// room only after the gateway accepted the subscription. A connection watches a room
// at most once.
func (s *Service) JoinAsListener(ctx context.Context, c livehub.Client, guid string) error {
	room, ok := s.rooms.Get(guid)
	if !ok {
		return ErrRoomNotFound
	}

	if s.rooms.IsListener(guid, c.ID()) {
		return invalid("already watching this room")
	}

	viewer := c.UserID()
	if viewer == "" {
		viewer = c.ID()
	}
	if err := s.activity.Record(guid, viewer, analytics.Join, ""); errors.Is(err, analytics.ErrRoomClosed) {
		return ErrRoomNotFound
	}

	sessionID, err := s.gateway.CreateSession(ctx)
	if err != nil {
		return err
	}
	jsep, handleID, err := s.subscribe(ctx, sessionID, room.JanusRoomID)
	if err != nil {
		s.destroySession(sessionID)
		return err
	}

	// audience first: EndLivestream removes the room before it drops the group
	s.hub.Join(livehub.ListenerGroup(guid), c)
	count, ok := s.rooms.AddListener(guid, c.ID())
	if !ok {
		// ended while we were negotiating
		s.hub.Leave(livehub.ListenerGroup(guid), c.ID())
		s.destroySession(sessionID)
		return ErrRoomNotFound
	}

	c.Send(models.Event{
		Name: models.EventJoinRoomResponse,
		Data: models.JoinRoomData{
			JSEP:      jsep,
			RoomID:    room.JanusRoomID,
			SessionID: sessionID,
			HandleID:  handleID,
		},
	})
	s.broadcastViewerCount(guid, count)
	return nil
}

// subscribe attaches a handle on sessionID and joins it to the room's publisher feed.
func (s *Service) subscribe(ctx context.Context, sessionID, janusRoomID int64) (*models.JSEP, int64, error) {
	handleID, err := s.gateway.AttachPlugin(ctx, sessionID, config.VideoRoomPlugin)
	if err != nil {
		return nil, 0, err
	}

	resp, err := s.gateway.Message(ctx, sessionID, handleID, janus.ListParticipants{Room: janusRoomID}, nil)
	if err != nil {
		return nil, 0, err
	}
	vr, err := resp.VideoRoom()
	if err != nil {
		return nil, 0, err
	}
	publisher, ok := vr.Publisher()
	if !ok {
		return nil, 0, ErrNoPublisher
	}

	resp, err = s.gateway.Message(ctx, sessionID, handleID, janus.JoinSubscriber{
		Room:    janusRoomID,
		Streams: []janus.Stream{{Feed: publisher.ID}},
	}, nil)
	if err != nil {
		return nil, 0, err
	}
	return resp.Jsep, handleID, nil
}

// StartPublish relays the host's offer to the gateway and returns its answer.
func (s *Service) StartPublish(ctx context.Context, c livehub.Client, guid string, offer models.JSEP) error {
	room, ok := s.rooms.Get(guid)
	if !ok {
		return ErrRoomNotFound
	}
	if offer.SDP == "" {
		return invalid("empty offer")
	}
	if offer.Type == "" {
		offer.Type = "offer"
	}

	resp, err := s.gateway.Message(ctx, room.SessionID, room.HandleID, janus.Publish{Audio: true, Video: true}, &offer)
	if err != nil {
		return err
	}
	c.Send(models.Event{
		Name: models.EventPublishStarted,
		Data: models.PublishStartedData{SessionID: room.SessionID, JSEP: resp.Jsep},
	})
	return nil
}

// SendAnswer relays a listener's answer to complete its subscription.
func (s *Service) SendAnswer(ctx context.Context, c livehub.Client, p models.SendAnswerPayload) error {
	if p.SessionID == 0 || p.HandleID == 0 || p.SDP == "" {
		return invalid("session, handle and sdp are required")
	}
	answer := &models.JSEP{Type: "answer", SDP: p.SDP}
	if _, err := s.gateway.Message(ctx, p.SessionID, p.HandleID, janus.Start{Room: p.JanusRoomID}, answer); err != nil {
		return err
	}
	c.Send(models.Event{Name: models.EventAnswerAccepted})
	return nil
}

// KeepAlive refreshes a gateway session. Failures are logged only.
func (s *Service) KeepAlive(ctx context.Context, sessionID int64) {
	if sessionID == 0 {
		return
	}
	if err := s.gateway.KeepAlive(ctx, sessionID); err != nil {
		s.log.Warn("keepalive failed", zap.Int64("session_id", sessionID), zap.Error(err))
	}
}
