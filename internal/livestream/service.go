// Package livestream drives the lifecycle of livestream rooms: it validates hosts
// against clinic data, talks to the media gateway, keeps the room registry and the
// broadcast audiences in step and settles analytics when a stream ends.
package livestream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"livesignal/backend/internal/analytics"
	"livesignal/backend/internal/config"
	"livesignal/backend/internal/janus"
	"livesignal/backend/internal/livehub"
	"livesignal/backend/internal/models"
	"livesignal/backend/internal/registry"
	"livesignal/backend/internal/storage"

	"go.uber.org/zap"
)

// Gateway is the part of the media gateway client the orchestrator needs.
type Gateway interface {
	CreateSession(ctx context.Context) (int64, error)
	AttachPlugin(ctx context.Context, sessionID int64, plugin string) (int64, error)
	Message(ctx context.Context, sessionID, handleID int64, body janus.PluginBody, jsep *models.JSEP) (*janus.Response, error)
	KeepAlive(ctx context.Context, sessionID int64) error
	DestroySession(ctx context.Context, sessionID int64) error
}

type Options struct {
	// ViewerBoost is added to the viewer count shown to listeners.
	ViewerBoost int
	// CleanupTimeout bounds best-effort gateway cleanup after a failure.
	CleanupTimeout time.Duration
}

// Service is the room session orchestrator. It implements livehub.Dispatcher.
type Service struct {
	gateway  Gateway
	rooms    *registry.Registry
	hub      *livehub.Manager
	activity *analytics.Aggregator
	store    storage.Storage
	opts     Options
	log      *zap.Logger

	newRoomID func() int64
	now       func() time.Time
}

func NewService(gw Gateway, rooms *registry.Registry, hub *livehub.Manager, activity *analytics.Aggregator, store storage.Storage, opts Options, log *zap.Logger) *Service {
	if opts.ViewerBoost < 0 {
		opts.ViewerBoost = 0
	}
	if opts.CleanupTimeout <= 0 {
		opts.CleanupTimeout = config.DefaultGatewayWait
	}
	return &Service{
		gateway:   gw,
		rooms:     rooms,
		hub:       hub,
		activity:  activity,
		store:     store,
		opts:      opts,
		log:       log.Named("livestream"),
		newRoomID: randomRoomID,
		now:       time.Now,
	}
}

// randomRoomID draws a gateway room id. Collisions are not checked against the gateway;
// a taken id makes the create step fail and the host retries.
func randomRoomID() int64 {
	return config.JanusRoomIDMin + rand.Int64N(config.JanusRoomIDMax-config.JanusRoomIDMin+1)
}

// Dispatch runs one inbound operation for c. Operations of one connection run in order.
func (s *Service) Dispatch(c livehub.Client, req models.ClientRequest) {
	log := s.log.With(zap.String("conn_id", c.ID()), zap.String("method", req.Method))
	defer func() {
		if r := recover(); r != nil {
			log.Error("operation panicked", zap.Any("panic", r), zap.Stack("stack"))
			c.Send(models.Event{Name: models.EventJanusError, Data: models.ErrorData{Message: "Internal server error"}})
		}
	}()

	ctx := context.Background()
	var err error
	switch req.Method {
	case models.MethodHostCreateRoom:
		var p models.HostCreateRoomPayload
		if err = decode(req.Payload, &p); err == nil {
			err = s.CreateRoom(ctx, c, p)
		}
	case models.MethodJoinAsListener:
		var p models.RoomPayload
		if err = decode(req.Payload, &p); err == nil {
			err = s.JoinAsListener(ctx, c, p.RoomGUID)
		}
	case models.MethodStartPublish:
		var p models.StartPublishPayload
		if err = decode(req.Payload, &p); err == nil {
			err = s.StartPublish(ctx, c, p.RoomGUID, p.JSEP)
		}
	case models.MethodSendAnswerToJanus:
		var p models.SendAnswerPayload
		if err = decode(req.Payload, &p); err == nil {
			err = s.SendAnswer(ctx, c, p)
		}
	case models.MethodKeepAlive:
		var p models.KeepAlivePayload
		if err = decode(req.Payload, &p); err == nil {
			s.KeepAlive(ctx, p.SessionID)
		}
	case models.MethodSendMessage:
		var p models.SendMessagePayload
		if err = decode(req.Payload, &p); err == nil {
			err = s.SendMessage(c, p.RoomGUID, p.Message)
		}
	case models.MethodSendReaction:
		var p models.SendReactionPayload
		if err = decode(req.Payload, &p); err == nil {
			err = s.SendReaction(c, p.RoomGUID, p.ReactionID)
		}
	case models.MethodDisplayService:
		var p models.DisplayServicePayload
		if err = decode(req.Payload, &p); err == nil {
			err = s.DisplayService(c, p.ServiceID, p.RoomGUID, p.IsDisplay)
		}
	case models.MethodSetPromotionService:
		var p models.SetPromotionPayload
		if err = decode(req.Payload, &p); err == nil {
			err = s.SetPromotionService(c, p.ServiceID, p.RoomGUID, p.DiscountPercent)
		}
	case models.MethodEndLivestream:
		var p models.RoomPayload
		if err = decode(req.Payload, &p); err == nil {
			err = s.EndLivestream(ctx, c, p.RoomGUID)
		}
	default:
		err = invalid("unknown method %q", req.Method)
	}

	if err != nil {
		s.reportError(log, c, err)
	}
}

// reportError answers the caller with a typed error event and closes the connection
// for failures that abort it.
func (s *Service) reportError(log *zap.Logger, c livehub.Client, err error) {
	var (
		perr *janus.ProtocolError
		ab   *abortError
	)
	ev := models.Event{Name: models.EventSystemError, Data: models.ErrorData{Message: err.Error()}}

	switch {
	case errors.As(err, &perr):
		ev = models.Event{Name: models.EventJanusError, Data: models.ErrorData{Message: perr.Reason}}
		log.Warn("gateway rejected operation", zap.Int("code", perr.Code), zap.String("reason", perr.Reason))
	case errors.Is(err, janus.ErrGatewayTimeout), errors.Is(err, janus.ErrGatewayUnreachable), errors.Is(err, ErrNoPublisher):
		ev = models.Event{Name: models.EventJanusError, Data: models.ErrorData{Message: err.Error()}}
		log.Warn("gateway operation failed", zap.Error(err))
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrRoomLive), errors.Is(err, ErrServiceNotFound),
		errors.Is(err, ErrUnauthorized), errors.Is(err, ErrQuotaExceeded), errors.Is(err, ErrMissingIdentity),
		errors.Is(err, ErrInvalidRequest):
		log.Info("operation rejected", zap.Error(err))
	default:
		ev = models.Event{Name: models.EventJanusError, Data: models.ErrorData{Message: "Internal server error"}}
		log.Error("operation failed", zap.Error(err))
	}

	c.Send(ev)
	if errors.As(err, &ab) {
		c.Close()
	}
}

// Disconnect cleans up after a dropped connection. A host leaving does not end the room.
func (s *Service) Disconnect(c livehub.Client) {
	d := s.rooms.RemoveConnection(c.ID())
	s.hub.LeaveAll(c.ID())

	for guid, count := range d.Listened {
		s.broadcastViewerCount(guid, count)
	}
	for _, guid := range d.Hosted {
		s.log.Warn("host disconnected without ending the livestream, room stays live",
			zap.String("room_guid", guid), zap.String("conn_id", c.ID()))
	}
}

// broadcastViewerCount sends the real count to the host and the boosted count to listeners.
func (s *Service) broadcastViewerCount(guid string, real int) {
	if real < 0 {
		real = 0
	}
	s.hub.Send(livehub.HostGroup(guid), models.Event{
		Name: models.EventListenerCountUpdated,
		Data: models.ListenerCountData{RoomGUID: guid, Count: real},
	})
	s.hub.Send(livehub.ListenerGroup(guid), models.Event{
		Name: models.EventListenerCountUpdated,
		Data: models.ListenerCountData{RoomGUID: guid, Count: real + s.opts.ViewerBoost},
	})
	if err := s.store.SetViewerCount(guid, real); err != nil {
		s.log.Debug("failed to cache viewer count", zap.String("room_guid", guid), zap.Error(err))
	}
}

// broadcast sends ev to both audiences of a room.
func (s *Service) broadcast(guid string, ev models.Event) {
	s.hub.Send(livehub.HostGroup(guid), ev)
	s.hub.Send(livehub.ListenerGroup(guid), ev)
}

// destroySession releases a gateway session after a failure. Errors are only logged.
func (s *Service) destroySession(sessionID int64) {
	if sessionID == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CleanupTimeout)
	defer cancel()
	if err := s.gateway.DestroySession(ctx, sessionID); err != nil {
		s.log.Warn("failed to destroy gateway session", zap.Int64("session_id", sessionID), zap.Error(err))
	}
}

func decode(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}
