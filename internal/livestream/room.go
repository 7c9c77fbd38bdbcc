package livestream

import (
	"context"
	"errors"
	"fmt"

	"livesignal/backend/internal/analytics"
	"livesignal/backend/internal/config"
	"livesignal/backend/internal/janus"
	"livesignal/backend/internal/livehub"
	"livesignal/backend/internal/models"
	"livesignal/backend/internal/registry"
	"livesignal/backend/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateRoom opens a livestream for the clinic admin behind c. Quota and role are
// checked before the gateway is touched; the room is registered only after the
// gateway created it and accepted the host as publisher.
func (s *Service) CreateRoom(ctx context.Context, c livehub.Client, meta models.HostCreateRoomPayload) error {
	userID, clinicID := c.UserID(), c.ClinicID()
	if userID == "" || clinicID == "" {
		return abort(ErrMissingIdentity)
	}

	clinic, err := s.store.GetClinicByID(clinicID)
	if errors.Is(err, storage.ErrNotFound) {
		return abort(fmt.Errorf("%w: clinic not found", ErrUnauthorized))
	}
	if err != nil {
		return fmt.Errorf("load clinic: %w", err)
	}
	if clinic.AdditionLivestreams <= 0 {
		return abort(ErrQuotaExceeded)
	}

	role, err := s.store.GetStaffRole(userID, clinicID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load staff role: %w", err)
	}
	if role != config.ClinicAdminRole {
		return abort(ErrUnauthorized)
	}

	guid := uuid.NewString()
	log := s.log.With(zap.String("room_guid", guid), zap.String("conn_id", c.ID()))

	sessionID, err := s.gateway.CreateSession(ctx)
	if err != nil {
		return err
	}
	handleID, err := s.gateway.AttachPlugin(ctx, sessionID, config.VideoRoomPlugin)
	if err != nil {
		s.destroySession(sessionID)
		return err
	}

	janusRoomID := s.newRoomID()
	_, err = s.gateway.Message(ctx, sessionID, handleID, janus.CreateRoom{
		Room:        janusRoomID,
		Description: meta.Name,
		Publishers:  1,
	}, nil)
	if err != nil {
		s.destroySession(sessionID)
		return err
	}

	_, err = s.gateway.Message(ctx, sessionID, handleID, janus.JoinPublisher{
		Room:    janusRoomID,
		Display: config.HostDisplayName,
	}, nil)
	if err != nil {
		s.destroyGatewayRoom(sessionID, handleID, janusRoomID)
		s.destroySession(sessionID)
		return err
	}

	now := s.now()
	err = s.rooms.Add(registry.Room{
		GUID:        guid,
		SessionID:   sessionID,
		HandleID:    handleID,
		JanusRoomID: janusRoomID,
		HostConnID:  c.ID(),
		CreatedAt:   now,
	})
	if err != nil {
		// a fresh uuid collided with a live room
		s.destroyGatewayRoom(sessionID, handleID, janusRoomID)
		s.destroySession(sessionID)
		return ErrRoomLive
	}
	s.activity.Open(guid)
	s.hub.Join(livehub.HostGroup(guid), c)

	record := &models.LivestreamRoom{
		ID:          guid,
		Name:        meta.Name,
		Description: meta.Description,
		Image:       meta.Image,
		Status:      models.RoomStatusLive,
		Type:        config.LivestreamType,
		Date:        now,
		StartedAt:   now,
		ClinicID:    clinicID,
		EventID:     meta.EventID,
	}
	if err := s.store.CreateLivestreamRoom(record); err != nil {
		log.Error("failed to persist livestream room", zap.Error(err))
	}
	if err := s.store.DecrementLivestreamQuota(clinicID); err != nil {
		log.Error("failed to decrement livestream quota", zap.String("clinic_id", clinicID), zap.Error(err))
	}
	if err := s.store.SetRoomLive(guid, janusRoomID); err != nil {
		log.Warn("failed to set live marker", zap.Error(err))
	}

	log.Info("livestream started", zap.Int64("janus_room", janusRoomID), zap.Int64("session_id", sessionID))
	c.Send(models.Event{
		Name: models.EventRoomCreatedAndJoined,
		Data: models.RoomCreatedData{
			RoomGUID:    guid,
			JanusRoomID: janusRoomID,
			SessionID:   sessionID,
			HandleID:    handleID,
		},
	})
	return nil
}

// EndLivestream tears the room down at the gateway and, only if that worked,
// removes it locally, settles its analytics and notifies both audiences.
func (s *Service) EndLivestream(ctx context.Context, c livehub.Client, guid string) error {
	room, ok := s.rooms.Get(guid)
	if !ok {
		return ErrRoomNotFound
	}
	if !s.rooms.IsHost(guid, c.ID()) {
		return ErrUnauthorized
	}

	if _, err := s.gateway.Message(ctx, room.SessionID, room.HandleID, janus.DestroyRoom{Room: room.JanusRoomID}, nil); err != nil {
		return err
	}

	_, listeners, ok := s.rooms.Remove(guid)
	if !ok {
		return ErrRoomNotFound
	}
	log := s.log.With(zap.String("room_guid", guid))

	counts, err := s.activity.Reduce(guid)
	if err != nil {
		log.Error("activity log already reduced", zap.Error(err))
	}
	bookings, err := s.store.CountCompletedBookings(guid)
	if err != nil {
		log.Error("failed to count completed bookings", zap.Error(err))
	}
	detail := analytics.Settle(guid, counts, bookings)

	s.hub.Send(livehub.HostGroup(guid), models.Event{
		Name: models.EventLivestreamEnded,
		Data: models.LivestreamEndedData{RoomGUID: guid, Settlement: detail},
	})
	s.hub.Send(livehub.ListenerGroup(guid), models.Event{Name: models.EventLivestreamEnded})
	s.hub.Drop(livehub.HostGroup(guid))
	s.hub.Drop(livehub.ListenerGroup(guid))

	// each write stands alone; the room is already gone at the gateway
	if err := s.store.EndLivestreamRoom(guid, s.now(), counts.Join); err != nil {
		log.Error("failed to mark livestream room ended", zap.Error(err))
	}
	if err := s.store.DeactivateRoomPromotions(guid); err != nil {
		log.Error("failed to deactivate room promotions", zap.Error(err))
	}
	if err := s.store.SaveLivestreamDetail(detail); err != nil {
		log.Error("failed to save livestream settlement", zap.Error(err))
	}
	if err := s.store.ClearRoomLive(guid); err != nil {
		log.Warn("failed to clear live marker", zap.Error(err))
	}
	s.destroySession(room.SessionID)

	log.Info("livestream ended",
		zap.Int("listeners", len(listeners)),
		zap.Int("joins", detail.JoinCount),
		zap.Int("messages", detail.MessageCount),
		zap.Int("reactions", detail.ReactionCount),
		zap.Int("bookings", detail.TotalBooking))
	return nil
}

func (s *Service) destroyGatewayRoom(sessionID, handleID, janusRoomID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.CleanupTimeout)
	defer cancel()
	if _, err := s.gateway.Message(ctx, sessionID, handleID, janus.DestroyRoom{Room: janusRoomID}, nil); err != nil {
		s.log.Warn("failed to destroy gateway room", zap.Int64("janus_room", janusRoomID), zap.Error(err))
	}
}
