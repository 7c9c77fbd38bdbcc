package livestream

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"livesignal/backend/internal/analytics"
	"livesignal/backend/internal/livehub"
	"livesignal/backend/internal/models"
	"livesignal/backend/internal/storage"

	"go.uber.org/zap"
)

// SendMessage records a chat message and relays it to both audiences.
func (s *Service) SendMessage(c livehub.Client, guid, text string) error {
	if c.UserID() == "" {
		return abort(ErrMissingIdentity)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return invalid("empty message")
	}
	if err := s.record(guid, c.UserID(), analytics.Message, text); err != nil {
		return err
	}

	s.broadcast(guid, models.Event{
		Name: models.EventReceiveMessage,
		Data: models.ChatMessageData{
			UserID:    c.UserID(),
			Message:   text,
			CreatedAt: s.now().UnixMilli(),
		},
	})
	return nil
}

// SendReaction records a reaction and relays it to both audiences.
func (s *Service) SendReaction(c livehub.Client, guid string, reactionID int) error {
	if c.UserID() == "" {
		return abort(ErrMissingIdentity)
	}
	if !analytics.ValidReaction(reactionID) {
		return invalid("unknown reaction %d", reactionID)
	}
	if err := s.record(guid, c.UserID(), analytics.Reaction, strconv.Itoa(reactionID)); err != nil {
		return err
	}

	s.broadcast(guid, models.Event{
		Name: models.EventReceiveReaction,
		Data: models.ReactionData{
			UserID:     c.UserID(),
			ReactionID: reactionID,
			CreatedAt:  s.now().UnixMilli(),
		},
	})
	return nil
}

// DisplayService shows a service card, with its live discount, to the room or hides it.
func (s *Service) DisplayService(c livehub.Client, serviceID, guid string, display bool) error {
	if c.UserID() == "" {
		return abort(ErrMissingIdentity)
	}
	if _, ok := s.rooms.Get(guid); !ok {
		return ErrRoomNotFound
	}
	svc, err := s.loadService(serviceID)
	if err != nil {
		return err
	}

	data := models.ServiceDisplayData{ServiceID: svc.ID, IsDisplay: display}
	if display {
		card := &models.ServiceCardData{
			ID:          svc.ID,
			Name:        svc.Name,
			Description: svc.Description,
			Images:      make([]string, 0, len(svc.Medias)),
			MinPrice:    svc.MinPrice,
			MaxPrice:    svc.MaxPrice,
			Category:    svc.Category,
		}
		for _, m := range svc.Medias {
			card.Images = append(card.Images, m.ImageURL)
		}
		promo, err := s.store.GetActivePromotion(svc.ID, guid)
		if err != nil {
			s.log.Warn("failed to load live promotion", zap.String("room_guid", guid), zap.String("service_id", svc.ID), zap.Error(err))
		} else if promo != nil {
			card.DiscountPercent = promo.DiscountPercent
		}
		data.Service = card
	}

	s.broadcast(guid, models.Event{Name: models.EventDisplayService, Data: data})
	return nil
}

// SetPromotionService replaces the live discount of a service in the room.
func (s *Service) SetPromotionService(c livehub.Client, serviceID, guid string, percent float64) error {
	if c.UserID() == "" {
		return abort(ErrMissingIdentity)
	}
	if percent <= 0 || percent > 100 {
		return invalid("discount percent must be in (0, 100]")
	}
	if _, ok := s.rooms.Get(guid); !ok {
		return ErrRoomNotFound
	}
	svc, err := s.loadService(serviceID)
	if err != nil {
		return err
	}

	now := s.now()
	promo := &models.Promotion{
		Name:             fmt.Sprintf("LiveStream-%s", now.UTC().Format("2006-01-02T15:04:05Z")),
		StartDate:        now,
		DiscountPercent:  percent,
		ServiceID:        svc.ID,
		LivestreamRoomID: guid,
	}
	if err := s.store.ReplaceActivePromotion(promo); err != nil {
		return fmt.Errorf("replace promotion: %w", err)
	}

	s.broadcast(guid, models.Event{
		Name: models.EventUpdateServicePromotion,
		Data: models.PromotionData{
			ServiceID:           svc.ID,
			DiscountLivePercent: percent,
			CreatedAt:           now.UnixMilli(),
		},
	})
	return nil
}

// record logs an activity for a live room.
func (s *Service) record(guid, userID string, typ analytics.ActivityType, payload string) error {
	if _, ok := s.rooms.Get(guid); !ok {
		return ErrRoomNotFound
	}
	if err := s.activity.Record(guid, userID, typ, payload); err != nil {
		return ErrRoomNotFound
	}
	return nil
}

func (s *Service) loadService(serviceID string) (*models.Service, error) {
	svc, err := s.store.GetServiceByID(serviceID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load service: %w", err)
	}
	return svc, nil
}
