package storage

import (
	"context"
	"errors"
	"strconv"
	"time"

	"livesignal/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a looked up record does not exist.
	ErrNotFound = errors.New("storage: record not found")
	// ErrQuotaExhausted is returned when a clinic has no livestreams left.
	ErrQuotaExhausted = errors.New("storage: livestream quota exhausted")
)

// Redis keys.
const (
	liveRoomsKey    = "livestream:live"
	viewerCountKey  = "livestream:viewers"
	roomEventPrefix = "livestream:"
)

type Storage interface {
	GetClinicByID(clinicID string) (*models.Clinic, error)
	GetStaffRole(userID, clinicID string) (string, error)
	DecrementLivestreamQuota(clinicID string) error
	AddLivestreamQuota(clinicID string, n int) (int, error)

	CreateLivestreamRoom(room *models.LivestreamRoom) error
	EndLivestreamRoom(roomID string, endedAt time.Time, totalViewers int) error

	GetServiceByID(serviceID string) (*models.Service, error)
	GetActivePromotion(serviceID, roomID string) (*models.Promotion, error)
	ReplaceActivePromotion(p *models.Promotion) error
	DeactivateRoomPromotions(roomID string) error

	CountCompletedBookings(roomID string) (int, error)
	SaveLivestreamDetail(d *models.LiveStreamDetail) error
	GetLivestreamDetail(roomID string) (*models.LiveStreamDetail, error)

	AppendActivityLogs(rows []models.LiveStreamLog) error
	ListActivityLogs(roomID string, offset, limit int) ([]models.LiveStreamLog, int64, error)

	PublishRoomEvent(group string, payload []byte) error
	SetRoomLive(roomID string, janusRoomID int64) error
	SetViewerCount(roomID string, count int) error
	ClearRoomLive(roomID string) error
	LiveRooms() (map[string]string, error)
}

// Service implements Storage on PostgreSQL (gorm) with Redis for live state.
// Redis is optional; without it the live markers and the event mirror are no-ops.
type Service struct {
	DB    *gorm.DB
	Redis *redis.Client
	Ctx   context.Context
}

// NewStorageService Constructor
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:    db,
		Redis: rdb,
		Ctx:   context.Background(),
	}
}

// PublishRoomEvent mirrors a room event to the Redis channel livestream:<group>.
func (s *Service) PublishRoomEvent(group string, payload []byte) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.Publish(s.Ctx, roomEventPrefix+group, payload).Err()
}

// SubscribeRoomEvents listens to every mirrored room event.
func (s *Service) SubscribeRoomEvents() *redis.PubSub {
	return s.Redis.PSubscribe(s.Ctx, roomEventPrefix+"*")
}

// SetRoomLive marks the room as live, keyed by GUID with the gateway room id as value.
func (s *Service) SetRoomLive(roomID string, janusRoomID int64) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.HSet(s.Ctx, liveRoomsKey, roomID, strconv.FormatInt(janusRoomID, 10)).Err()
}

func (s *Service) SetViewerCount(roomID string, count int) error {
	if s.Redis == nil {
		return nil
	}
	return s.Redis.HSet(s.Ctx, viewerCountKey, roomID, count).Err()
}

func (s *Service) ClearRoomLive(roomID string) error {
	if s.Redis == nil {
		return nil
	}
	pipe := s.Redis.TxPipeline()
	pipe.HDel(s.Ctx, liveRoomsKey, roomID)
	pipe.HDel(s.Ctx, viewerCountKey, roomID)
	_, err := pipe.Exec(s.Ctx)
	return err
}

// LiveRooms returns room GUID -> gateway room id for every live marker.
func (s *Service) LiveRooms() (map[string]string, error) {
	if s.Redis == nil {
		return map[string]string{}, nil
	}
	rooms, err := s.Redis.HGetAll(s.Ctx, liveRoomsKey).Result()
	if errors.Is(err, redis.Nil) {
		return map[string]string{}, nil
	}
	return rooms, err
}
