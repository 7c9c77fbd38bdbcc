package livestream_test

import (
	"time"

	"livesignal/backend/internal/models"

	"github.com/stretchr/testify/mock"
)

type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) GetClinicByID(clinicID string) (*models.Clinic, error) {
	args := m.Called(clinicID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Clinic), args.Error(1)
}

func (m *MockStorage) GetStaffRole(userID, clinicID string) (string, error) {
	args := m.Called(userID, clinicID)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) DecrementLivestreamQuota(clinicID string) error {
	args := m.Called(clinicID)
	return args.Error(0)
}

func (m *MockStorage) AddLivestreamQuota(clinicID string, n int) (int, error) {
	args := m.Called(clinicID, n)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) CreateLivestreamRoom(room *models.LivestreamRoom) error {
	args := m.Called(room)
	return args.Error(0)
}

func (m *MockStorage) EndLivestreamRoom(roomID string, endedAt time.Time, totalViewers int) error {
	args := m.Called(roomID, endedAt, totalViewers)
	return args.Error(0)
}

func (m *MockStorage) GetServiceByID(serviceID string) (*models.Service, error) {
	args := m.Called(serviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

func (m *MockStorage) GetActivePromotion(serviceID, roomID string) (*models.Promotion, error) {
	args := m.Called(serviceID, roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Promotion), args.Error(1)
}

func (m *MockStorage) ReplaceActivePromotion(p *models.Promotion) error {
	args := m.Called(p)
	return args.Error(0)
}

func (m *MockStorage) DeactivateRoomPromotions(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *MockStorage) CountCompletedBookings(roomID string) (int, error) {
	args := m.Called(roomID)
	return args.Int(0), args.Error(1)
}

func (m *MockStorage) SaveLivestreamDetail(d *models.LiveStreamDetail) error {
	args := m.Called(d)
	return args.Error(0)
}

func (m *MockStorage) GetLivestreamDetail(roomID string) (*models.LiveStreamDetail, error) {
	args := m.Called(roomID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LiveStreamDetail), args.Error(1)
}

func (m *MockStorage) AppendActivityLogs(rows []models.LiveStreamLog) error {
	args := m.Called(rows)
	return args.Error(0)
}

func (m *MockStorage) ListActivityLogs(roomID string, offset, limit int) ([]models.LiveStreamLog, int64, error) {
	args := m.Called(roomID, offset, limit)
	return args.Get(0).([]models.LiveStreamLog), args.Get(1).(int64), args.Error(2)
}

func (m *MockStorage) PublishRoomEvent(group string, payload []byte) error {
	args := m.Called(group, payload)
	return args.Error(0)
}

func (m *MockStorage) SetRoomLive(roomID string, janusRoomID int64) error {
	args := m.Called(roomID, janusRoomID)
	return args.Error(0)
}

func (m *MockStorage) SetViewerCount(roomID string, count int) error {
	args := m.Called(roomID, count)
	return args.Error(0)
}

func (m *MockStorage) ClearRoomLive(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *MockStorage) LiveRooms() (map[string]string, error) {
	args := m.Called()
	return args.Get(0).(map[string]string), args.Error(1)
}
