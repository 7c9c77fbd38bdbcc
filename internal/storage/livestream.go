package storage

import (
	"errors"
	"time"

	"livesignal/backend/internal/config"
	"livesignal/backend/internal/models"

	"gorm.io/gorm"
)

func (s *Service) GetClinicByID(clinicID string) (*models.Clinic, error) {
	var clinic models.Clinic
	err := s.DB.Where("id = ?", clinicID).First(&clinic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &clinic, nil
}

// GetStaffRole returns the role name of a staff user linked to the clinic.
func (s *Service) GetStaffRole(userID, clinicID string) (string, error) {
	var names []string
	err := s.DB.Table("user_clinics").
		Joins("JOIN users ON users.id = user_clinics.user_id").
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("user_clinics.user_id = ? AND user_clinics.clinic_id = ? AND user_clinics.is_deleted = ?", userID, clinicID, false).
		Limit(1).
		Pluck("roles.name", &names).Error
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", ErrNotFound
	}
	return names[0], nil
}

// DecrementLivestreamQuota takes one livestream off the clinic quota. The guard in the
// WHERE clause keeps the counter from going negative under concurrent starts.
func (s *Service) DecrementLivestreamQuota(clinicID string) error {
	res := s.DB.Model(&models.Clinic{}).
		Where("id = ? AND addition_livestreams > 0", clinicID).
		Update("addition_livestreams", gorm.Expr("addition_livestreams - 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrQuotaExhausted
	}
	return nil
}

// AddLivestreamQuota tops the clinic quota up by n and returns the new value.
func (s *Service) AddLivestreamQuota(clinicID string, n int) (int, error) {
	var clinic models.Clinic
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Clinic{}).
			Where("id = ?", clinicID).
			Update("addition_livestreams", gorm.Expr("addition_livestreams + ?", n))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where("id = ?", clinicID).First(&clinic).Error
	})
	if err != nil {
		return 0, err
	}
	return clinic.AdditionLivestreams, nil
}

func (s *Service) CreateLivestreamRoom(room *models.LivestreamRoom) error {
	return s.DB.Create(room).Error
}

// EndLivestreamRoom marks the room unlive and stores its end time, duration and audience.
func (s *Service) EndLivestreamRoom(roomID string, endedAt time.Time, totalViewers int) error {
	var room models.LivestreamRoom
	err := s.DB.Where("id = ?", roomID).First(&room).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	duration := 0
	if !room.StartedAt.IsZero() && endedAt.After(room.StartedAt) {
		duration = int(endedAt.Sub(room.StartedAt).Minutes())
	}
	return s.DB.Model(&room).Updates(map[string]interface{}{
		"status":        models.RoomStatusUnlive,
		"ended_at":      endedAt,
		"duration":      duration,
		"total_viewers": totalViewers,
	}).Error
}

// GetServiceByID loads a service with its category and ordered images.
func (s *Service) GetServiceByID(serviceID string) (*models.Service, error) {
	var svc models.Service
	err := s.DB.
		Preload("Category").
		Preload("Medias", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("id = ?", serviceID).
		First(&svc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// GetActivePromotion returns nil without error when the service has no live discount in the room.
func (s *Service) GetActivePromotion(serviceID, roomID string) (*models.Promotion, error) {
	var p models.Promotion
	err := s.DB.
		Where("service_id = ? AND livestream_room_id = ? AND is_activated = ?", serviceID, roomID, true).
		Order("created_at desc").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ReplaceActivePromotion deactivates the current promotion of (service, room), if any,
// and stores p as the active one, in a single transaction.
func (s *Service) ReplaceActivePromotion(p *models.Promotion) error {
	now := time.Now()
	return s.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Promotion{}).
			Where("service_id = ? AND livestream_room_id = ? AND is_activated = ?", p.ServiceID, p.LivestreamRoomID, true).
			Updates(map[string]interface{}{"is_activated": false, "end_date": now}).Error
		if err != nil {
			return err
		}
		p.IsActivated = true
		if p.StartDate.IsZero() {
			p.StartDate = now
		}
		return tx.Create(p).Error
	})
}

// DeactivateRoomPromotions closes every promotion still active in the room.
func (s *Service) DeactivateRoomPromotions(roomID string) error {
	return s.DB.Model(&models.Promotion{}).
		Where("livestream_room_id = ? AND is_activated = ?", roomID, true).
		Updates(map[string]interface{}{"is_activated": false, "end_date": time.Now()}).Error
}

func (s *Service) CountCompletedBookings(roomID string) (int, error) {
	var n int64
	err := s.DB.Model(&models.Order{}).
		Where("livestream_room_id = ? AND status = ?", roomID, config.OrderStatusCompleted).
		Count(&n).Error
	return int(n), err
}

func (s *Service) SaveLivestreamDetail(d *models.LiveStreamDetail) error {
	return s.DB.Create(d).Error
}

func (s *Service) GetLivestreamDetail(roomID string) (*models.LiveStreamDetail, error) {
	var d models.LiveStreamDetail
	err := s.DB.Where("livestream_room_id = ?", roomID).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}
