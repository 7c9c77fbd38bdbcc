package storage

import (
	"livesignal/backend/internal/config"
	"livesignal/backend/internal/models"
)

// AppendActivityLogs inserts a batch of durable activity rows.
func (s *Service) AppendActivityLogs(rows []models.LiveStreamLog) error {
	if len(rows) == 0 {
		return nil
	}
	return s.DB.CreateInBatches(&rows, config.ActivityFlushBatch).Error
}

// ListActivityLogs returns one page of a room's activity, oldest first, and the total row count.
func (s *Service) ListActivityLogs(roomID string, offset, limit int) ([]models.LiveStreamLog, int64, error) {
	var total int64
	q := s.DB.Model(&models.LiveStreamLog{}).Where("livestream_room_id = ?", roomID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	rows := make([]models.LiveStreamLog, 0, limit)
	err := s.DB.Where("livestream_room_id = ?", roomID).
		Order("created_at asc").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
