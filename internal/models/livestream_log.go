package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LiveStreamLog is one durably logged activity of a livestream, kept for operator review.
// ActivityType: 0 join, 1 message, 2 reaction. For reactions Message holds the reaction id.
type LiveStreamLog struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           string    `gorm:"type:uuid;index" json:"user_id"`
	ActivityType     int       `gorm:"not null" json:"activity_type"`
	Message          string    `gorm:"type:text" json:"message"`
	LivestreamRoomID string    `gorm:"type:uuid;not null;index:idx_room_log" json:"livestream_room_id"`
	CreatedAt        time.Time `gorm:"index:idx_room_log" json:"created_at"`
}

func (l *LiveStreamLog) BeforeCreate(tx *gorm.DB) (err error) {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	return
}
