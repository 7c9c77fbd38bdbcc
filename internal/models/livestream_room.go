package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Livestream room statuses as stored in livestream_rooms.status.
const (
	RoomStatusLive   = "live"
	RoomStatusUnlive = "unlive"
)

// LivestreamRoom is the durable record of a livestream. Its ID is the room GUID used
// by the in-memory registry.
type LivestreamRoom struct {
	ID           string     `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string     `gorm:"size:100;not null" json:"name"`
	Description  string     `gorm:"type:text" json:"description"`
	Image        string     `gorm:"size:250" json:"image"`
	Status       string     `gorm:"size:50;index" json:"status"`
	Type         string     `gorm:"size:50" json:"type"`
	Date         time.Time  `gorm:"type:date" json:"date"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Duration     int        `json:"duration"` // minutes
	TotalViewers int        `json:"total_viewers"`
	ClinicID     string     `gorm:"type:uuid;index" json:"clinic_id"`
	EventID      *string    `gorm:"type:uuid;index" json:"event_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (r *LivestreamRoom) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// LiveStreamDetail is the settlement written once when a livestream ends.
// TotalActivities is always JoinCount + MessageCount + ReactionCount.
type LiveStreamDetail struct {
	ID               string    `gorm:"type:uuid;primaryKey" json:"id"`
	JoinCount        int       `json:"joinCount"`
	MessageCount     int       `json:"messageCount"`
	ReactionCount    int       `json:"reactionCount"`
	TotalActivities  int       `json:"totalActivities"`
	TotalBooking     int       `json:"totalBooking"`
	LivestreamRoomID string    `gorm:"type:uuid;uniqueIndex" json:"livestreamRoomId"`
	CreatedAt        time.Time `json:"createdAt"`
}

func (d *LiveStreamDetail) BeforeCreate(tx *gorm.DB) (err error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	return
}

// Order is read only to count completed bookings made during a livestream.
type Order struct {
	ID               string  `gorm:"type:uuid;primaryKey"`
	CustomerID       string  `gorm:"type:uuid;index"`
	LivestreamRoomID *string `gorm:"type:uuid;index"`
	ServiceID        *string `gorm:"type:uuid"`
	Status           string  `gorm:"size:50"`
	CreatedAt        time.Time
}

func (o *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	return
}
