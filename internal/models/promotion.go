package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Service is a clinic offering that can be shown during a livestream.
type Service struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"size:50;not null" json:"name"`
	Description string         `gorm:"size:200" json:"description"`
	MaxPrice    float64        `json:"maxPrice"`
	MinPrice    float64        `json:"minPrice"`
	Tags        pq.StringArray `gorm:"type:text[]" json:"tags"`
	CategoryID  *string        `gorm:"type:uuid" json:"-"`
	Category    *Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Medias      []ServiceMedia `gorm:"foreignKey:ServiceID" json:"-"`
}

func (s *Service) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return
}

type Category struct {
	ID          string `gorm:"type:uuid;primaryKey" json:"-"`
	Name        string `gorm:"size:100" json:"name"`
	Description string `gorm:"size:250" json:"description"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

type ServiceMedia struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	ServiceID string `gorm:"type:uuid;index"`
	ImageURL  string `gorm:"size:250"`
	Position  int
}

func (m *ServiceMedia) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return
}

// Promotion is a live discount on a service, scoped to one livestream room.
// At most one promotion per (service, room) is activated at a time.
type Promotion struct {
	ID               string `gorm:"type:uuid;primaryKey"`
	Name             string `gorm:"size:100;not null"`
	StartDate        time.Time
	EndDate          *time.Time
	DiscountPercent  float64
	ServiceID        string `gorm:"type:uuid;index:idx_promo_active"`
	LivestreamRoomID string `gorm:"type:uuid;index:idx_promo_active"`
	IsActivated      bool   `gorm:"index:idx_promo_active"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (p *Promotion) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return
}
