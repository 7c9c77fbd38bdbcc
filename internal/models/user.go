package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a platform account. Clinic staff are users linked to a clinic through UserClinic.
type User struct {
	ID       string  `gorm:"type:uuid;primaryKey" json:"id"`
	FullName string  `gorm:"size:100" json:"full_name"`
	Email    string  `gorm:"size:100;uniqueIndex" json:"email"`
	RoleID   *string `gorm:"type:uuid;index" json:"role_id"`
	Role     *Role   `gorm:"foreignKey:RoleID" json:"role,omitempty"`
}

// BeforeCreate is a GORM hook that assigns a UUID when the ID is empty.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return
}

// Role is a named permission level, e.g. "Clinic Admin".
type Role struct {
	ID   string `gorm:"type:uuid;primaryKey" json:"id"`
	Name string `gorm:"size:50;not null" json:"name"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return
}

// Clinic owns livestreams. AdditionLivestreams is the remaining livestream quota.
type Clinic struct {
	ID                  string `gorm:"type:uuid;primaryKey" json:"id"`
	Name                string `gorm:"size:100;not null" json:"name"`
	Email               string `gorm:"size:100" json:"email"`
	IsActivated         bool   `json:"is_activated"`
	AdditionLivestreams int    `gorm:"not null;default:0" json:"addition_livestreams"`
}

func (c *Clinic) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// UserClinic links a staff user to a clinic.
type UserClinic struct {
	ID        string `gorm:"type:uuid;primaryKey"`
	UserID    string `gorm:"type:uuid;not null;index:idx_user_clinic"`
	ClinicID  string `gorm:"type:uuid;not null;index:idx_user_clinic"`
	IsDeleted bool   `gorm:"not null;default:false"`
}

func (uc *UserClinic) BeforeCreate(tx *gorm.DB) (err error) {
	if uc.ID == "" {
		uc.ID = uuid.New().String()
	}
	return
}
