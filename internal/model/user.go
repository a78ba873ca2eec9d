package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a marketplace participant identified by phone number.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Phone     string    `json:"phone" gorm:"uniqueIndex;size:20;not null"`
	Name      string    `json:"name" gorm:"size:120"`
	Role      Role      `json:"role" gorm:"type:varchar(20);not null;index"`
	Verified  bool      `json:"verified" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
