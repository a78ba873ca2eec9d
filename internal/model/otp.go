package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OTPPurpose scopes a one-time code to a single flow.
type OTPPurpose string

const (
	OTPPurposeSignup          OTPPurpose = "signup"
	OTPPurposeLogin           OTPPurpose = "login"
	OTPPurposePickup          OTPPurpose = "pickup"
	OTPPurposeDeliveryConfirm OTPPurpose = "delivery_confirm"
)

// Valid reports whether p is a declared purpose.
func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPPurposeSignup, OTPPurposeLogin, OTPPurposePickup, OTPPurposeDeliveryConfirm:
		return true
	}
	return false
}

// OTP is a stored one-time code. Only the bcrypt hash of the code is kept.
type OTP struct {
	ID        uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	Phone     string     `json:"phone" gorm:"size:20;not null;index:idx_otp_lookup,priority:1"`
	CodeHash  string     `json:"-" gorm:"size:128;not null"`
	Purpose   OTPPurpose `json:"purpose" gorm:"type:varchar(30);not null;index:idx_otp_lookup,priority:2"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"not null;index"`
	Used      bool       `json:"used" gorm:"not null;default:false;index:idx_otp_lookup,priority:3"`
	CreatedAt time.Time  `json:"created_at"`
}

// Expired reports whether the code can no longer be verified at now.
func (o *OTP) Expired(now time.Time) bool {
	return o.ExpiresAt.Before(now)
}

// BeforeCreate sets UUID before creating the record.
func (o *OTP) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
