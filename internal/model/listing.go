package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ListingStatus represents the availability of a listing.
type ListingStatus string

const (
	ListingStatusAvailable ListingStatus = "available"
	ListingStatusReserved  ListingStatus = "reserved"
	ListingStatusPicked    ListingStatus = "picked"
	ListingStatusDelivered ListingStatus = "delivered"
)

var listingTransitions = map[ListingStatus]ListingStatus{
	ListingStatusAvailable: ListingStatusReserved,
	ListingStatusReserved:  ListingStatusPicked,
	ListingStatusPicked:    ListingStatusDelivered,
}

// CanTransitionTo reports whether next directly follows s.
func (s ListingStatus) CanTransitionTo(next ListingStatus) bool {
	to, ok := listingTransitions[s]
	return ok && to == next
}

// Listing is a donation posted by a donor.
type Listing struct {
	ID          uuid.UUID        `json:"id" gorm:"type:char(36);primaryKey"`
	DonorID     uuid.UUID        `json:"donor_id" gorm:"type:char(36);not null;index"`
	Title       string           `json:"title" gorm:"size:200;not null"`
	Description string           `json:"description" gorm:"type:text"`
	Servings    int              `json:"servings" gorm:"not null"`
	PickupTime  string           `json:"pickup_time" gorm:"size:100"`
	PickupLat   *decimal.Decimal `json:"pickup_lat,omitempty" gorm:"type:decimal(9,6)"`
	PickupLng   *decimal.Decimal `json:"pickup_lng,omitempty" gorm:"type:decimal(9,6)"`
	Status      ListingStatus    `json:"status" gorm:"type:varchar(30);not null;default:'available';index"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`

	// Relations
	Donor User `json:"-" gorm:"foreignKey:DonorID"`
}

// BeforeCreate sets UUID before creating the record.
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
