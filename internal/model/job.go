package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// JobStatus represents the fulfillment progress of a job.
type JobStatus string

const (
	JobStatusRequested JobStatus = "requested"
	JobStatusAssigned  JobStatus = "assigned"
	JobStatusEnroute   JobStatus = "enroute"
	JobStatusPicked    JobStatus = "picked"
	JobStatusDelivered JobStatus = "delivered"
)

// enroute is optional: a courier may confirm pickup straight from assigned.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusRequested: {JobStatusAssigned},
	JobStatusAssigned:  {JobStatusEnroute, JobStatusPicked},
	JobStatusEnroute:   {JobStatusPicked},
	JobStatusPicked:    {JobStatusDelivered},
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	for _, to := range jobTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition exists.
func (s JobStatus) Terminal() bool {
	return len(jobTransitions[s]) == 0
}

// Job is one fulfillment of a listing.
type Job struct {
	ID          uuid.UUID  `json:"id" gorm:"type:char(36);primaryKey"`
	ListingID   uuid.UUID  `json:"listing_id" gorm:"type:char(36);not null;index"`
	ReceiverID  *uuid.UUID `json:"receiver_id,omitempty" gorm:"type:char(36);index"`
	DeliveryID  *uuid.UUID `json:"delivery_id,omitempty" gorm:"type:char(36);index"`
	Status      JobStatus  `json:"status" gorm:"type:varchar(30);not null;default:'requested';index"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PickedAt    *time.Time `json:"picked_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`

	// Relations
	Listing Listing `json:"-" gorm:"foreignKey:ListingID"`
}

// BeforeCreate sets UUID before creating the record.
func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}
