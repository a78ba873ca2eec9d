package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"foodshare/internal/errors"
	"foodshare/internal/model"
	"foodshare/internal/repository"
)

// DefaultPickupTime is used when a donor leaves the pickup time blank.
const DefaultPickupTime = "ASAP"

var (
	maxLatitude  = decimal.NewFromInt(90)
	maxLongitude = decimal.NewFromInt(180)
)

// CreateListingInput carries the fields of a new donation.
type CreateListingInput struct {
	Title       string `validate:"required,max=200"`
	Description string `validate:"max=2000"`
	Servings    int    `validate:"min=1"`
	PickupTime  string `validate:"max=100"`
	PickupLat   *decimal.Decimal
	PickupLng   *decimal.Decimal
}

// ListingService manages donations and their requests.
type ListingService interface {
	Create(ctx context.Context, actor Actor, in CreateListingInput) (*model.Listing, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Listing, error)
	ListMine(ctx context.Context, actor Actor) ([]model.Listing, error)
	ListAvailable(ctx context.Context, actor Actor) ([]model.Listing, error)
	// Request reserves an available listing for the receiver and opens a job for it.
	Request(ctx context.Context, actor Actor, listingID uuid.UUID) (*model.Job, error)
}

type listingService struct {
	store repository.Store
	log   *zap.SugaredLogger
}

// NewListingService creates a new listing service.
func NewListingService(store repository.Store, log *zap.SugaredLogger) ListingService {
	return &listingService{store: store, log: log.With("service", "listing")}
}

func (s *listingService) Create(ctx context.Context, actor Actor, in CreateListingInput) (*model.Listing, error) {
	if err := requireRole(actor, model.RoleDonor); err != nil {
		return nil, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.PickupTime = strings.TrimSpace(in.PickupTime)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if err := validateCoordinates(in.PickupLat, in.PickupLng); err != nil {
		return nil, err
	}
	if in.PickupTime == "" {
		in.PickupTime = DefaultPickupTime
	}

	listing := &model.Listing{
		DonorID:     actor.UserID,
		Title:       in.Title,
		Description: in.Description,
		Servings:    in.Servings,
		PickupTime:  in.PickupTime,
		PickupLat:   in.PickupLat,
		PickupLng:   in.PickupLng,
		Status:      model.ListingStatusAvailable,
	}
	if err := s.store.Listings().Create(ctx, listing); err != nil {
		return nil, fmt.Errorf("create listing: %w", err)
	}

	s.log.Infow("listing created", "listing_id", listing.ID, "donor_id", actor.UserID)
	return listing, nil
}

func validateCoordinates(lat, lng *decimal.Decimal) error {
	if (lat == nil) != (lng == nil) {
		return errors.Validation("pickup_lat and pickup_lng must be given together")
	}
	if lat != nil && lat.Abs().GreaterThan(maxLatitude) {
		return errors.Validation("pickup_lat must be between -90 and 90")
	}
	if lng != nil && lng.Abs().GreaterThan(maxLongitude) {
		return errors.Validation("pickup_lng must be between -180 and 180")
	}
	return nil
}

func (s *listingService) Get(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	listing, err := s.store.Listings().FindByID(ctx, id)
	if err != nil {
		return nil, listingLookupError(err)
	}
	return listing, nil
}

func (s *listingService) ListMine(ctx context.Context, actor Actor) ([]model.Listing, error) {
	if err := requireRole(actor, model.RoleDonor); err != nil {
		return nil, err
	}
	listings, err := s.store.Listings().ListByDonor(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("list donor listings: %w", err)
	}
	return listings, nil
}

func (s *listingService) ListAvailable(ctx context.Context, actor Actor) ([]model.Listing, error) {
	if err := requireRole(actor, model.RoleReceiver); err != nil {
		return nil, err
	}
	listings, err := s.store.Listings().ListByStatus(ctx, model.ListingStatusAvailable)
	if err != nil {
		return nil, fmt.Errorf("list available listings: %w", err)
	}
	return listings, nil
}

func (s *listingService) Request(ctx context.Context, actor Actor, listingID uuid.UUID) (*model.Job, error) {
	if err := requireRole(actor, model.RoleReceiver); err != nil {
		return nil, err
	}

	var job *model.Job
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		listing, err := tx.Listings().FindByIDForUpdate(ctx, listingID)
		if err != nil {
			return listingLookupError(err)
		}
		if listing.Status != model.ListingStatusAvailable {
			return errors.ErrListingUnavailable
		}

		reserved, err := tx.Listings().UpdateStatus(ctx, listing.ID, model.ListingStatusAvailable, model.ListingStatusReserved)
		if err != nil {
			return fmt.Errorf("reserve listing: %w", err)
		}
		if !reserved {
			return errors.ErrListingUnavailable
		}

		receiverID := actor.UserID
		job = &model.Job{
			ListingID:  listing.ID,
			ReceiverID: &receiverID,
			Status:     model.JobStatusRequested,
		}
		if err := tx.Jobs().Create(ctx, job); err != nil {
			return fmt.Errorf("create job: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("listing requested", "listing_id", listingID, "job_id", job.ID, "receiver_id", actor.UserID)
	return job, nil
}

func listingLookupError(err error) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.ErrListingNotFound
	}
	return fmt.Errorf("find listing: %w", err)
}
