package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foodshare/internal/model"
)

// ListingRepository defines listing persistence operations.
type ListingRepository interface {
	Create(ctx context.Context, listing *model.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Listing, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Listing, error)
	ListByDonor(ctx context.Context, donorID uuid.UUID) ([]model.Listing, error)
	ListByStatus(ctx context.Context, status model.ListingStatus) ([]model.Listing, error)
	// UpdateStatus moves the listing from one status to another and reports
	// false when the row was no longer in the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ListingStatus) (bool, error)
}

type listingRepository struct {
	db *gorm.DB
}

// NewListingRepository creates a new listing repository.
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db}
}

// Create creates a new listing.
func (r *listingRepository) Create(ctx context.Context, listing *model.Listing) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(listing).Error
}

// FindByID finds a listing by ID.
func (r *listingRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	var listing model.Listing
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// FindByIDForUpdate finds a listing by ID with row-level lock for update.
func (r *listingRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	var listing model.Listing
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// ListByDonor lists a donor's listings, newest first.
func (r *listingRepository) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]model.Listing, error) {
	var listings []model.Listing
	if err := r.db.WithContext(ctx).Where("donor_id = ?", donorID).
		Order("created_at DESC").Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

// ListByStatus lists listings in a status, oldest first.
func (r *listingRepository) ListByStatus(ctx context.Context, status model.ListingStatus) ([]model.Listing, error) {
	var listings []model.Listing
	if err := r.db.WithContext(ctx).Where("status = ?", status).
		Order("created_at ASC").Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

func (r *listingRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ListingStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Listing{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
