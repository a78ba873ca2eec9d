package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foodshare/internal/model"
)

// JobRepository defines job persistence operations.
type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Job, error)
	ListUnassigned(ctx context.Context) ([]model.Job, error)
	ListByReceiver(ctx context.Context, receiverID uuid.UUID) ([]model.Job, error)
	ListByCourier(ctx context.Context, courierID uuid.UUID) ([]model.Job, error)
	ListByDonor(ctx context.Context, donorID uuid.UUID) ([]model.Job, error)
	// Assign sets the courier once. It reports false when a courier was already set.
	Assign(ctx context.Context, id, courierID uuid.UUID) (bool, error)
	// UpdateStatus moves the job from one status to another, stamping picked_at
	// or delivered_at when entering those states. It reports false when the row
	// was no longer in the expected status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.JobStatus, at time.Time) (bool, error)
}

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

// Create creates a new job record.
func (r *jobRepository) Create(ctx context.Context, job *model.Job) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(job).Error
}

// FindByID finds a job by ID.
func (r *jobRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// FindByIDForUpdate finds a job by ID with row-level lock for update.
func (r *jobRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListUnassigned lists requested jobs that no courier accepted yet.
func (r *jobRepository) ListUnassigned(ctx context.Context) ([]model.Job, error) {
	var jobs []model.Job
	if err := r.db.WithContext(ctx).
		Where("status = ? AND delivery_id IS NULL", model.JobStatusRequested).
		Order("created_at ASC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) ListByReceiver(ctx context.Context, receiverID uuid.UUID) ([]model.Job, error) {
	var jobs []model.Job
	if err := r.db.WithContext(ctx).Where("receiver_id = ?", receiverID).
		Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) ListByCourier(ctx context.Context, courierID uuid.UUID) ([]model.Job, error) {
	var jobs []model.Job
	if err := r.db.WithContext(ctx).Where("delivery_id = ?", courierID).
		Order("created_at DESC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]model.Job, error) {
	var jobs []model.Job
	if err := r.db.WithContext(ctx).
		Joins("JOIN listings ON listings.id = jobs.listing_id").
		Where("listings.donor_id = ?", donorID).
		Order("jobs.created_at DESC").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) Assign(ctx context.Context, id, courierID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Job{}).
		Where("id = ? AND delivery_id IS NULL AND status = ?", id, model.JobStatusRequested).
		Updates(map[string]interface{}{
			"delivery_id": courierID,
			"status":      model.JobStatusAssigned,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *jobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.JobStatus, at time.Time) (bool, error) {
	updates := map[string]interface{}{"status": to}
	switch to {
	case model.JobStatusPicked:
		updates["picked_at"] = at
	case model.JobStatusDelivered:
		updates["delivered_at"] = at
	}

	res := r.db.WithContext(ctx).Model(&model.Job{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
