package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foodshare/internal/model"
)

// OTPRepository defines one-time code persistence operations.
type OTPRepository interface {
	Create(ctx context.Context, otp *model.OTP) error
	// FindUnused returns unused codes for phone and purpose, latest expiry first.
	// Inside a transaction the rows stay locked until commit.
	FindUnused(ctx context.Context, phone string, purpose model.OTPPurpose) ([]model.OTP, error)
	// MarkUsed flips used to true and reports whether this call did it.
	MarkUsed(ctx context.Context, id uuid.UUID) (bool, error)
	// DeleteStale removes used codes and codes that expired before cutoff.
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type otpRepository struct {
	db *gorm.DB
}

// NewOTPRepository creates a new OTP repository.
func NewOTPRepository(db *gorm.DB) OTPRepository {
	return &otpRepository{db: db}
}

// Create persists a new code. Records are never overwritten.
func (r *otpRepository) Create(ctx context.Context, otp *model.OTP) error {
	return r.db.WithContext(ctx).Create(otp).Error
}

func (r *otpRepository) FindUnused(ctx context.Context, phone string, purpose model.OTPPurpose) ([]model.OTP, error) {
	var otps []model.OTP
	if err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("phone = ? AND purpose = ? AND used = ?", phone, purpose, false).
		Order("expires_at DESC").
		Find(&otps).Error; err != nil {
		return nil, err
	}
	return otps, nil
}

func (r *otpRepository) MarkUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.OTP{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *otpRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("used = ? OR expires_at < ?", true, cutoff).
		Delete(&model.OTP{})
	return res.RowsAffected, res.Error
}
