package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"foodshare/internal/errors"
	"foodshare/internal/model"
	"foodshare/internal/repository"
)

// JobService drives a job from request to delivery.
type JobService interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Job, error)
	ListOpen(ctx context.Context, actor Actor) ([]model.Job, error)
	ListMine(ctx context.Context, actor Actor) ([]model.Job, error)
	// Assign gives the job to the calling courier and sends a pickup code to the donor.
	Assign(ctx context.Context, actor Actor, jobID uuid.UUID) (*model.Job, error)
	// StartRoute marks the assigned courier as on the way to the donor.
	StartRoute(ctx context.Context, actor Actor, jobID uuid.UUID) (*model.Job, error)
	// ConfirmPickup checks the donor's pickup code and sends a delivery code to the receiver.
	ConfirmPickup(ctx context.Context, jobID uuid.UUID, code string) (*model.Job, error)
	// ConfirmDelivery checks the receiver's delivery code and completes the job.
	ConfirmDelivery(ctx context.Context, jobID uuid.UUID, code string) (*model.Job, error)
}

type jobService struct {
	store repository.Store
	otp   OTPService
	log   *zap.SugaredLogger
	now   func() time.Time
}

// NewJobService creates a new job service.
func NewJobService(store repository.Store, otp OTPService, log *zap.SugaredLogger) JobService {
	return &jobService{
		store: store,
		otp:   otp,
		log:   log.With("service", "job"),
		now:   time.Now,
	}
}

func (s *jobService) Get(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	job, err := s.store.Jobs().FindByID(ctx, id)
	if err != nil {
		return nil, jobLookupError(err)
	}
	return job, nil
}

func (s *jobService) ListOpen(ctx context.Context, actor Actor) ([]model.Job, error) {
	if err := requireRole(actor, model.RoleDelivery); err != nil {
		return nil, err
	}
	jobs, err := s.store.Jobs().ListUnassigned(ctx)
	if err != nil {
		return nil, fmt.Errorf("list open jobs: %w", err)
	}
	return jobs, nil
}

func (s *jobService) ListMine(ctx context.Context, actor Actor) ([]model.Job, error) {
	var (
		jobs []model.Job
		err  error
	)
	switch actor.Role {
	case model.RoleReceiver:
		jobs, err = s.store.Jobs().ListByReceiver(ctx, actor.UserID)
	case model.RoleDelivery:
		jobs, err = s.store.Jobs().ListByCourier(ctx, actor.UserID)
	case model.RoleDonor:
		jobs, err = s.store.Jobs().ListByDonor(ctx, actor.UserID)
	default:
		return nil, errors.ErrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

func (s *jobService) Assign(ctx context.Context, actor Actor, jobID uuid.UUID) (*model.Job, error) {
	if err := requireRole(actor, model.RoleDelivery); err != nil {
		return nil, err
	}

	var (
		job      *model.Job
		dispatch *Dispatch
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := tx.Jobs().FindByIDForUpdate(ctx, jobID)
		if err != nil {
			return jobLookupError(err)
		}
		if current.DeliveryID != nil {
			return errors.ErrJobAlreadyAssigned
		}
		if !current.Status.CanTransitionTo(model.JobStatusAssigned) {
			return errors.ErrInvalidTransition
		}

		assigned, err := tx.Jobs().Assign(ctx, current.ID, actor.UserID)
		if err != nil {
			return fmt.Errorf("assign job: %w", err)
		}
		if !assigned {
			return errors.ErrJobAlreadyAssigned
		}

		listing, err := tx.Listings().FindByID(ctx, current.ListingID)
		if err != nil {
			return listingLookupError(err)
		}
		donor, err := tx.Users().FindByID(ctx, listing.DonorID)
		if err != nil {
			return fmt.Errorf("find donor: %w", err)
		}
		if dispatch, err = s.otp.Stage(ctx, tx.OTPs(), donor.Phone, model.OTPPurposePickup); err != nil {
			return err
		}

		job, err = tx.Jobs().FindByID(ctx, current.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	dispatch.Send(ctx)

	s.log.Infow("job assigned", "job_id", jobID, "courier_id", actor.UserID)
	return job, nil
}

func (s *jobService) StartRoute(ctx context.Context, actor Actor, jobID uuid.UUID) (*model.Job, error) {
	if err := requireRole(actor, model.RoleDelivery); err != nil {
		return nil, err
	}

	var job *model.Job
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := tx.Jobs().FindByIDForUpdate(ctx, jobID)
		if err != nil {
			return jobLookupError(err)
		}
		if current.DeliveryID == nil || *current.DeliveryID != actor.UserID {
			return errors.ErrNotAssignedCourier
		}
		if err := s.advance(ctx, tx, current, model.JobStatusEnroute); err != nil {
			return err
		}
		job = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("job en route", "job_id", jobID, "courier_id", actor.UserID)
	return job, nil
}

func (s *jobService) ConfirmPickup(ctx context.Context, jobID uuid.UUID, code string) (*model.Job, error) {
	if err := validateInput(confirmInput{Code: code}); err != nil {
		return nil, err
	}

	var (
		job      *model.Job
		dispatch *Dispatch
	)
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := tx.Jobs().FindByIDForUpdate(ctx, jobID)
		if err != nil {
			return jobLookupError(err)
		}
		if !current.Status.CanTransitionTo(model.JobStatusPicked) {
			return errors.ErrInvalidTransition
		}

		listing, err := tx.Listings().FindByIDForUpdate(ctx, current.ListingID)
		if err != nil {
			return listingLookupError(err)
		}
		donor, err := tx.Users().FindByID(ctx, listing.DonorID)
		if err != nil {
			return fmt.Errorf("find donor: %w", err)
		}

		ok, err := s.otp.VerifyWith(ctx, tx.OTPs(), donor.Phone, code, model.OTPPurposePickup)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrInvalidOTP
		}

		if err := s.advance(ctx, tx, current, model.JobStatusPicked); err != nil {
			return err
		}
		if err := advanceListing(ctx, tx, listing, model.ListingStatusPicked); err != nil {
			return err
		}

		if current.ReceiverID == nil {
			return fmt.Errorf("job %s has no receiver", current.ID)
		}
		receiver, err := tx.Users().FindByID(ctx, *current.ReceiverID)
		if err != nil {
			return fmt.Errorf("find receiver: %w", err)
		}
		if dispatch, err = s.otp.Stage(ctx, tx.OTPs(), receiver.Phone, model.OTPPurposeDeliveryConfirm); err != nil {
			return err
		}
		job = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	dispatch.Send(ctx)

	s.log.Infow("pickup confirmed", "job_id", jobID)
	return job, nil
}

func (s *jobService) ConfirmDelivery(ctx context.Context, jobID uuid.UUID, code string) (*model.Job, error) {
	if err := validateInput(confirmInput{Code: code}); err != nil {
		return nil, err
	}

	var job *model.Job
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		current, err := tx.Jobs().FindByIDForUpdate(ctx, jobID)
		if err != nil {
			return jobLookupError(err)
		}
		if !current.Status.CanTransitionTo(model.JobStatusDelivered) {
			return errors.ErrInvalidTransition
		}
		if current.ReceiverID == nil {
			return fmt.Errorf("job %s has no receiver", current.ID)
		}

		listing, err := tx.Listings().FindByIDForUpdate(ctx, current.ListingID)
		if err != nil {
			return listingLookupError(err)
		}
		receiver, err := tx.Users().FindByID(ctx, *current.ReceiverID)
		if err != nil {
			return fmt.Errorf("find receiver: %w", err)
		}

		ok, err := s.otp.VerifyWith(ctx, tx.OTPs(), receiver.Phone, code, model.OTPPurposeDeliveryConfirm)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrInvalidOTP
		}

		if err := s.advance(ctx, tx, current, model.JobStatusDelivered); err != nil {
			return err
		}
		if err := advanceListing(ctx, tx, listing, model.ListingStatusDelivered); err != nil {
			return err
		}
		job = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("delivery confirmed", "job_id", jobID)
	return job, nil
}

// advance moves job to next with a compare-and-set on its current status and
// mirrors the change on the in-memory copy.
func (s *jobService) advance(ctx context.Context, tx repository.Store, job *model.Job, next model.JobStatus) error {
	if !job.Status.CanTransitionTo(next) {
		return errors.ErrInvalidTransition
	}
	at := s.now()
	changed, err := tx.Jobs().UpdateStatus(ctx, job.ID, job.Status, next, at)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if !changed {
		return errors.ErrInvalidTransition
	}

	job.Status = next
	switch next {
	case model.JobStatusPicked:
		job.PickedAt = &at
	case model.JobStatusDelivered:
		job.DeliveredAt = &at
	}
	return nil
}

func advanceListing(ctx context.Context, tx repository.Store, listing *model.Listing, next model.ListingStatus) error {
	if !listing.Status.CanTransitionTo(next) {
		return errors.ErrInvalidTransition
	}
	changed, err := tx.Listings().UpdateStatus(ctx, listing.ID, listing.Status, next)
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	if !changed {
		return errors.ErrInvalidTransition
	}
	listing.Status = next
	return nil
}

func jobLookupError(err error) error {
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return errors.ErrJobNotFound
	}
	return fmt.Errorf("find job: %w", err)
}
