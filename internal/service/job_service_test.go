package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodshare/internal/errors"
	"foodshare/internal/model"
)

type jobFixture struct {
	donor, receiver, courier Actor
	listing                  *model.Listing
	job                      *model.Job
}

const (
	donorPhone    = "+1555"
	receiverPhone = "+1666"
	courierPhone  = "+1777"
)

// requestedJob posts a listing and has a receiver request it.
func requestedJob(t *testing.T, env *testEnv) *jobFixture {
	t.Helper()
	ctx := context.Background()
	f := &jobFixture{
		donor:    env.user(t, donorPhone, model.RoleDonor),
		receiver: env.user(t, receiverPhone, model.RoleReceiver),
		courier:  env.user(t, courierPhone, model.RoleDelivery),
	}
	var err error
	f.listing, err = env.listings.Create(ctx, f.donor, CreateListingInput{Title: "Bread", Servings: 4})
	require.NoError(t, err)
	f.job, err = env.listings.Request(ctx, f.receiver, f.listing.ID)
	require.NoError(t, err)
	return f
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func (e *testEnv) listingStatus(t *testing.T, id uuid.UUID) model.ListingStatus {
	t.Helper()
	l, err := e.store.Listings().FindByID(context.Background(), id)
	require.NoError(t, err)
	return l.Status
}

func (e *testEnv) jobStatus(t *testing.T, id uuid.UUID) model.JobStatus {
	t.Helper()
	j, err := e.store.Jobs().FindByID(context.Background(), id)
	require.NoError(t, err)
	return j.Status
}

// Assign, reject a wrong pickup code, then walk the job to delivered.
func TestJobService_FullLifecycle(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	f := requestedJob(t, env)

	open, err := env.jobs.ListOpen(ctx, f.courier)
	require.NoError(t, err)
	require.Len(t, open, 1)

	job, err := env.jobs.Assign(ctx, f.courier, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusAssigned, job.Status)
	assert.Equal(t, f.courier.UserID, *job.DeliveryID)
	pickupCode := env.notifier.last(donorPhone, model.OTPPurposePickup)
	require.NotEmpty(t, pickupCode)

	_, err = env.jobs.ConfirmPickup(ctx, f.job.ID, wrongCode(pickupCode))
	assert.ErrorIs(t, err, errors.ErrInvalidOTP)
	assert.Equal(t, model.JobStatusAssigned, env.jobStatus(t, f.job.ID))
	assert.Equal(t, model.ListingStatusReserved, env.listingStatus(t, f.listing.ID))

	job, err = env.jobs.ConfirmPickup(ctx, f.job.ID, pickupCode)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPicked, job.Status)
	assert.NotNil(t, job.PickedAt)
	assert.Equal(t, model.ListingStatusPicked, env.listingStatus(t, f.listing.ID))
	deliveryCode := env.notifier.last(receiverPhone, model.OTPPurposeDeliveryConfirm)
	require.NotEmpty(t, deliveryCode)

	job, err = env.jobs.ConfirmDelivery(ctx, f.job.ID, deliveryCode)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusDelivered, job.Status)
	assert.NotNil(t, job.DeliveredAt)
	assert.Equal(t, model.ListingStatusDelivered, env.listingStatus(t, f.listing.ID))

	stored, err := env.jobs.Get(ctx, f.job.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.PickedAt)
	assert.NotNil(t, stored.DeliveredAt)
}

// Pickup codes belong to the donor's phone, not to a job, so any live pickup
// code of that donor advances any of their assigned jobs.
func TestJobService_PickupCodeIsScopedToDonor(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	first := requestedJob(t, env)
	other := env.user(t, "+1668", model.RoleReceiver)

	listing, err := env.listings.Create(ctx, first.donor, CreateListingInput{Title: "Soup", Servings: 2})
	require.NoError(t, err)
	second, err := env.listings.Request(ctx, other, listing.ID)
	require.NoError(t, err)

	_, err = env.jobs.Assign(ctx, first.courier, first.job.ID)
	require.NoError(t, err)
	codeFirst := env.notifier.last(donorPhone, model.OTPPurposePickup)
	_, err = env.jobs.Assign(ctx, first.courier, second.ID)
	require.NoError(t, err)
	codeSecond := env.notifier.last(donorPhone, model.OTPPurposePickup)
	require.NotEqual(t, codeFirst, codeSecond)

	job, err := env.jobs.ConfirmPickup(ctx, second.ID, codeFirst)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPicked, job.Status)

	job, err = env.jobs.ConfirmPickup(ctx, first.job.ID, codeSecond)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPicked, job.Status)
	assert.Equal(t, 1, env.notifier.count(receiverPhone, model.OTPPurposeDeliveryConfirm))
	assert.Equal(t, 1, env.notifier.count("+1668", model.OTPPurposeDeliveryConfirm))
}

func TestJobService_StartRoute(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	f := requestedJob(t, env)
	rival := env.user(t, "+1888", model.RoleDelivery)

	_, err := env.jobs.StartRoute(ctx, f.courier, f.job.ID)
	assert.ErrorIs(t, err, errors.ErrNotAssignedCourier)

	_, err = env.jobs.Assign(ctx, f.courier, f.job.ID)
	require.NoError(t, err)

	_, err = env.jobs.StartRoute(ctx, rival, f.job.ID)
	assert.ErrorIs(t, err, errors.ErrNotAssignedCourier)

	job, err := env.jobs.StartRoute(ctx, f.courier, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusEnroute, job.Status)

	_, err = env.jobs.StartRoute(ctx, f.courier, f.job.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	job, err = env.jobs.ConfirmPickup(ctx, f.job.ID, env.notifier.last(donorPhone, model.OTPPurposePickup))
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusPicked, job.Status)
}

func TestJobService_AssignOnce(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	f := requestedJob(t, env)
	rival := env.user(t, "+1888", model.RoleDelivery)

	_, err := env.jobs.Assign(ctx, f.courier, f.job.ID)
	require.NoError(t, err)

	_, err = env.jobs.Assign(ctx, rival, f.job.ID)
	assert.ErrorIs(t, err, errors.ErrJobAlreadyAssigned)
	assert.Equal(t, 1, env.notifier.count(donorPhone, model.OTPPurposePickup))

	_, err = env.jobs.Assign(ctx, f.courier, uuid.New())
	assert.ErrorIs(t, err, errors.ErrJobNotFound)
}

func TestJobService_ConcurrentAssignYieldsOneCourier(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	f := requestedJob(t, env)

	couriers := []Actor{f.courier}
	for _, phone := range []string{"+1801", "+1802", "+1803", "+1804", "+1805", "+1806", "+1807"} {
		couriers = append(couriers, env.user(t, phone, model.RoleDelivery))
	}

	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		conflicts atomic.Int32
	)
	for _, c := range couriers {
		wg.Add(1)
		go func(c Actor) {
			defer wg.Done()
			_, err := env.jobs.Assign(ctx, c, f.job.ID)
			if err == nil {
				successes.Add(1)
				return
			}
			if assert.ErrorIs(t, err, errors.ErrJobAlreadyAssigned) {
				conflicts.Add(1)
			}
		}(c)
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
	assert.Equal(t, int32(len(couriers)-1), conflicts.Load())
	assert.Equal(t, 1, env.notifier.count(donorPhone, model.OTPPurposePickup))
}

func TestJobService_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	f := requestedJob(t, env)

	// Nothing to confirm before a courier is assigned.
	_, err := env.jobs.ConfirmPickup(ctx, f.job.ID, "123456")
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)
	_, err = env.jobs.ConfirmDelivery(ctx, f.job.ID, "123456")
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	_, err = env.jobs.Assign(ctx, f.courier, f.job.ID)
	require.NoError(t, err)
	pickup := env.notifier.last(donorPhone, model.OTPPurposePickup)

	// The pickup code does not confirm delivery.
	_, err = env.jobs.ConfirmDelivery(ctx, f.job.ID, pickup)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	_, err = env.jobs.ConfirmPickup(ctx, f.job.ID, pickup)
	require.NoError(t, err)

	// A consumed pickup code cannot be replayed.
	_, err = env.jobs.ConfirmPickup(ctx, f.job.ID, pickup)
	assert.ErrorIs(t, err, errors.ErrInvalidTransition)

	_, err = env.jobs.ConfirmPickup(ctx, f.job.ID, "12ab")
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestJobService_WrongDeliveryCodeKeepsPicked(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	f := requestedJob(t, env)

	_, err := env.jobs.Assign(ctx, f.courier, f.job.ID)
	require.NoError(t, err)
	_, err = env.jobs.ConfirmPickup(ctx, f.job.ID, env.notifier.last(donorPhone, model.OTPPurposePickup))
	require.NoError(t, err)
	code := env.notifier.last(receiverPhone, model.OTPPurposeDeliveryConfirm)

	_, err = env.jobs.ConfirmDelivery(ctx, f.job.ID, wrongCode(code))
	assert.ErrorIs(t, err, errors.ErrInvalidOTP)
	assert.Equal(t, model.JobStatusPicked, env.jobStatus(t, f.job.ID))
	assert.Equal(t, model.ListingStatusPicked, env.listingStatus(t, f.listing.ID))

	// The code stays unconsumed after the failed attempt.
	_, err = env.jobs.ConfirmDelivery(ctx, f.job.ID, code)
	require.NoError(t, err)
}

func TestJobService_RoleGating(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	f := requestedJob(t, env)

	for _, actor := range []Actor{f.donor, f.receiver} {
		_, err := env.jobs.Assign(ctx, actor, f.job.ID)
		assert.ErrorIs(t, err, errors.ErrForbidden)
		_, err = env.jobs.ListOpen(ctx, actor)
		assert.ErrorIs(t, err, errors.ErrForbidden)
		_, err = env.jobs.StartRoute(ctx, actor, f.job.ID)
		assert.ErrorIs(t, err, errors.ErrForbidden)
	}
	_, err := env.jobs.ListMine(ctx, Actor{UserID: uuid.New(), Role: model.Role("admin")})
	assert.ErrorIs(t, err, errors.ErrForbidden)

	assert.Equal(t, model.JobStatusRequested, env.jobStatus(t, f.job.ID))
}

func TestJobService_ListMinePerRole(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	f := requestedJob(t, env)
	_, err := env.jobs.Assign(ctx, f.courier, f.job.ID)
	require.NoError(t, err)

	for _, actor := range []Actor{f.donor, f.receiver, f.courier} {
		jobs, err := env.jobs.ListMine(ctx, actor)
		require.NoError(t, err)
		require.Len(t, jobs, 1, "role %s", actor.Role)
		assert.Equal(t, f.job.ID, jobs[0].ID)
	}

	open, err := env.jobs.ListOpen(ctx, f.courier)
	require.NoError(t, err)
	assert.Empty(t, open)
}
