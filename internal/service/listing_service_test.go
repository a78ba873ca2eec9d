package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodshare/internal/errors"
	"foodshare/internal/model"
)

func TestListingService_Create(t *testing.T) {
	lat, lng := decimal.RequireFromString("51.5074"), decimal.RequireFromString("-0.1278")
	badLat := decimal.NewFromInt(91)

	tests := []struct {
		name        string
		input       CreateListingInput
		expectedErr error
	}{
		{name: "minimal", input: CreateListingInput{Title: "Bread", Servings: 4}},
		{name: "with coordinates", input: CreateListingInput{Title: "Soup", Servings: 2, PickupTime: "2:00 PM", PickupLat: &lat, PickupLng: &lng}},
		{name: "missing title", input: CreateListingInput{Title: "  ", Servings: 4}, expectedErr: errors.ErrValidation},
		{name: "zero servings", input: CreateListingInput{Title: "Bread"}, expectedErr: errors.ErrValidation},
		{name: "latitude out of range", input: CreateListingInput{Title: "Bread", Servings: 1, PickupLat: &badLat, PickupLng: &lng}, expectedErr: errors.ErrValidation},
		{name: "half a coordinate", input: CreateListingInput{Title: "Bread", Servings: 1, PickupLat: &lat}, expectedErr: errors.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			donor := env.user(t, "+1555", model.RoleDonor)

			listing, err := env.listings.Create(context.Background(), donor, tt.input)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.ListingStatusAvailable, listing.Status)
			assert.Equal(t, donor.UserID, listing.DonorID)
			assert.NotEmpty(t, listing.PickupTime)
		})
	}
}

func TestListingService_DefaultPickupTime(t *testing.T) {
	env := newTestEnv(t)
	donor := env.user(t, "+1555", model.RoleDonor)

	listing, err := env.listings.Create(context.Background(), donor, CreateListingInput{Title: "Bread", Servings: 4})
	require.NoError(t, err)
	assert.Equal(t, DefaultPickupTime, listing.PickupTime)
}

// Donor posts bread, a receiver requests it.
func TestListingService_Request(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	donor := env.user(t, "+1555", model.RoleDonor)
	receiver := env.user(t, "+1666", model.RoleReceiver)
	other := env.user(t, "+1777", model.RoleReceiver)

	listing, err := env.listings.Create(ctx, donor, CreateListingInput{Title: "Bread", Servings: 4})
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusAvailable, listing.Status)

	job, err := env.listings.Request(ctx, receiver, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusRequested, job.Status)
	assert.Equal(t, receiver.UserID, *job.ReceiverID)

	reloaded, err := env.listings.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusReserved, reloaded.Status)

	// A second receiver is turned away and no job is created.
	_, err = env.listings.Request(ctx, other, listing.ID)
	assert.ErrorIs(t, err, errors.ErrListingUnavailable)
	jobs, err := env.store.Jobs().ListByReceiver(ctx, other.UserID)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	_, err = env.listings.Request(ctx, receiver, uuid.New())
	assert.ErrorIs(t, err, errors.ErrListingNotFound)
}

func TestListingService_ConcurrentRequestsYieldOneJob(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	donor := env.user(t, "+1555", model.RoleDonor)
	listing, err := env.listings.Create(ctx, donor, CreateListingInput{Title: "Rice", Servings: 10})
	require.NoError(t, err)

	const n = 20
	receivers := make([]Actor, n)
	for i := range receivers {
		receivers[i] = env.user(t, fmt.Sprintf("+1700%03d", i), model.RoleReceiver)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for _, r := range receivers {
		wg.Add(1)
		go func(r Actor) {
			defer wg.Done()
			_, err := env.listings.Request(ctx, r, listing.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.KindOf(err) == errors.KindConflict:
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(r)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)

	jobs, err := env.store.Jobs().ListByDonor(ctx, donor.UserID)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestListingService_RoleGating(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	donor := env.user(t, "+1555", model.RoleDonor)
	receiver := env.user(t, "+1666", model.RoleReceiver)
	courier := env.user(t, "+1777", model.RoleDelivery)

	listing, err := env.listings.Create(ctx, donor, CreateListingInput{Title: "Bread", Servings: 4})
	require.NoError(t, err)

	for _, actor := range []Actor{receiver, courier, {UserID: uuid.New(), Role: model.Role("admin")}} {
		_, err := env.listings.Create(ctx, actor, CreateListingInput{Title: "Bread", Servings: 4})
		assert.ErrorIs(t, err, errors.ErrForbidden)
		_, err = env.listings.ListMine(ctx, actor)
		assert.ErrorIs(t, err, errors.ErrForbidden)
	}
	for _, actor := range []Actor{donor, courier} {
		_, err := env.listings.Request(ctx, actor, listing.ID)
		assert.ErrorIs(t, err, errors.ErrForbidden)
		_, err = env.listings.ListAvailable(ctx, actor)
		assert.ErrorIs(t, err, errors.ErrForbidden)
	}

	// Rejections leave the listing untouched.
	reloaded, err := env.listings.Get(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ListingStatusAvailable, reloaded.Status)
}

func TestListingService_Dashboards(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	donor := env.user(t, "+1555", model.RoleDonor)
	receiver := env.user(t, "+1666", model.RoleReceiver)

	bread, err := env.listings.Create(ctx, donor, CreateListingInput{Title: "Bread", Servings: 4})
	require.NoError(t, err)
	_, err = env.listings.Create(ctx, donor, CreateListingInput{Title: "Soup", Servings: 2})
	require.NoError(t, err)
	_, err = env.listings.Request(ctx, receiver, bread.ID)
	require.NoError(t, err)

	mine, err := env.listings.ListMine(ctx, donor)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	available, err := env.listings.ListAvailable(ctx, receiver)
	require.NoError(t, err)
	require.Len(t, available, 1)
	assert.Equal(t, "Soup", available[0].Title)
}
