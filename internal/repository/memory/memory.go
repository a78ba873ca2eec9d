// Package memory is an in-process implementation of repository.Store. It
// keeps the compare-and-set and transaction semantics of the SQL store and is
// used for local development (DB_DRIVER=memory) and in tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"foodshare/internal/model"
	"foodshare/internal/repository"
)

type state struct {
	users    map[uuid.UUID]model.User
	otps     map[uuid.UUID]model.OTP
	listings map[uuid.UUID]model.Listing
	jobs     map[uuid.UUID]model.Job

	listingOrder []uuid.UUID
	jobOrder     []uuid.UUID
}

func newState() *state {
	return &state{
		users:    make(map[uuid.UUID]model.User),
		otps:     make(map[uuid.UUID]model.OTP),
		listings: make(map[uuid.UUID]model.Listing),
		jobs:     make(map[uuid.UUID]model.Job),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.otps {
		c.otps[k] = v
	}
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.jobs {
		c.jobs[k] = v
	}
	c.listingOrder = append([]uuid.UUID(nil), s.listingOrder...)
	c.jobOrder = append([]uuid.UUID(nil), s.jobOrder...)
	return c
}

// Store is a mutex-guarded in-memory store. A transaction holds the mutex for
// its whole duration, so transactions are fully serialized.
type Store struct {
	mu sync.Mutex
	st *state
}

// New creates an empty store.
func New() *Store {
	return &Store{st: newState()}
}

// Ensure Store implements repository.Store
var _ repository.Store = (*Store)(nil)

func (s *Store) Users() repository.UserRepository       { return &userRepo{view{s, false}} }
func (s *Store) OTPs() repository.OTPRepository         { return &otpRepo{view{s, false}} }
func (s *Store) Listings() repository.ListingRepository { return &listingRepo{view{s, false}} }
func (s *Store) Jobs() repository.JobRepository         { return &jobRepo{view{s, false}} }

// WithTransaction runs fn with exclusive access and restores the previous
// state when fn returns an error or panics.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	defer func() {
		if r := recover(); r != nil {
			s.st = snapshot
			panic(r)
		}
	}()
	if err = fn(ctx, &txStore{root: s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

type txStore struct {
	root *Store
}

func (t *txStore) Users() repository.UserRepository       { return &userRepo{view{t.root, true}} }
func (t *txStore) OTPs() repository.OTPRepository         { return &otpRepo{view{t.root, true}} }
func (t *txStore) Listings() repository.ListingRepository { return &listingRepo{view{t.root, true}} }
func (t *txStore) Jobs() repository.JobRepository         { return &jobRepo{view{t.root, true}} }

// WithTransaction inside a transaction reuses it.
func (t *txStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return fn(ctx, t)
}

// view runs repository calls either under the store mutex or, inside a
// transaction, with the mutex already held.
type view struct {
	s    *Store
	inTx bool
}

func (v view) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !v.inTx {
		v.s.mu.Lock()
		defer v.s.mu.Unlock()
	}
	return fn(v.s.st)
}

type userRepo struct{ view }

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	return r.do(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Phone == user.Phone {
				return gorm.ErrDuplicatedKey
			}
		}
		_ = user.BeforeCreate(nil)
		now := time.Now()
		user.CreatedAt, user.UpdatedAt = now, now
		st.users[user.ID] = *user
		return nil
	})
}

func (r *userRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var out *model.User
	err := r.do(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r *userRepo) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	var out *model.User
	err := r.do(ctx, func(st *state) error {
		for _, u := range st.users {
			if u.Phone == phone {
				out = &u
				return nil
			}
		}
		return gorm.ErrRecordNotFound
	})
	return out, err
}

func (r *userRepo) MarkVerified(ctx context.Context, id uuid.UUID) error {
	return r.do(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		u.Verified = true
		u.UpdatedAt = time.Now()
		st.users[id] = u
		return nil
	})
}

type otpRepo struct{ view }

func (r *otpRepo) Create(ctx context.Context, otp *model.OTP) error {
	return r.do(ctx, func(st *state) error {
		_ = otp.BeforeCreate(nil)
		if otp.CreatedAt.IsZero() {
			otp.CreatedAt = time.Now()
		}
		st.otps[otp.ID] = *otp
		return nil
	})
}

func (r *otpRepo) FindUnused(ctx context.Context, phone string, purpose model.OTPPurpose) ([]model.OTP, error) {
	var out []model.OTP
	err := r.do(ctx, func(st *state) error {
		for _, o := range st.otps {
			if o.Phone == phone && o.Purpose == purpose && !o.Used {
				out = append(out, o)
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.After(out[j].ExpiresAt) })
		return nil
	})
	return out, err
}

func (r *otpRepo) MarkUsed(ctx context.Context, id uuid.UUID) (bool, error) {
	var changed bool
	err := r.do(ctx, func(st *state) error {
		o, ok := st.otps[id]
		if !ok || o.Used {
			return nil
		}
		o.Used = true
		st.otps[id] = o
		changed = true
		return nil
	})
	return changed, err
}

func (r *otpRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.do(ctx, func(st *state) error {
		for id, o := range st.otps {
			if o.Used || o.ExpiresAt.Before(cutoff) {
				delete(st.otps, id)
				n++
			}
		}
		return nil
	})
	return n, err
}

type listingRepo struct{ view }

func (r *listingRepo) Create(ctx context.Context, listing *model.Listing) error {
	return r.do(ctx, func(st *state) error {
		_ = listing.BeforeCreate(nil)
		if listing.Status == "" {
			listing.Status = model.ListingStatusAvailable
		}
		now := time.Now()
		listing.CreatedAt, listing.UpdatedAt = now, now
		st.listings[listing.ID] = *listing
		st.listingOrder = append(st.listingOrder, listing.ID)
		return nil
	})
}

func (r *listingRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	var out *model.Listing
	err := r.do(ctx, func(st *state) error {
		l, ok := st.listings[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &l
		return nil
	})
	return out, err
}

// FindByIDForUpdate is FindByID: transactions already hold the store mutex.
func (r *listingRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Listing, error) {
	return r.FindByID(ctx, id)
}

func (r *listingRepo) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]model.Listing, error) {
	out := []model.Listing{}
	err := r.do(ctx, func(st *state) error {
		for i := len(st.listingOrder) - 1; i >= 0; i-- {
			if l := st.listings[st.listingOrder[i]]; l.DonorID == donorID {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}

func (r *listingRepo) ListByStatus(ctx context.Context, status model.ListingStatus) ([]model.Listing, error) {
	out := []model.Listing{}
	err := r.do(ctx, func(st *state) error {
		for _, id := range st.listingOrder {
			if l := st.listings[id]; l.Status == status {
				out = append(out, l)
			}
		}
		return nil
	})
	return out, err
}

func (r *listingRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.ListingStatus) (bool, error) {
	var changed bool
	err := r.do(ctx, func(st *state) error {
		l, ok := st.listings[id]
		if !ok || l.Status != from {
			return nil
		}
		l.Status = to
		l.UpdatedAt = time.Now()
		st.listings[id] = l
		changed = true
		return nil
	})
	return changed, err
}

type jobRepo struct{ view }

func (r *jobRepo) Create(ctx context.Context, job *model.Job) error {
	return r.do(ctx, func(st *state) error {
		_ = job.BeforeCreate(nil)
		if job.Status == "" {
			job.Status = model.JobStatusRequested
		}
		now := time.Now()
		job.CreatedAt, job.UpdatedAt = now, now
		st.jobs[job.ID] = *job
		st.jobOrder = append(st.jobOrder, job.ID)
		return nil
	})
}

func (r *jobRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var out *model.Job
	err := r.do(ctx, func(st *state) error {
		j, ok := st.jobs[id]
		if !ok {
			return gorm.ErrRecordNotFound
		}
		out = &j
		return nil
	})
	return out, err
}

// FindByIDForUpdate is FindByID: transactions already hold the store mutex.
func (r *jobRepo) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	return r.FindByID(ctx, id)
}

func (r *jobRepo) filter(ctx context.Context, newestFirst bool, keep func(st *state, j model.Job) bool) ([]model.Job, error) {
	out := []model.Job{}
	err := r.do(ctx, func(st *state) error {
		n := len(st.jobOrder)
		for i := 0; i < n; i++ {
			idx := i
			if newestFirst {
				idx = n - 1 - i
			}
			if j := st.jobs[st.jobOrder[idx]]; keep(st, j) {
				out = append(out, j)
			}
		}
		return nil
	})
	return out, err
}

func (r *jobRepo) ListUnassigned(ctx context.Context) ([]model.Job, error) {
	return r.filter(ctx, false, func(_ *state, j model.Job) bool {
		return j.Status == model.JobStatusRequested && j.DeliveryID == nil
	})
}

func (r *jobRepo) ListByReceiver(ctx context.Context, receiverID uuid.UUID) ([]model.Job, error) {
	return r.filter(ctx, true, func(_ *state, j model.Job) bool {
		return j.ReceiverID != nil && *j.ReceiverID == receiverID
	})
}

func (r *jobRepo) ListByCourier(ctx context.Context, courierID uuid.UUID) ([]model.Job, error) {
	return r.filter(ctx, true, func(_ *state, j model.Job) bool {
		return j.DeliveryID != nil && *j.DeliveryID == courierID
	})
}

func (r *jobRepo) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]model.Job, error) {
	return r.filter(ctx, true, func(st *state, j model.Job) bool {
		return st.listings[j.ListingID].DonorID == donorID
	})
}

func (r *jobRepo) Assign(ctx context.Context, id, courierID uuid.UUID) (bool, error) {
	var changed bool
	err := r.do(ctx, func(st *state) error {
		j, ok := st.jobs[id]
		if !ok || j.DeliveryID != nil || j.Status != model.JobStatusRequested {
			return nil
		}
		courier := courierID
		j.DeliveryID = &courier
		j.Status = model.JobStatusAssigned
		j.UpdatedAt = time.Now()
		st.jobs[id] = j
		changed = true
		return nil
	})
	return changed, err
}

func (r *jobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.JobStatus, at time.Time) (bool, error) {
	var changed bool
	err := r.do(ctx, func(st *state) error {
		j, ok := st.jobs[id]
		if !ok || j.Status != from {
			return nil
		}
		j.Status = to
		stamp := at
		switch to {
		case model.JobStatusPicked:
			j.PickedAt = &stamp
		case model.JobStatusDelivered:
			j.DeliveredAt = &stamp
		}
		j.UpdatedAt = time.Now()
		st.jobs[id] = j
		changed = true
		return nil
	})
	return changed, err
}
