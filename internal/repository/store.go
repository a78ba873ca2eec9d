package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories of the credential store so a service can run
// several of them inside one transaction.
type Store interface {
	Users() UserRepository
	OTPs() OTPRepository
	Listings() ListingRepository
	Jobs() JobRepository
	// WithTransaction executes fn within a database transaction. Repositories
	// taken from tx share that transaction.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

type store struct {
	db *gorm.DB
}

// NewStore creates a GORM-backed store.
func NewStore(db *gorm.DB) Store {
	return &store{db: db}
}

func (s *store) Users() UserRepository       { return NewUserRepository(s.db) }
func (s *store) OTPs() OTPRepository         { return NewOTPRepository(s.db) }
func (s *store) Listings() ListingRepository { return NewListingRepository(s.db) }
func (s *store) Jobs() JobRepository         { return NewJobRepository(s.db) }

// WithTransaction executes a function within a database transaction.
func (s *store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &store{db: tx})
	})
}
