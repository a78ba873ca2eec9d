package main

import (
	"context"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"foodshare/internal/config"
	"foodshare/internal/db"
	"foodshare/internal/logger"
	"foodshare/internal/model"
	"foodshare/internal/repository"
)

//go:embed demo.json
var demoData []byte

// SeedData is the layout of a seed file.
type SeedData struct {
	Users    []SeedUser    `json:"users"`
	Listings []SeedListing `json:"listings"`
}

// SeedUser is a pre-verified account.
type SeedUser struct {
	Phone string `json:"phone"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// SeedListing is an available donation owned by the donor with DonorPhone.
type SeedListing struct {
	DonorPhone  string           `json:"donor_phone"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Servings    int              `json:"servings"`
	PickupTime  string           `json:"pickup_time"`
	PickupLat   *decimal.Decimal `json:"pickup_lat"`
	PickupLng   *decimal.Decimal `json:"pickup_lng"`
}

func main() {
	file := flag.String("file", "", "seed file (defaults to the embedded demo data)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}
	cfg := config.Load()

	sugar, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	data, err := loadSeed(*file)
	if err != nil {
		sugar.Fatalw("load seed file", "file", *file, "error", err)
	}

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		sugar.Fatalw("database init", "error", err)
	}
	if err := db.Migrate(gormDB); err != nil {
		sugar.Fatalw("migrate", "error", err)
	}

	store := repository.NewStore(gormDB)
	users, listings, err := seed(context.Background(), store, data, sugar)
	if err != nil {
		sugar.Fatalw("seed failed", "error", err)
	}
	sugar.Infow("seed completed", "users_created", users, "listings_created", listings)
}

func loadSeed(path string) (*SeedData, error) {
	raw := demoData
	if path != "" {
		var err error
		if raw, err = os.ReadFile(path); err != nil {
			return nil, err
		}
	}
	var data SeedData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse seed JSON: %w", err)
	}
	return &data, nil
}

// seed creates missing users and the listings of donors that have none yet.
// Running it twice leaves the data unchanged.
func seed(ctx context.Context, store repository.Store, data *SeedData, log *zap.SugaredLogger) (usersCreated, listingsCreated int, err error) {
	err = store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		donors := make(map[string]*model.User)
		for _, su := range data.Users {
			role, err := model.ParseRole(su.Role)
			if err != nil {
				log.Warnw("skipping user with unknown role", "phone", su.Phone, "role", su.Role)
				continue
			}

			user, err := tx.Users().FindByPhone(ctx, su.Phone)
			switch {
			case stderrors.Is(err, gorm.ErrRecordNotFound):
				user = &model.User{Phone: su.Phone, Name: su.Name, Role: role, Verified: true}
				if err := tx.Users().Create(ctx, user); err != nil {
					return fmt.Errorf("create user %s: %w", su.Phone, err)
				}
				usersCreated++
			case err != nil:
				return fmt.Errorf("find user %s: %w", su.Phone, err)
			}
			if user.Role == model.RoleDonor {
				donors[user.Phone] = user
			}
		}

		seeded := make(map[string]bool)
		for _, sl := range data.Listings {
			donor, ok := donors[sl.DonorPhone]
			if !ok {
				log.Warnw("skipping listing without donor", "title", sl.Title, "donor_phone", sl.DonorPhone)
				continue
			}
			if !seeded[donor.Phone] {
				existing, err := tx.Listings().ListByDonor(ctx, donor.ID)
				if err != nil {
					return fmt.Errorf("list listings: %w", err)
				}
				if len(existing) > 0 {
					continue
				}
				seeded[donor.Phone] = true
			}

			listing := &model.Listing{
				DonorID:     donor.ID,
				Title:       sl.Title,
				Description: sl.Description,
				Servings:    sl.Servings,
				PickupTime:  sl.PickupTime,
				PickupLat:   sl.PickupLat,
				PickupLng:   sl.PickupLng,
				Status:      model.ListingStatusAvailable,
			}
			if listing.PickupTime == "" {
				listing.PickupTime = "ASAP"
			}
			if err := tx.Listings().Create(ctx, listing); err != nil {
				return fmt.Errorf("create listing %q: %w", sl.Title, err)
			}
			listingsCreated++
		}
		return nil
	})
	return usersCreated, listingsCreated, err
}
