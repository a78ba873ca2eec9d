package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"foodshare/internal/cache"
	"foodshare/internal/errors"
	"foodshare/internal/model"
	"foodshare/internal/notify"
	"foodshare/internal/repository"
)

const (
	// DefaultOTPTTL is how long an issued code stays valid.
	DefaultOTPTTL = 5 * time.Minute
	otpDigits     = 6
)

var otpSpace = big.NewInt(1_000_000)

// OTPService issues and verifies one-time codes.
type OTPService interface {
	// Issue persists a new code and hands it to the notifier.
	Issue(ctx context.Context, phone string, purpose model.OTPPurpose) error
	// Stage persists a new code through otps and returns the delivery to run
	// once the surrounding transaction has committed.
	Stage(ctx context.Context, otps repository.OTPRepository, phone string, purpose model.OTPPurpose) (*Dispatch, error)
	// Verify consumes at most one live code matching code. A mismatch is
	// reported as false with a nil error.
	Verify(ctx context.Context, phone, code string, purpose model.OTPPurpose) (bool, error)
	// VerifyWith is Verify running against a caller supplied repository,
	// usually one bound to an open transaction.
	VerifyWith(ctx context.Context, otps repository.OTPRepository, phone, code string, purpose model.OTPPurpose) (bool, error)
	// Prune deletes used and expired codes.
	Prune(ctx context.Context) (int64, error)
	// StartSweeper runs Prune every interval until ctx is done.
	StartSweeper(ctx context.Context, interval time.Duration)
}

// Dispatch is a staged code waiting to be delivered.
type Dispatch struct {
	phone    string
	code     string
	purpose  model.OTPPurpose
	notifier notify.Notifier
	log      *zap.SugaredLogger
}

// Send delivers the code. Delivery failures are logged, not returned.
func (d *Dispatch) Send(ctx context.Context) {
	if d == nil {
		return
	}
	if err := d.notifier.Notify(ctx, d.phone, d.code, d.purpose); err != nil {
		d.log.Warnw("otp delivery failed", "phone", d.phone, "purpose", d.purpose, "error", err)
	}
}

// OTPOptions tunes code lifetime and hashing.
type OTPOptions struct {
	TTL      time.Duration
	HashCost int
	Now      func() time.Time
}

type otpService struct {
	store    repository.Store
	notifier notify.Notifier
	limiter  AttemptLimiter
	log      *zap.SugaredLogger

	ttl      time.Duration
	hashCost int
	now      func() time.Time

	// Mutex map for per (phone, purpose) verification
	keyMutexes sync.Map
}

// NewOTPService creates the OTP engine.
func NewOTPService(store repository.Store, notifier notify.Notifier, limiter AttemptLimiter, log *zap.SugaredLogger, opts OTPOptions) OTPService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultOTPTTL
	}
	if opts.HashCost == 0 {
		opts.HashCost = bcrypt.DefaultCost
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if limiter == nil {
		limiter = NoopLimiter{}
	}
	return &otpService{
		store:    store,
		notifier: notifier,
		limiter:  limiter,
		log:      log.With("service", "otp"),
		ttl:      opts.TTL,
		hashCost: opts.HashCost,
		now:      opts.Now,
	}
}

// getMutex returns a mutex for a specific phone and purpose.
func (s *otpService) getMutex(key string) *sync.Mutex {
	value, _ := s.keyMutexes.LoadOrStore(key, &sync.Mutex{})
	return value.(*sync.Mutex)
}

func otpKey(phone string, purpose model.OTPPurpose) string {
	return string(purpose) + ":" + phone
}

func (s *otpService) Issue(ctx context.Context, phone string, purpose model.OTPPurpose) error {
	d, err := s.Stage(ctx, s.store.OTPs(), phone, purpose)
	if err != nil {
		return err
	}
	d.Send(ctx)
	return nil
}

func (s *otpService) Stage(ctx context.Context, otps repository.OTPRepository, phone string, purpose model.OTPPurpose) (*Dispatch, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("unknown otp purpose %q", purpose)
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("hash otp: %w", err)
	}

	record := &model.OTP{
		Phone:     phone,
		CodeHash:  string(hash),
		Purpose:   purpose,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := otps.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store otp: %w", err)
	}

	s.log.Infow("otp issued", "phone", phone, "purpose", purpose, "expires_at", record.ExpiresAt)
	return &Dispatch{phone: phone, code: code, purpose: purpose, notifier: s.notifier, log: s.log}, nil
}

func (s *otpService) Verify(ctx context.Context, phone, code string, purpose model.OTPPurpose) (bool, error) {
	var ok bool
	err := s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		var err error
		ok, err = s.VerifyWith(ctx, tx.OTPs(), phone, code, purpose)
		return err
	})
	return ok, err
}

func (s *otpService) VerifyWith(ctx context.Context, otps repository.OTPRepository, phone, code string, purpose model.OTPPurpose) (bool, error) {
	key := otpKey(phone, purpose)
	mu := s.getMutex(key)
	mu.Lock()
	defer mu.Unlock()

	if !s.limiter.Allow(ctx, key) {
		s.log.Warnw("otp attempts exhausted", "phone", phone, "purpose", purpose)
		return false, errors.ErrTooManyAttempts
	}

	candidates, err := otps.FindUnused(ctx, phone, purpose)
	if err != nil {
		return false, fmt.Errorf("load otps: %w", err)
	}

	now := s.now()
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.Expired(now) {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(candidate.CodeHash), []byte(code)) != nil {
			continue
		}
		consumed, err := otps.MarkUsed(ctx, candidate.ID)
		if err != nil {
			return false, fmt.Errorf("consume otp: %w", err)
		}
		if !consumed {
			// Lost the race to another verifier.
			continue
		}
		s.limiter.Reset(ctx, key)
		return true, nil
	}

	s.limiter.Fail(ctx, key)
	return false, nil
}

func (s *otpService) Prune(ctx context.Context) (int64, error) {
	removed, err := s.store.OTPs().DeleteStale(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("prune otps: %w", err)
	}
	return removed, nil
}

func (s *otpService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := s.Prune(ctx)
			if err != nil {
				s.log.Errorw("otp sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				s.log.Infow("otp sweep", "removed", removed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// generateCode returns a zero padded code drawn uniformly from 000000-999999.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// AttemptLimiter throttles failed verifications per key.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) bool
	Fail(ctx context.Context, key string)
	Reset(ctx context.Context, key string)
}

// NoopLimiter never throttles.
type NoopLimiter struct{}

func (NoopLimiter) Allow(context.Context, string) bool { return true }
func (NoopLimiter) Fail(context.Context, string)       {}
func (NoopLimiter) Reset(context.Context, string)      {}

const attemptKeyPrefix = "otp_attempts:"

// RedisLimiter counts failures in redis. An unreachable redis lets every
// attempt through.
type RedisLimiter struct {
	cache  *cache.Client
	max    int
	window time.Duration
}

// NewRedisLimiter allows max failures per window for each key.
func NewRedisLimiter(c *cache.Client, max int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{cache: c, max: max, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	if l.max <= 0 {
		return true
	}
	data, _ := l.cache.Get(ctx, attemptKeyPrefix+key)
	if data == nil {
		return true
	}
	failures, err := strconv.Atoi(string(data))
	if err != nil {
		return true
	}
	return failures < l.max
}

func (l *RedisLimiter) Fail(ctx context.Context, key string) {
	l.cache.Incr(ctx, attemptKeyPrefix+key, l.window)
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) {
	_ = l.cache.Delete(ctx, attemptKeyPrefix+key)
}
