package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"foodshare/internal/auth"
	"foodshare/internal/logger"
	"foodshare/internal/model"
	"foodshare/internal/repository/memory"
)

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID string, userID string, phone string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, userID, phone, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (string, string, error) {
	args := m.Called(ctx, tokenID)
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

// recordingNotifier keeps every code it was asked to deliver.
type recordingNotifier struct {
	mu    sync.Mutex
	codes map[string][]string
	err   error
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{codes: make(map[string][]string)}
}

func (n *recordingNotifier) Notify(_ context.Context, phone, code string, purpose model.OTPPurpose) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	key := otpKey(phone, purpose)
	n.codes[key] = append(n.codes[key], code)
	return n.err
}

func (n *recordingNotifier) last(phone string, purpose model.OTPPurpose) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.codes[otpKey(phone, purpose)]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

func (n *recordingNotifier) count(phone string, purpose model.OTPPurpose) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.codes[otpKey(phone, purpose)])
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// countingLimiter is an in-process AttemptLimiter.
type countingLimiter struct {
	mu       sync.Mutex
	max      int
	failures map[string]int
}

func newCountingLimiter(max int) *countingLimiter {
	return &countingLimiter{max: max, failures: make(map[string]int)}
}

func (l *countingLimiter) Allow(_ context.Context, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[key] < l.max
}

func (l *countingLimiter) Fail(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[key]++
}

func (l *countingLimiter) Reset(_ context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.failures, key)
}

type testEnv struct {
	store    *memory.Store
	notifier *recordingNotifier
	clock    *testClock
	limiter  *countingLimiter
	jwt      *auth.JWTService
	tokens   *MockTokenStore

	otp      OTPService
	auth     AuthService
	listings ListingService
	jobs     JobService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.Nop()

	env := &testEnv{
		store:    memory.New(),
		notifier: newRecordingNotifier(),
		clock:    &testClock{now: time.Now()},
		limiter:  newCountingLimiter(5),
		jwt:      auth.NewJWTService("test-secret"),
		tokens:   new(MockTokenStore),
	}
	env.otp = NewOTPService(env.store, env.notifier, env.limiter, log, OTPOptions{
		TTL:      DefaultOTPTTL,
		HashCost: bcrypt.MinCost,
		Now:      env.clock.Now,
	})
	env.auth = NewAuthService(env.store, env.otp, env.jwt, env.tokens, nil, log)
	env.listings = NewListingService(env.store, log)
	env.jobs = NewJobService(env.store, env.otp, log)
	return env
}

// user creates a verified user and returns it as an actor.
func (e *testEnv) user(t *testing.T, phone string, role model.Role) Actor {
	t.Helper()
	u := &model.User{Phone: phone, Name: string(role), Role: role, Verified: true}
	require.NoError(t, e.store.Users().Create(context.Background(), u))
	return Actor{UserID: u.ID, Role: role}
}
