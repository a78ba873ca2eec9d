package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"foodshare/internal/auth"
	"foodshare/internal/cache"
	"foodshare/internal/errors"
	"foodshare/internal/model"
	"foodshare/internal/repository"
)

// RegisterInput carries the fields of a new account.
type RegisterInput struct {
	Phone string `validate:"required,phone"`
	Name  string `validate:"max=100"`
	Role  string `validate:"required"`
}

// PendingVerification names a phone waiting for an OTP. Token is handed back
// on resend and confirm.
type PendingVerification struct {
	Token     string           `json:"pending_token"`
	Phone     string           `json:"phone"`
	Purpose   model.OTPPurpose `json:"purpose"`
	ExpiresAt time.Time        `json:"expires_at"`
}

// Session is the result of a confirmed verification.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         *model.User `json:"user"`
}

type confirmInput struct {
	Code string `validate:"required,len=6,number"`
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*PendingVerification, error)
	Login(ctx context.Context, phone string) (*PendingVerification, error)
	Resend(ctx context.Context, pendingToken string) (*PendingVerification, error)
	Confirm(ctx context.Context, pendingToken, code string) (*Session, error)
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, refreshToken, accessTokenID string) error
}

type authService struct {
	store      repository.Store
	otp        OTPService
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
	cache      *cache.Client
	log        *zap.SugaredLogger
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	store repository.Store,
	otp OTPService,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	cache *cache.Client,
	log *zap.SugaredLogger,
) AuthService {
	return &authService{
		store:      store,
		otp:        otp,
		jwtService: jwtService,
		tokenStore: tokenStore,
		cache:      cache,
		log:        log.With("service", "auth"),
	}
}

// Register creates an unverified user and sends a signup code.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*PendingVerification, error) {
	in.Phone = normalizePhone(in.Phone)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	role, err := model.ParseRole(in.Role)
	if err != nil {
		return nil, errors.Validation("role must be one of donor, receiver, delivery")
	}

	var dispatch *Dispatch
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		_, err := tx.Users().FindByPhone(ctx, in.Phone)
		if err == nil {
			return errors.ErrPhoneTaken
		}
		if !stderrors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check phone: %w", err)
		}

		user := &model.User{Phone: in.Phone, Name: in.Name, Role: role}
		if err := tx.Users().Create(ctx, user); err != nil {
			if stderrors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.ErrPhoneTaken
			}
			return fmt.Errorf("create user: %w", err)
		}

		dispatch, err = s.otp.Stage(ctx, tx.OTPs(), in.Phone, model.OTPPurposeSignup)
		return err
	})
	if err != nil {
		return nil, err
	}
	dispatch.Send(ctx)

	s.log.Infow("user registered", "phone", in.Phone, "role", role)
	return s.pending(in.Phone, model.OTPPurposeSignup)
}

// Login sends a login code to an existing user.
func (s *authService) Login(ctx context.Context, phone string) (*PendingVerification, error) {
	phone = normalizePhone(phone)
	if err := validateInput(struct {
		Phone string `validate:"required,phone"`
	}{phone}); err != nil {
		return nil, err
	}

	if _, err := s.store.Users().FindByPhone(ctx, phone); err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if err := s.otp.Issue(ctx, phone, model.OTPPurposeLogin); err != nil {
		return nil, err
	}
	return s.pending(phone, model.OTPPurposeLogin)
}

// Resend issues another code for an open verification.
func (s *authService) Resend(ctx context.Context, pendingToken string) (*PendingVerification, error) {
	claims, err := s.jwtService.ValidateTokenOfType(pendingToken, auth.TokenTypePending)
	if err != nil {
		return nil, errors.ErrInvalidPendingToken
	}
	if err := s.otp.Issue(ctx, claims.Phone, claims.Purpose); err != nil {
		return nil, err
	}
	return s.pending(claims.Phone, claims.Purpose)
}

// Confirm verifies the code for the pending phone and opens a session.
func (s *authService) Confirm(ctx context.Context, pendingToken, code string) (*Session, error) {
	claims, err := s.jwtService.ValidateTokenOfType(pendingToken, auth.TokenTypePending)
	if err != nil {
		return nil, errors.ErrInvalidPendingToken
	}
	if claims.Purpose != model.OTPPurposeSignup && claims.Purpose != model.OTPPurposeLogin {
		return nil, errors.ErrInvalidPendingToken
	}
	if err := validateInput(confirmInput{Code: code}); err != nil {
		return nil, err
	}

	var user *model.User
	err = s.store.WithTransaction(ctx, func(ctx context.Context, tx repository.Store) error {
		ok, err := s.otp.VerifyWith(ctx, tx.OTPs(), claims.Phone, code, claims.Purpose)
		if err != nil {
			return err
		}
		if !ok {
			return errors.ErrInvalidOTP
		}

		user, err = tx.Users().FindByPhone(ctx, claims.Phone)
		if err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return errors.ErrUserNotFound
			}
			return fmt.Errorf("find user: %w", err)
		}
		if err := tx.Users().MarkVerified(ctx, user.ID); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		user.Verified = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = s.cache.Delete(ctx, userCacheKey(user.ID))

	session, err := s.openSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.log.Infow("user authenticated", "user_id", user.ID, "purpose", claims.Purpose)
	return session, nil
}

// RefreshToken validates a refresh token and returns a new access token.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error) {
	claims, err := s.jwtService.ValidateTokenOfType(refreshToken, auth.TokenTypeRefresh)
	if err != nil {
		return "", errors.ErrInvalidRefreshToken
	}

	// Verify token exists in Redis
	storedUserID, storedPhone, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil {
		return "", errors.ErrInvalidRefreshToken
	}
	if storedUserID != claims.UserID || storedPhone != claims.Phone {
		return "", errors.ErrInvalidRefreshToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return "", errors.ErrInvalidRefreshToken
	}
	user := &model.User{ID: userID, Phone: claims.Phone, Role: claims.Role}

	_, accessToken, err = s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout invalidates a refresh token and blacklists the current access token.
func (s *authService) Logout(ctx context.Context, refreshToken, accessTokenID string) error {
	tokenID, err := s.jwtService.ExtractTokenID(refreshToken)
	if err != nil {
		return errors.ErrInvalidRefreshToken
	}
	if err := s.tokenStore.DeleteRefreshToken(ctx, tokenID); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	if accessTokenID != "" {
		if err := s.tokenStore.BlacklistAccessToken(ctx, accessTokenID, auth.AccessTokenExpiry); err != nil {
			return fmt.Errorf("blacklist access token: %w", err)
		}
	}
	return nil
}

func (s *authService) pending(phone string, purpose model.OTPPurpose) (*PendingVerification, error) {
	token, expiresAt, err := s.jwtService.GeneratePendingToken(phone, purpose)
	if err != nil {
		return nil, fmt.Errorf("generate pending token: %w", err)
	}
	return &PendingVerification{Token: token, Phone: phone, Purpose: purpose, ExpiresAt: expiresAt}, nil
}

func (s *authService) openSession(ctx context.Context, user *model.User) (*Session, error) {
	_, accessToken, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}

	// Store refresh token in Redis
	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID.String(), user.Phone, auth.RefreshTokenExpiry); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Session{AccessToken: accessToken, RefreshToken: refreshToken, User: user}, nil
}
