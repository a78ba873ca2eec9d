package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"foodshare/internal/model"
)

const (
	// AccessTokenExpiry is the duration for which access tokens are valid.
	AccessTokenExpiry = 15 * time.Minute
	// RefreshTokenExpiry is the duration for which refresh tokens are valid.
	RefreshTokenExpiry = 7 * 24 * time.Hour
	// DefaultPendingTokenExpiry bounds how long a phone may stay in pending verification.
	DefaultPendingTokenExpiry = 15 * time.Minute
)

// TokenType distinguishes the three kinds of token signed with the same key.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
	TokenTypePending TokenType = "pending"
)

// Claims represents JWT claims.
type Claims struct {
	UserID  string           `json:"user_id,omitempty"`
	Phone   string           `json:"phone"`
	Role    model.Role       `json:"role,omitempty"`
	Purpose model.OTPPurpose `json:"purpose,omitempty"`
	Type    TokenType        `json:"typ"`
	jwt.RegisteredClaims
}

// JWTService handles JWT token generation and validation.
type JWTService struct {
	secret     []byte
	pendingTTL time.Duration
	now        func() time.Time
}

// NewJWTService creates a new JWT service with the given secret.
func NewJWTService(secret string) *JWTService {
	return &JWTService{
		secret:     []byte(secret),
		pendingTTL: DefaultPendingTokenExpiry,
		now:        time.Now,
	}
}

// WithPendingTTL overrides how long pending tokens stay valid.
func (s *JWTService) WithPendingTTL(ttl time.Duration) *JWTService {
	if ttl > 0 {
		s.pendingTTL = ttl
	}
	return s
}

// GenerateAccessToken generates a new access token for the user.
// The token ID is returned so it can be blacklisted on logout.
func (s *JWTService) GenerateAccessToken(user *model.User) (tokenID string, token string, err error) {
	tokenID = generateTokenID()
	token, err = s.sign(&Claims{
		UserID: user.ID.String(),
		Phone:  user.Phone,
		Role:   user.Role,
		Type:   TokenTypeAccess,
	}, tokenID, AccessTokenExpiry)
	return tokenID, token, err
}

// GenerateRefreshToken generates a new refresh token for the user.
// The refresh token ID is returned separately for storage in Redis.
func (s *JWTService) GenerateRefreshToken(user *model.User) (tokenID string, token string, err error) {
	tokenID = generateTokenID()
	token, err = s.sign(&Claims{
		UserID: user.ID.String(),
		Phone:  user.Phone,
		Role:   user.Role,
		Type:   TokenTypeRefresh,
	}, tokenID, RefreshTokenExpiry)
	return tokenID, token, err
}

// GeneratePendingToken names the phone and purpose awaiting OTP confirmation.
func (s *JWTService) GeneratePendingToken(phone string, purpose model.OTPPurpose) (token string, expiresAt time.Time, err error) {
	expiresAt = s.now().Add(s.pendingTTL)
	token, err = s.sign(&Claims{
		Phone:   phone,
		Purpose: purpose,
		Type:    TokenTypePending,
	}, generateTokenID(), s.pendingTTL)
	return token, expiresAt, err
}

func (s *JWTService) sign(claims *Claims, tokenID string, ttl time.Duration) (string, error) {
	now := s.now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        tokenID,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken validates a JWT token and returns the claims.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))

	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

// ValidateTokenOfType validates a token and checks its type.
func (s *JWTService) ValidateTokenOfType(tokenString string, want TokenType) (*Claims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != want {
		return nil, errors.New("unexpected token type")
	}
	return claims, nil
}

// ExtractTokenID extracts the token ID (JTI) from a refresh token.
func (s *JWTService) ExtractTokenID(tokenString string) (string, error) {
	claims, err := s.ValidateTokenOfType(tokenString, TokenTypeRefresh)
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("token ID not found")
	}
	return claims.ID, nil
}

// UserUUID parses the user id carried by access and refresh tokens.
func (c *Claims) UserUUID() (uuid.UUID, error) {
	return uuid.Parse(c.UserID)
}

// generateTokenID generates a unique token ID.
func generateTokenID() string {
	return uuid.New().String()
}
