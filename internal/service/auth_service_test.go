package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"foodshare/internal/auth"
	"foodshare/internal/errors"
	"foodshare/internal/model"
)

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name        string
		input       RegisterInput
		existing    bool
		expectedErr error
	}{
		{
			name:  "successful registration",
			input: RegisterInput{Phone: "+1555", Name: "Ada", Role: "donor"},
		},
		{
			name:  "role is case insensitive",
			input: RegisterInput{Phone: "+1 555-01", Name: "Ada", Role: " Receiver "},
		},
		{
			name:        "phone already registered",
			input:       RegisterInput{Phone: "+1555", Name: "Ada", Role: "donor"},
			existing:    true,
			expectedErr: errors.ErrPhoneTaken,
		},
		{
			name:        "unknown role",
			input:       RegisterInput{Phone: "+1555", Name: "Ada", Role: "admin"},
			expectedErr: errors.ErrValidation,
		},
		{
			name:        "malformed phone",
			input:       RegisterInput{Phone: "call me", Name: "Ada", Role: "donor"},
			expectedErr: errors.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			env := newTestEnv(t)
			if tt.existing {
				env.user(t, "+1555", model.RoleReceiver)
			}

			pending, err := env.auth.Register(ctx, tt.input)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, pending)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, model.OTPPurposeSignup, pending.Purpose)
			assert.NotEmpty(t, pending.Token)

			user, err := env.store.Users().FindByPhone(ctx, pending.Phone)
			require.NoError(t, err)
			assert.False(t, user.Verified)
			assert.Equal(t, 1, env.notifier.count(pending.Phone, model.OTPPurposeSignup))
		})
	}
}

// Register, receive the signup code, confirm it and end up authenticated.
func TestAuthService_RegisterAndConfirm(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.tokens.On("StoreRefreshToken", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("string"), "+1555", auth.RefreshTokenExpiry).Return(nil)

	pending, err := env.auth.Register(ctx, RegisterInput{Phone: "+1555", Name: "Ada", Role: "donor"})
	require.NoError(t, err)

	code := env.notifier.last("+1555", model.OTPPurposeSignup)
	session, err := env.auth.Confirm(ctx, pending.Token, code)
	require.NoError(t, err)
	assert.True(t, session.User.Verified)
	assert.Equal(t, model.RoleDonor, session.User.Role)

	claims, err := env.jwt.ValidateTokenOfType(session.AccessToken, auth.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID.String(), claims.UserID)

	stored, err := env.store.Users().FindByPhone(ctx, "+1555")
	require.NoError(t, err)
	assert.True(t, stored.Verified)
	env.tokens.AssertExpectations(t)
}

func TestAuthService_ConfirmWrongCodeStaysPending(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.tokens.On("StoreRefreshToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	pending, err := env.auth.Register(ctx, RegisterInput{Phone: "+1555", Role: "receiver"})
	require.NoError(t, err)
	code := env.notifier.last("+1555", model.OTPPurposeSignup)
	wrong := "000000"
	if code == wrong {
		wrong = "999999"
	}

	_, err = env.auth.Confirm(ctx, pending.Token, wrong)
	assert.ErrorIs(t, err, errors.ErrInvalidOTP)

	user, err := env.store.Users().FindByPhone(ctx, "+1555")
	require.NoError(t, err)
	assert.False(t, user.Verified)

	// The same pending token still works with the right code.
	_, err = env.auth.Confirm(ctx, pending.Token, code)
	require.NoError(t, err)
}

func TestAuthService_ConfirmRejectsBadPendingToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	user := env.user(t, "+1555", model.RoleDonor)

	_, err := env.auth.Confirm(ctx, "garbage", "123456")
	assert.ErrorIs(t, err, errors.ErrInvalidPendingToken)

	// An access token is not a pending token.
	_, access, err := env.jwt.GenerateAccessToken(&model.User{ID: user.UserID, Phone: "+1555", Role: model.RoleDonor})
	require.NoError(t, err)
	_, err = env.auth.Confirm(ctx, access, "123456")
	assert.ErrorIs(t, err, errors.ErrInvalidPendingToken)

	// Pickup codes cannot open a session.
	pickup, _, err := env.jwt.GeneratePendingToken("+1555", model.OTPPurposePickup)
	require.NoError(t, err)
	_, err = env.auth.Confirm(ctx, pickup, "123456")
	assert.ErrorIs(t, err, errors.ErrInvalidPendingToken)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.user(t, "+1555", model.RoleDelivery)
	env.tokens.On("StoreRefreshToken", mock.Anything, mock.Anything, mock.Anything, "+1555", auth.RefreshTokenExpiry).Return(nil)

	_, err := env.auth.Login(ctx, "+1999")
	assert.ErrorIs(t, err, errors.ErrUserNotFound)

	pending, err := env.auth.Login(ctx, "+1555")
	require.NoError(t, err)
	assert.Equal(t, model.OTPPurposeLogin, pending.Purpose)

	session, err := env.auth.Confirm(ctx, pending.Token, env.notifier.last("+1555", model.OTPPurposeLogin))
	require.NoError(t, err)
	assert.Equal(t, model.RoleDelivery, session.User.Role)
}

func TestAuthService_Resend(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.user(t, "+1555", model.RoleDonor)

	pending, err := env.auth.Login(ctx, "+1555")
	require.NoError(t, err)

	again, err := env.auth.Resend(ctx, pending.Token)
	require.NoError(t, err)
	assert.Equal(t, pending.Phone, again.Phone)
	assert.Equal(t, model.OTPPurposeLogin, again.Purpose)
	assert.Equal(t, 2, env.notifier.count("+1555", model.OTPPurposeLogin))

	_, err = env.auth.Resend(ctx, "garbage")
	assert.ErrorIs(t, err, errors.ErrInvalidPendingToken)
}

func TestAuthService_RefreshToken(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	actor := env.user(t, "+1555", model.RoleReceiver)
	user := &model.User{ID: actor.UserID, Phone: "+1555", Role: model.RoleReceiver}

	tokenID, refresh, err := env.jwt.GenerateRefreshToken(user)
	require.NoError(t, err)

	env.tokens.On("GetRefreshToken", mock.Anything, tokenID).Return(user.ID.String(), "+1555", nil).Once()
	access, err := env.auth.RefreshToken(ctx, refresh)
	require.NoError(t, err)
	claims, err := env.jwt.ValidateTokenOfType(access, auth.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, model.RoleReceiver, claims.Role)

	env.tokens.On("GetRefreshToken", mock.Anything, tokenID).Return("", "", assert.AnError).Once()
	_, err = env.auth.RefreshToken(ctx, refresh)
	assert.ErrorIs(t, err, errors.ErrInvalidRefreshToken)

	_, err = env.auth.RefreshToken(ctx, "invalid.token")
	assert.ErrorIs(t, err, errors.ErrInvalidRefreshToken)
	env.tokens.AssertExpectations(t)
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	actor := env.user(t, "+1555", model.RoleDonor)
	user := &model.User{ID: actor.UserID, Phone: "+1555", Role: model.RoleDonor}

	tokenID, refresh, err := env.jwt.GenerateRefreshToken(user)
	require.NoError(t, err)

	env.tokens.On("DeleteRefreshToken", mock.Anything, tokenID).Return(nil)
	env.tokens.On("BlacklistAccessToken", mock.Anything, "access-jti", auth.AccessTokenExpiry).Return(nil)

	require.NoError(t, env.auth.Logout(ctx, refresh, "access-jti"))
	assert.ErrorIs(t, env.auth.Logout(ctx, "invalid.token", ""), errors.ErrInvalidRefreshToken)
	env.tokens.AssertExpectations(t)
}

func TestConfirmInput_RejectsNonDigits(t *testing.T) {
	for _, code := range []string{"-12345", "+12345", "1.2345", "12 345", "12345", "1234567", "abcdef"} {
		err := validateInput(confirmInput{Code: code})
		assert.Equal(t, errors.KindValidation, errors.KindOf(err), "code %q", code)
	}
	assert.NoError(t, validateInput(confirmInput{Code: "012345"}))
}

func TestAuthService_MalformedCodeIsNotCounted(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	pending, err := env.auth.Register(ctx, RegisterInput{Phone: "+1555", Role: "donor"})
	require.NoError(t, err)

	_, err = env.auth.Confirm(ctx, pending.Token, "-12345")
	assert.Equal(t, errors.KindValidation, errors.KindOf(err))
	assert.Zero(t, env.limiter.failures[otpKey("+1555", model.OTPPurposeSignup)])
}
