package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"foodshare/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Phone string `json:"phone" validate:"required"`
	Name  string `json:"name"`
	Role  string `json:"role" validate:"required"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Phone string `json:"phone" validate:"required"`
}

// ResendRequest asks for another code for an open verification.
type ResendRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
}

// ConfirmRequest submits the code for an open verification.
type ConfirmRequest struct {
	PendingToken string `json:"pending_token" validate:"required"`
	Code         string `json:"code" validate:"required"`
}

// RefreshRequest represents a token refresh request.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest represents a logout request.
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthResponse represents an authentication response.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	User         interface{} `json:"user,omitempty"`
}

// Register godoc
// @Summary Register a new user and send a signup code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} service.PendingVerification
// @Failure 400 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	pending, err := h.authService.Register(c.Request().Context(), service.RegisterInput{
		Phone: req.Phone,
		Name:  req.Name,
		Role:  req.Role,
	})
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusCreated, pending)
}

// Login godoc
// @Summary Send a login code to a registered phone
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Phone"
// @Success 200 {object} service.PendingVerification
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	pending, err := h.authService.Login(c.Request().Context(), req.Phone)
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusOK, pending)
}

// Resend godoc
// @Summary Send another code for an open verification
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ResendRequest true "Pending token"
// @Success 200 {object} service.PendingVerification
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /auth/resend [post]
func (h *AuthHandler) Resend(c echo.Context) error {
	var req ResendRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	pending, err := h.authService.Resend(c.Request().Context(), req.PendingToken)
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusOK, pending)
}

// Confirm godoc
// @Summary Confirm a signup or login code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body ConfirmRequest true "Pending token and code"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /auth/confirm [post]
func (h *AuthHandler) Confirm(c echo.Context) error {
	var req ConfirmRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	session, err := h.authService.Confirm(c.Request().Context(), req.PendingToken, req.Code)
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken:  session.AccessToken,
		RefreshToken: session.RefreshToken,
		User:         session.User,
	})
}

// Refresh godoc
// @Summary Refresh access token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} AuthResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req RefreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	accessToken, err := h.authService.RefreshToken(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusOK, AuthResponse{
		AccessToken: accessToken,
	})
}

// Logout godoc
// @Summary Logout user
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body LogoutRequest true "Refresh token"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	var req LogoutRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	claims, err := claimsFrom(c)
	if err != nil {
		return err
	}

	if err := h.authService.Logout(c.Request().Context(), req.RefreshToken, claims.ID); err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "logged out successfully"})
}
