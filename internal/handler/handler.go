package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"foodshare/internal/auth"
	"foodshare/internal/errors"
	"foodshare/internal/service"
)

// ClaimsContextKey is where the JWT middleware stores the parsed claims.
const ClaimsContextKey = "user"

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// respondError converts a service error into an echo HTTP error.
func respondError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func badRequest(message, code string) error {
	return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// bindAndValidate binds the request body and runs the echo validator.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return badRequest("invalid request body", "INVALID_REQUEST")
	}
	if err := c.Validate(req); err != nil {
		return badRequest(err.Error(), "VALIDATION_ERROR")
	}
	return nil
}

func claimsFrom(c echo.Context) (*auth.Claims, error) {
	claims, ok := c.Get(ClaimsContextKey).(*auth.Claims)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "invalid token",
			Code:  "UNAUTHORIZED",
		})
	}
	return claims, nil
}

// actorFrom builds the calling actor from the access token claims.
func actorFrom(c echo.Context) (service.Actor, error) {
	claims, err := claimsFrom(c)
	if err != nil {
		return service.Actor{}, err
	}
	id, err := claims.UserUUID()
	if err != nil {
		return service.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
			Error: "invalid token subject",
			Code:  "UNAUTHORIZED",
		})
	}
	return service.Actor{UserID: id, Role: claims.Role}, nil
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid id", "INVALID_UUID")
	}
	return id, nil
}
