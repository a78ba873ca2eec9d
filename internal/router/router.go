package router

import (
	stderrors "errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"foodshare/internal/auth"
	"foodshare/internal/errors"
	"foodshare/internal/handler"
)

// Handlers groups the HTTP handlers served by the API.
type Handlers struct {
	Auth    *handler.AuthHandler
	User    *handler.UserHandler
	Listing *handler.ListingHandler
	Job     *handler.JobHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	h Handlers,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/register", h.Auth.Register)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/resend", h.Auth.Resend)
	api.POST("/auth/confirm", h.Auth.Confirm)
	api.POST("/auth/refresh", h.Auth.Refresh)

	// Secured routes (require JWT authentication)
	secured := api.Group("", echojwt.WithConfig(echojwt.Config{
		ContextKey:     handler.ClaimsContextKey,
		TokenLookup:    "header:" + echo.HeaderAuthorization + ":Bearer ",
		ParseTokenFunc: AccessTokenParser(jwtService, tokenStore),
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
				Error: "missing or invalid access token",
				Code:  "UNAUTHORIZED",
			})
		},
	}))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/me", h.User.Me)

	// Listing routes
	secured.POST("/listings", h.Listing.Create)
	secured.GET("/listings", h.Listing.ListAvailable)
	secured.GET("/listings/mine", h.Listing.ListMine)
	secured.GET("/listings/:id", h.Listing.Get)
	secured.POST("/listings/:id/request", h.Listing.Request)

	// Job routes
	secured.GET("/jobs/open", h.Job.ListOpen)
	secured.GET("/jobs/mine", h.Job.ListMine)
	secured.GET("/jobs/:id", h.Job.Get)
	secured.POST("/jobs/:id/assign", h.Job.Assign)
	secured.POST("/jobs/:id/enroute", h.Job.StartRoute)
	secured.POST("/jobs/:id/confirm-pickup", h.Job.ConfirmPickup)
	secured.POST("/jobs/:id/confirm-delivery", h.Job.ConfirmDelivery)
}

var errTokenRevoked = stderrors.New("access token revoked")

// AccessTokenParser accepts only access tokens that were not revoked by logout.
func AccessTokenParser(jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface) func(c echo.Context, token string) (interface{}, error) {
	return func(c echo.Context, token string) (interface{}, error) {
		claims, err := jwtService.ValidateTokenOfType(token, auth.TokenTypeAccess)
		if err != nil {
			return nil, err
		}
		revoked, err := tokenStore.IsAccessTokenBlacklisted(c.Request().Context(), claims.ID)
		if err != nil {
			return nil, err
		}
		if revoked {
			return nil, errTokenRevoked
		}
		return claims, nil
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
