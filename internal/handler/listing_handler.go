package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"foodshare/internal/service"
)

// ListingHandler handles donation endpoints.
type ListingHandler struct {
	listingService service.ListingService
}

// NewListingHandler creates a new listing handler.
func NewListingHandler(listingService service.ListingService) *ListingHandler {
	return &ListingHandler{listingService: listingService}
}

// CreateListingRequest represents a new donation.
type CreateListingRequest struct {
	Title       string           `json:"title" validate:"required"`
	Description string           `json:"description"`
	Servings    int              `json:"servings" validate:"required"`
	PickupTime  string           `json:"pickup_time"`
	PickupLat   *decimal.Decimal `json:"pickup_lat,omitempty" swaggertype:"string"`
	PickupLng   *decimal.Decimal `json:"pickup_lng,omitempty" swaggertype:"string"`
}

// Create godoc
// @Summary Post a donation
// @Tags listings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateListingRequest true "Listing data"
// @Success 201 {object} model.Listing
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /listings [post]
func (h *ListingHandler) Create(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	var req CreateListingRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	listing, err := h.listingService.Create(c.Request().Context(), actor, service.CreateListingInput{
		Title:       req.Title,
		Description: req.Description,
		Servings:    req.Servings,
		PickupTime:  req.PickupTime,
		PickupLat:   req.PickupLat,
		PickupLng:   req.PickupLng,
	})
	if err != nil {
		return respondError(err)
	}

	return c.JSON(http.StatusCreated, listing)
}

// ListAvailable godoc
// @Summary Listings open for requests
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Listing
// @Failure 403 {object} errors.ErrorResponse
// @Router /listings [get]
func (h *ListingHandler) ListAvailable(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	listings, err := h.listingService.ListAvailable(c.Request().Context(), actor)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, listings)
}

// ListMine godoc
// @Summary Donor's own listings
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Listing
// @Failure 403 {object} errors.ErrorResponse
// @Router /listings/mine [get]
func (h *ListingHandler) ListMine(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	listings, err := h.listingService.ListMine(c.Request().Context(), actor)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, listings)
}

// Get godoc
// @Summary Get listing by id
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Listing ID"
// @Success 200 {object} model.Listing
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /listings/{id} [get]
func (h *ListingHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	listing, err := h.listingService.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, listing)
}

// Request godoc
// @Summary Request a listing
// @Tags listings
// @Produce json
// @Security BearerAuth
// @Param id path string true "Listing ID"
// @Success 201 {object} model.Job
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /listings/{id}/request [post]
func (h *ListingHandler) Request(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	job, err := h.listingService.Request(c.Request().Context(), actor, id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusCreated, job)
}
