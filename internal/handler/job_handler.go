package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"foodshare/internal/service"
)

// JobHandler handles fulfillment endpoints.
type JobHandler struct {
	jobService service.JobService
}

// NewJobHandler creates a new job handler.
func NewJobHandler(jobService service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// CodeRequest carries a pickup or delivery code.
type CodeRequest struct {
	Code string `json:"code" validate:"required"`
}

// ListOpen godoc
// @Summary Jobs waiting for a courier
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Job
// @Failure 403 {object} errors.ErrorResponse
// @Router /jobs/open [get]
func (h *JobHandler) ListOpen(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	jobs, err := h.jobService.ListOpen(c.Request().Context(), actor)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, jobs)
}

// ListMine godoc
// @Summary Jobs involving the caller
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Job
// @Router /jobs/mine [get]
func (h *JobHandler) ListMine(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	jobs, err := h.jobService.ListMine(c.Request().Context(), actor)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, jobs)
}

// Get godoc
// @Summary Get job by id
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} model.Job
// @Failure 404 {object} errors.ErrorResponse
// @Router /jobs/{id} [get]
func (h *JobHandler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	job, err := h.jobService.Get(c.Request().Context(), id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, job)
}

// Assign godoc
// @Summary Accept a job as courier
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} model.Job
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /jobs/{id}/assign [post]
func (h *JobHandler) Assign(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	job, err := h.jobService.Assign(c.Request().Context(), actor, id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, job)
}

// StartRoute godoc
// @Summary Mark the courier as on the way
// @Tags jobs
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Success 200 {object} model.Job
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /jobs/{id}/enroute [post]
func (h *JobHandler) StartRoute(c echo.Context) error {
	actor, err := actorFrom(c)
	if err != nil {
		return err
	}
	id, err := pathID(c)
	if err != nil {
		return err
	}
	job, err := h.jobService.StartRoute(c.Request().Context(), actor, id)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, job)
}

// ConfirmPickup godoc
// @Summary Confirm pickup with the donor's code
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param request body CodeRequest true "Pickup code"
// @Success 200 {object} model.Job
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /jobs/{id}/confirm-pickup [post]
func (h *JobHandler) ConfirmPickup(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req CodeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	job, err := h.jobService.ConfirmPickup(c.Request().Context(), id, req.Code)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, job)
}

// ConfirmDelivery godoc
// @Summary Confirm delivery with the receiver's code
// @Tags jobs
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Job ID"
// @Param request body CodeRequest true "Delivery code"
// @Success 200 {object} model.Job
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Router /jobs/{id}/confirm-delivery [post]
func (h *JobHandler) ConfirmDelivery(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req CodeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	job, err := h.jobService.ConfirmDelivery(c.Request().Context(), id, req.Code)
	if err != nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, job)
}
