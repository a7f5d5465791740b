package handler

import (
	"luckygas-dispatch/internal/features/sync/ports"

	"github.com/gofiber/fiber/v2"
)

// LocationHandler exposes the driver-location read model to office staff.
type LocationHandler struct {
	store ports.EventStore
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(store ports.EventStore) *LocationHandler {
	return &LocationHandler{
		store: store,
	}
}

// GetCurrentLocation godoc
// @Summary Get a driver's most recent location
// @Tags locations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Driver ID"
// @Success 200 {object} domain.DriverLocation
// @Failure 404 {object} ErrorResponse
// @Router /drivers/{id}/location [get]
func (h *LocationHandler) GetCurrentLocation(c *fiber.Ctx) error {
	driverID := c.Params("id")

	location, err := h.store.CurrentLocation(c.UserContext(), driverID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: "failed to read driver location",
			RayID:   rayID(c),
		})
	}
	if location == nil {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Message: "no location recorded for driver",
			RayID:   rayID(c),
		})
	}

	return c.JSON(location)
}

// GetLocationTrail godoc
// @Summary Get a driver's recent location trail
// @Tags locations
// @Produce json
// @Security BearerAuth
// @Param id path string true "Driver ID"
// @Param limit query int false "Maximum number of pings, newest first"
// @Success 200 {array} domain.DriverLocation
// @Router /drivers/{id}/locations [get]
func (h *LocationHandler) GetLocationTrail(c *fiber.Ctx) error {
	driverID := c.Params("id")
	limit := c.QueryInt("limit", 100)

	trail, err := h.store.LocationTrail(c.UserContext(), driverID, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: "failed to read driver trail",
			RayID:   rayID(c),
		})
	}

	return c.JSON(trail)
}
