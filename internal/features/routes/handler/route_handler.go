package handler

import (
	"luckygas-dispatch/internal/core/auth"
	"luckygas-dispatch/internal/features/routes/service"

	"github.com/gofiber/fiber/v2"
)

// RouteHandler handles HTTP requests for driver route snapshots.
type RouteHandler struct {
	routeService *service.RouteService
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(routeService *service.RouteService) *RouteHandler {
	return &RouteHandler{
		routeService: routeService,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// GetRoutes godoc
// @Summary Get the authenticated driver's route snapshot
// @Description Returns today's assigned routes with per-stop delivery status and progress stats
// @Tags routes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} domain.Snapshot
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router /driver/routes [get]
func (h *RouteHandler) GetRoutes(c *fiber.Ctx) error {
	driverID := auth.Subject(c)
	if driverID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Message: "driver identity is required",
			RayID:   rayID(c),
		})
	}

	snapshot, err := h.routeService.Snapshot(c.UserContext(), driverID)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{
			Message: "failed to load route snapshot",
			RayID:   rayID(c),
		})
	}

	return c.JSON(snapshot)
}

func rayID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
