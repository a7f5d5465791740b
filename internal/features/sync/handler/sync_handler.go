package handler

import (
	"errors"

	"luckygas-dispatch/internal/core/auth"
	routesdomain "luckygas-dispatch/internal/features/routes/domain"
	"luckygas-dispatch/internal/features/sync/domain"
	"luckygas-dispatch/internal/features/sync/service"

	"github.com/gofiber/fiber/v2"
)

// SyncHandler handles the driver offline-sync endpoint.
type SyncHandler struct {
	reconciler *service.Reconciler
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(reconciler *service.Reconciler) *SyncHandler {
	return &SyncHandler{
		reconciler: reconciler,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// SyncResponse is the wire form of a reconciliation result.
type SyncResponse struct {
	SyncedCount   int                  `json:"synced_count"`
	FailedCount   int                  `json:"failed_count"`
	SyncedItems   []domain.SyncedItem  `json:"synced_items"`
	FailedItems   []domain.FailedItem  `json:"failed_items"`
	UpdatedRoutes []routesdomain.Route `json:"updated_routes"`
	UpdatedStats  routesdomain.Stats   `json:"updated_stats"`
}

// Sync godoc
// @Summary Reconcile a batch of offline-recorded driver events
// @Description Applies location pings and delivery status changes captured while offline. Items are deduplicated by their client-generated id, so resubmitting a batch after a network failure is safe.
// @Tags sync
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param batch body domain.SyncBatch true "Offline event batch"
// @Success 200 {object} SyncResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /driver/sync [post]
func (h *SyncHandler) Sync(c *fiber.Ctx) error {
	driverID := auth.Subject(c)
	if driverID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
			Message: "driver identity is required",
			RayID:   rayID(c),
		})
	}

	var batch domain.SyncBatch
	if err := c.BodyParser(&batch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Message: "malformed sync batch",
			RayID:   rayID(c),
		})
	}

	result, err := h.reconciler.Reconcile(c.UserContext(), driverID, batch)
	if err != nil {
		if errors.Is(err, service.ErrEmptyBatch) {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
				Message: "batch contains no items",
				RayID:   rayID(c),
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Message: err.Error(),
			RayID:   rayID(c),
		})
	}

	return c.JSON(SyncResponse{
		SyncedCount:   result.SyncedCount(),
		FailedCount:   result.FailedCount(),
		SyncedItems:   result.SyncedItems,
		FailedItems:   result.FailedItems,
		UpdatedRoutes: result.UpdatedRoutes,
		UpdatedStats:  result.UpdatedStats,
	})
}

func rayID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}
