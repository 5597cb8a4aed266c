package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// GetClusters classifies every item by volume tier and demand pattern.
// Results are cached until the dataset changes.
func (h *Handler) GetClusters(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	result, err := entry.session.Classify(c.Context())
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, "CLUSTER_FAILED", err.Error())
	}
	return c.JSON(result)
}
