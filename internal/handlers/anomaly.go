package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/stocksight/stocksight/internal/anomaly"
	"github.com/stocksight/stocksight/internal/models"
)

// DetectAnomalies runs the configured detection methods over every item
func (h *Handler) DetectAnomalies(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	var req models.DetectAnomaliesRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
	}

	found, err := entry.session.DetectAnomalies(c.Context(), req.Methods)
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, "DETECTION_FAILED", err.Error())
	}

	total := 0
	for _, points := range found {
		total += len(points)
	}
	return c.JSON(fiber.Map{"items": found, "flagged_items": len(found), "points": total})
}

// GetAnomalies returns detected anomalies, for one item when the sku
// query parameter is set
func (h *Handler) GetAnomalies(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	if sku := c.Query("sku"); sku != "" {
		points := entry.session.Anomalies(sku)
		if points == nil {
			points = []anomaly.Point{}
		}
		return c.JSON(fiber.Map{"sku": sku, "points": points})
	}

	skus := entry.session.AnomalyItems()
	all := make(map[string][]anomaly.Point, len(skus))
	for _, sku := range skus {
		all[sku] = entry.session.Anomalies(sku)
	}
	return c.JSON(fiber.Map{"items": all, "flagged_items": len(all)})
}

// GetReviewQueue returns the undecided anomalies across all items,
// highest severity first
func (h *Handler) GetReviewQueue(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	queue := entry.session.ReviewQueue()
	if queue == nil {
		queue = []anomaly.Point{}
	}
	return c.JSON(fiber.Map{"queue": queue, "count": len(queue)})
}

// ApplyDispositions applies review decisions to detected anomalies.
// Undecided points stay pending; only the decided ones are touched.
func (h *Handler) ApplyDispositions(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	var req models.DispositionsRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if len(req.Decisions) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_REQUEST", "No decisions provided")
	}

	var points []anomaly.Point
	for _, d := range req.Decisions {
		disposition := anomaly.Disposition(d.Disposition)
		if !disposition.Valid() {
			return errorJSON(c, fiber.StatusBadRequest, "INVALID_DISPOSITION",
				"Unknown disposition: "+d.Disposition)
		}
		date, err := time.Parse("2006-01-02", d.Date)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "INVALID_DATE",
				"Date must be YYYY-MM-DD: "+d.Date)
		}

		matched := false
		for _, p := range entry.session.Anomalies(d.SKU) {
			if p.Date.Equal(date) {
				p.Disposition = disposition
				points = append(points, p)
				matched = true
				break
			}
		}
		if !matched {
			return errorJSON(c, fiber.StatusNotFound, "POINT_NOT_FOUND",
				"No detected anomaly for "+d.SKU+" on "+d.Date)
		}
	}

	res, err := entry.session.ApplyDispositions(c.Context(), points)
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, "DISPOSITION_FAILED", err.Error())
	}
	return c.JSON(models.DispositionsResponse{
		Corrected: res.Corrected,
		Removed:   res.Removed,
		Flagged:   res.Flagged,
	})
}
