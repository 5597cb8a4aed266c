package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/stocksight/stocksight/internal/health"
	"github.com/stocksight/stocksight/internal/models"
)

// GetQuality analyzes dataset health, or returns the cached report when
// the data has not changed since the last analysis
func (h *Handler) GetQuality(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	if report := entry.session.Quality(); report != nil {
		return c.JSON(report)
	}
	report, err := entry.session.AnalyzeQuality(c.Context())
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, "QUALITY_FAILED", err.Error())
	}
	return c.JSON(report)
}

// RepairData applies the repair policy and returns the post-repair report
func (h *Handler) RepairData(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	var req models.RepairRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
	}

	policy := health.PolicyFromConfig(h.cfg.Quality)
	if req.Missing != "" {
		policy.Missing = req.Missing
	}
	if req.Duplicates != "" {
		policy.Duplicates = req.Duplicates
	}
	if req.Negatives != "" {
		policy.Negatives = req.Negatives
	}
	if req.Outliers != "" {
		policy.Outliers = req.Outliers
	}

	report, err := entry.session.Repair(c.Context(), policy)
	if err != nil {
		var policyErr *health.RepairPolicyError
		if errors.As(err, &policyErr) {
			return errorJSON(c, fiber.StatusBadRequest, "INVALID_POLICY", policyErr.Error())
		}
		return errorJSON(c, fiber.StatusConflict, "REPAIR_FAILED", err.Error())
	}
	return c.JSON(report)
}

// GetPendingIssues lists data points flagged for follow-up review
func (h *Handler) GetPendingIssues(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	issues := entry.session.PendingIssues()
	if issues == nil {
		issues = []health.PendingIssue{}
	}
	return c.JSON(fiber.Map{"issues": issues, "count": len(issues)})
}
