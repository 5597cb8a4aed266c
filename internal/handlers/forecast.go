package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/stocksight/stocksight/internal/forecast"
	"github.com/stocksight/stocksight/internal/models"
	"github.com/stocksight/stocksight/internal/timeseries"
)

// CreateForecast starts a forecast run with the chosen strategy
func (h *Handler) CreateForecast(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	var req models.ForecastRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if req.Strategy == "" {
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_REQUEST", "Strategy is required")
	}

	run, err := entry.session.Forecast(c.Context(), forecast.Request{
		Strategy:  req.Strategy,
		Horizon:   req.Horizon,
		Frequency: timeseries.Frequency(req.Frequency),
		SKUs:      req.SKUs,
	})
	if err != nil {
		var notAllowed *forecast.StrategyNotAllowedError
		if errors.As(err, &notAllowed) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    "STRATEGY_NOT_ALLOWED",
					Message: notAllowed.Error(),
					Path:    c.Path(),
					Details: map[string]interface{}{
						"strategy": notAllowed.Strategy,
						"tier":     notAllowed.Tier,
					},
				},
			})
		}
		var mismatch *forecast.FrequencyMismatchError
		if errors.As(err, &mismatch) {
			return errorJSON(c, fiber.StatusUnprocessableEntity, "FREQUENCY_MISMATCH", mismatch.Error())
		}
		return errorJSON(c, fiber.StatusConflict, "FORECAST_FAILED", err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(run)
}

// ListForecastRuns lists the session's runs, newest first
func (h *Handler) ListForecastRuns(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	return c.JSON(fiber.Map{"runs": entry.session.Factory().ListRuns()})
}

// GetForecastRun returns one stored run by id
func (h *Handler) GetForecastRun(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	run, found := entry.session.Factory().GetRun(c.Params("run"))
	if !found {
		return errorJSON(c, fiber.StatusNotFound, "RUN_NOT_FOUND", "Forecast run not found")
	}
	return c.JSON(run)
}

// DeleteForecastRun discards one stored run
func (h *Handler) DeleteForecastRun(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	if !entry.session.Factory().DeleteRun(c.Params("run")) {
		return errorJSON(c, fiber.StatusNotFound, "RUN_NOT_FOUND", "Forecast run not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetForecastProblems lists a run's review-status items, worst first
func (h *Handler) GetForecastProblems(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	run, found := entry.session.Factory().GetRun(c.Params("run"))
	if !found {
		return errorJSON(c, fiber.StatusNotFound, "RUN_NOT_FOUND", "Forecast run not found")
	}
	problems := run.Problems()
	return c.JSON(fiber.Map{"run_id": run.ID, "problems": problems, "count": len(problems)})
}

// EstimateForecast predicts a run's duration before committing to it
func (h *Handler) EstimateForecast(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	handle, err := entry.session.Handle()
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, "NOT_LOADED", err.Error())
	}

	strategy := c.Query("strategy")
	estimate, err := entry.session.Factory().EstimateDuration(strategy, handle.Len())
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "UNKNOWN_STRATEGY", err.Error())
	}
	return c.JSON(models.ForecastEstimateResponse{
		Strategy:        strategy,
		Items:           handle.Len(),
		EstimatedMillis: estimate.Milliseconds(),
	})
}

// CompareModels benchmarks every registered model on a stratified
// sample of items
func (h *Handler) CompareModels(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	var req models.CompareRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
	}

	comparison, err := entry.session.CompareModels(c.Context(), req.Sample)
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, "COMPARISON_FAILED", err.Error())
	}
	return c.JSON(comparison)
}
