package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/stocksight/stocksight/internal/dataset"
	"github.com/stocksight/stocksight/internal/models"
	"github.com/stocksight/stocksight/internal/timeseries"
)

// Load reads transaction data into the session, from a server-side CSV
// file or inline rows, using the confirmed column mapping
func (h *Handler) Load(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	var req models.LoadRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}

	freq := timeseries.Frequency(req.Frequency)
	if req.Frequency == "" {
		freq = timeseries.FrequencyDaily
	}
	if !freq.Valid() {
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_FREQUENCY",
			"Frequency must be daily, weekly or monthly")
	}

	var src dataset.ChunkSource
	switch {
	case req.Path != "":
		csvSrc, err := dataset.OpenCSV(req.Path, 0, h.cfg.Dataset)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "SOURCE_ERROR", err.Error())
		}
		src = csvSrc
	case len(req.Header) > 0:
		src = dataset.NewSliceSource(req.Header, req.Rows, 0)
	default:
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_REQUEST",
			"Either path or header/rows must be provided")
	}
	defer src.Close()

	handle, err := entry.session.Load(c.Context(), src, freq)
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, "LOAD_FAILED", err.Error())
	}

	return c.JSON(models.LoadResponse{
		Items:     handle.Len(),
		Frequency: string(handle.Frequency),
	})
}
