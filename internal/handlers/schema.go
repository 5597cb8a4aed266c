package handlers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/stocksight/stocksight/internal/models"
	"github.com/stocksight/stocksight/internal/schema"
)

// DetectSchema scores every column of the sample against the known
// roles without committing to a mapping
func (h *Handler) DetectSchema(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	var req models.SchemaRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}
	if len(req.Header) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_REQUEST", "Header must not be empty")
	}

	detections := entry.session.DetectSchema(req.Header, req.Rows)
	return c.JSON(models.DetectionResponse{Detections: detections})
}

// ResolveSchema assigns the best column per role. A tie between
// candidate columns is reported back for the caller to break with a
// remap, never guessed past.
func (h *Handler) ResolveSchema(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	var req models.SchemaRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}

	mapping, err := entry.session.ResolveSchema(req.Header, req.Rows)
	if err != nil {
		var ambiguous *schema.AmbiguousMappingError
		if errors.As(err, &ambiguous) {
			return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    "AMBIGUOUS_MAPPING",
					Message: ambiguous.Error(),
					Path:    c.Path(),
					Details: map[string]interface{}{
						"role":    string(ambiguous.Role),
						"columns": ambiguous.Columns,
						"score":   ambiguous.Score,
					},
				},
			})
		}
		return errorJSON(c, fiber.StatusBadRequest, "SCHEMA_ERROR", err.Error())
	}

	return c.JSON(mappingView(mapping))
}

// RemapColumn overrides one role assignment before confirmation
func (h *Handler) RemapColumn(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	var req models.RemapRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(c, err)
	}

	mapping, err := entry.session.RemapColumn(schema.Role(req.Role), req.Column)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "REMAP_ERROR", err.Error())
	}
	return c.JSON(mappingView(mapping))
}

// ConfirmMapping locks the mapping so data can be loaded
func (h *Handler) ConfirmMapping(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	if err := entry.session.ConfirmMapping(); err != nil {
		return errorJSON(c, fiber.StatusConflict, "MAPPING_INCOMPLETE", err.Error())
	}
	return c.JSON(mappingView(entry.session.Mapping()))
}

// GetMapping returns the current column mapping
func (h *Handler) GetMapping(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	mapping := entry.session.Mapping()
	if mapping == nil {
		return errorJSON(c, fiber.StatusNotFound, "NO_MAPPING",
			fmt.Sprintf("Session %s has no resolved mapping yet", c.Params("session")))
	}
	return c.JSON(mappingView(mapping))
}

func mappingView(m *schema.ColumnMapping) models.MappingResponse {
	resp := models.MappingResponse{
		Columns:    make(map[string]string, len(m.Columns)),
		Confidence: make(map[string]float64, len(m.Confidence)),
		Confirmed:  m.Confirmed,
	}
	for role, col := range m.Columns {
		resp.Columns[string(role)] = col
	}
	for role, conf := range m.Confidence {
		resp.Confidence[string(role)] = conf
	}
	return resp
}
