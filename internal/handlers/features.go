package handlers

import (
	"math"
	"sort"

	"github.com/gofiber/fiber/v2"

	"github.com/stocksight/stocksight/internal/features"
	"github.com/stocksight/stocksight/internal/models"
)

// BuildFeatures computes tier-appropriate feature sets for the
// requested items, reusing cached sets while the data is unchanged
func (h *Handler) BuildFeatures(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	var req models.FeaturesRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
	}

	sets, err := entry.session.BuildFeatures(c.Context(), req.SKUs, req.Advanced)
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, "FEATURES_FAILED", err.Error())
	}

	built := make([]string, 0, len(sets))
	for sku := range sets {
		built = append(built, sku)
	}
	sort.Strings(built)
	return c.JSON(models.FeaturesResponse{Built: built})
}

// GetFeatureSet returns one item's feature matrix
func (h *Handler) GetFeatureSet(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	sku := c.Params("sku")
	sets, err := entry.session.BuildFeatures(c.Context(), []string{sku}, c.QueryBool("advanced"))
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, "FEATURES_FAILED", err.Error())
	}
	fs, ok := sets[sku]
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "ITEM_NOT_FOUND", "Unknown item: "+sku)
	}
	return c.JSON(featureView(fs))
}

// featureView replaces warmup NaNs with nulls so the matrix encodes as
// valid JSON
func featureView(fs *features.FeatureSet) fiber.Map {
	columns := make(map[string][]*float64, len(fs.Columns))
	for name, values := range fs.Columns {
		columns[name] = nullableColumn(values)
	}
	return fiber.Map{
		"sku":      fs.SKU,
		"preset":   fs.Preset,
		"advanced": fs.Advanced,
		"names":    fs.Names,
		"columns":  columns,
		"target":   fs.Target,
	}
}

func nullableColumn(values []float64) []*float64 {
	out := make([]*float64, len(values))
	for i := range values {
		if !math.IsNaN(values[i]) {
			v := values[i]
			out[i] = &v
		}
	}
	return out
}

// GetFeatureImportance ranks one item's features by target correlation
func (h *Handler) GetFeatureImportance(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}

	sku := c.Params("sku")
	sets, err := entry.session.BuildFeatures(c.Context(), []string{sku}, c.QueryBool("advanced"))
	if err != nil {
		return errorJSON(c, fiber.StatusConflict, "FEATURES_FAILED", err.Error())
	}
	fs, ok := sets[sku]
	if !ok {
		return errorJSON(c, fiber.StatusNotFound, "ITEM_NOT_FOUND", "Unknown item: "+sku)
	}
	return c.JSON(fiber.Map{"sku": sku, "ranking": features.Importance(fs)})
}
