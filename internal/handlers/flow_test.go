package handlers

import (
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stocksight/stocksight/internal/models"
)

// startLoadedSession drives the schema flow and loads three items over
// HTTP, returning the session id
func startLoadedSession(t *testing.T, app *fiber.App, items map[string][]float64) string {
	t.Helper()
	header, rows := salesRows(items)

	resp := doJSON(t, app, "POST", "/v1/sessions", nil)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var created models.SessionResponse
	decodeBody(t, resp, &created)

	sample := rows
	if len(sample) > 100 {
		sample = sample[:100]
	}
	resp = doJSON(t, app, "POST", "/v1/sessions/"+created.ID+"/schema/resolve",
		models.SchemaRequest{Header: header, Rows: sample})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var mapping models.MappingResponse
	decodeBody(t, resp, &mapping)
	require.Equal(t, "date", mapping.Columns["date"])
	require.Equal(t, "sku", mapping.Columns["item_id"])
	require.Equal(t, "quantity", mapping.Columns["quantity"])

	resp = doJSON(t, app, "POST", "/v1/sessions/"+created.ID+"/schema/confirm", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, "POST", "/v1/sessions/"+created.ID+"/load",
		models.LoadRequest{Header: header, Rows: rows, Frequency: "daily"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var loaded models.LoadResponse
	decodeBody(t, resp, &loaded)
	require.Equal(t, len(items), loaded.Items)

	return created.ID
}

func flowItems() map[string][]float64 {
	items := map[string][]float64{
		"SKU-A": steadyDemand(60, 100),
		"SKU-B": steadyDemand(60, 40),
		"SKU-C": steadyDemand(60, 10),
	}
	items["SKU-C"][30] = 900
	return items
}

func TestHandler_PipelineFlow(t *testing.T) {
	h := newTestHandler()
	app := testApp(h)
	id := startLoadedSession(t, app, flowItems())

	// quality
	resp := doJSON(t, app, "GET", "/v1/sessions/"+id+"/quality", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var quality struct {
		Score float64 `json:"score"`
	}
	decodeBody(t, resp, &quality)
	assert.Greater(t, quality.Score, 0.0)

	// clusters
	resp = doJSON(t, app, "GET", "/v1/sessions/"+id+"/clusters", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var clusters struct {
		Assignments map[string]struct {
			VolumeTier string `json:"volume_tier"`
		} `json:"assignments"`
	}
	decodeBody(t, resp, &clusters)
	assert.Len(t, clusters.Assignments, 3)

	// anomaly detection finds the spike
	resp = doJSON(t, app, "POST", "/v1/sessions/"+id+"/anomalies/detect", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var detected struct {
		FlaggedItems int `json:"flagged_items"`
		Points       int `json:"points"`
	}
	decodeBody(t, resp, &detected)
	require.GreaterOrEqual(t, detected.FlaggedItems, 1)

	// undecided points queue up for review, worst first
	resp = doJSON(t, app, "GET", "/v1/sessions/"+id+"/anomalies/review", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var review struct {
		Count int `json:"count"`
	}
	decodeBody(t, resp, &review)
	assert.GreaterOrEqual(t, review.Count, 1)

	// remove the spike
	resp = doJSON(t, app, "POST", "/v1/sessions/"+id+"/anomalies/dispositions",
		models.DispositionsRequest{Decisions: []models.DispositionDecision{
			{SKU: "SKU-C", Date: "2024-01-31", Disposition: "remove"},
		}})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var applied models.DispositionsResponse
	decodeBody(t, resp, &applied)
	assert.Equal(t, 1, applied.Removed)

	// features
	resp = doJSON(t, app, "POST", "/v1/sessions/"+id+"/features", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var built models.FeaturesResponse
	decodeBody(t, resp, &built)
	assert.Len(t, built.Built, 3)

	resp = doJSON(t, app, "GET", "/v1/sessions/"+id+"/features/SKU-A", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/v1/sessions/"+id+"/features/SKU-A/importance", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// forecast
	resp = doJSON(t, app, "POST", "/v1/sessions/"+id+"/forecast/runs",
		models.ForecastRequest{Strategy: "simple", Horizon: 6})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var run struct {
		ID      string `json:"id"`
		Summary struct {
			Items int `json:"items"`
		} `json:"summary"`
	}
	decodeBody(t, resp, &run)
	require.NotEmpty(t, run.ID)
	assert.Equal(t, 3, run.Summary.Items)

	resp = doJSON(t, app, "GET", "/v1/sessions/"+id+"/forecast/runs/"+run.ID, nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/v1/sessions/"+id+"/forecast/runs/"+run.ID+"/problems", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp = doJSON(t, app, "GET", "/v1/sessions/"+id+"/forecast/estimate?strategy=simple", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var estimate models.ForecastEstimateResponse
	decodeBody(t, resp, &estimate)
	assert.Equal(t, 3, estimate.Items)

	resp = doJSON(t, app, "DELETE", "/v1/sessions/"+id+"/forecast/runs/"+run.ID, nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}

func TestHandler_QualityBeforeLoad(t *testing.T) {
	h := newTestHandler()
	app := testApp(h)

	resp := doJSON(t, app, "POST", "/v1/sessions", nil)
	var created models.SessionResponse
	decodeBody(t, resp, &created)

	resp = doJSON(t, app, "GET", "/v1/sessions/"+created.ID+"/quality", nil)
	require.Equal(t, fiber.StatusConflict, resp.StatusCode)

	var errResp models.ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "QUALITY_FAILED", errResp.Error.Code)
}

func TestHandler_AdvancedStrategyScopesToTierA(t *testing.T) {
	h := newTestHandler()
	app := testApp(h)
	id := startLoadedSession(t, app, flowItems())

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/forecast/runs",
		models.ForecastRequest{Strategy: "advanced"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	var run struct {
		Items map[string]struct {
			Tier string `json:"tier"`
		} `json:"items"`
	}
	decodeBody(t, resp, &run)
	require.Len(t, run.Items, 1)
	require.Contains(t, run.Items, "SKU-A")
	assert.Equal(t, "A", run.Items["SKU-A"].Tier)
}

func TestHandler_AdvancedStrategyRejectsExplicitLowTier(t *testing.T) {
	h := newTestHandler()
	app := testApp(h)
	id := startLoadedSession(t, app, flowItems())

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/forecast/runs",
		models.ForecastRequest{Strategy: "advanced", SKUs: []string{"SKU-A", "SKU-C"}})
	require.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	var errResp models.ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "STRATEGY_NOT_ALLOWED", errResp.Error.Code)
	assert.Equal(t, "C", errResp.Error.Details["tier"])
}

func TestHandler_ForecastWeeklyResample(t *testing.T) {
	h := newTestHandler()
	app := testApp(h)
	id := startLoadedSession(t, app, flowItems())

	// weekly can be derived from daily data by summing; daily cannot
	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/forecast/runs",
		models.ForecastRequest{Strategy: "simple", Horizon: 4, Frequency: "weekly"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var run struct {
		Frequency string `json:"frequency"`
	}
	decodeBody(t, resp, &run)
	assert.Equal(t, "weekly", run.Frequency)
}

func TestHandler_InvalidDisposition(t *testing.T) {
	h := newTestHandler()
	app := testApp(h)
	id := startLoadedSession(t, app, flowItems())

	resp := doJSON(t, app, "POST", "/v1/sessions/"+id+"/anomalies/dispositions",
		models.DispositionsRequest{Decisions: []models.DispositionDecision{
			{SKU: "SKU-C", Date: "2024-01-31", Disposition: "nuke"},
		}})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	var errResp models.ErrorResponse
	decodeBody(t, resp, &errResp)
	assert.Equal(t, "INVALID_DISPOSITION", errResp.Error.Code)
}

func TestHandler_LoadRequiresSource(t *testing.T) {
	h := newTestHandler()
	app := testApp(h)

	resp := doJSON(t, app, "POST", "/v1/sessions", nil)
	var created models.SessionResponse
	decodeBody(t, resp, &created)

	resp = doJSON(t, app, "POST", "/v1/sessions/"+created.ID+"/load",
		models.LoadRequest{Frequency: "daily"})
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
