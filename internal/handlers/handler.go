package handlers

import (
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/stocksight/stocksight/internal/config"
	"github.com/stocksight/stocksight/internal/logging"
	"github.com/stocksight/stocksight/internal/models"
	"github.com/stocksight/stocksight/internal/pipeline"
	"github.com/stocksight/stocksight/internal/queue"
)

// Handler contains all HTTP handlers
type Handler struct {
	logger    *logging.Logger
	cfg       *config.Config
	publisher queue.Publisher

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	session   *pipeline.Session
	name      string
	createdAt time.Time
}

// New creates a new handler instance
func New(logger *logging.Logger, publisher queue.Publisher, cfg *config.Config) *Handler {
	return &Handler{
		logger:    logger,
		cfg:       cfg,
		publisher: publisher,
		sessions:  make(map[string]*sessionEntry),
	}
}

// session resolves the :session route parameter to a live session
func (h *Handler) session(c *fiber.Ctx) (*sessionEntry, bool) {
	id := c.Params("session")
	h.mu.RLock()
	entry, ok := h.sessions[id]
	h.mu.RUnlock()
	return entry, ok
}

func (h *Handler) sessionIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func errorJSON(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(models.ErrorResponse{
		Error: models.ErrorDetail{
			Code:    code,
			Message: message,
			Path:    c.Path(),
		},
	})
}

func sessionNotFound(c *fiber.Ctx) error {
	return errorJSON(c, fiber.StatusNotFound, "SESSION_NOT_FOUND", "Session not found")
}

func invalidBody(c *fiber.Ctx, err error) error {
	return errorJSON(c, fiber.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error())
}
