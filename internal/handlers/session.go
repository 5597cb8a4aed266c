package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/stocksight/stocksight/internal/models"
	"github.com/stocksight/stocksight/internal/pipeline"
)

// CreateSession starts a new analysis session
func (h *Handler) CreateSession(c *fiber.Ctx) error {
	var req models.CreateSessionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(c, err)
		}
	}

	s := pipeline.NewSession(h.cfg, h.logger, h.publisher)
	entry := &sessionEntry{session: s, name: req.Name, createdAt: time.Now()}

	h.mu.Lock()
	h.sessions[s.ID] = entry
	h.mu.Unlock()

	h.logger.Info("Session created", "session_id", s.ID, "name", req.Name)
	return c.Status(fiber.StatusCreated).JSON(h.sessionView(s.ID, entry))
}

// ListSessions lists all live sessions
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	resp := models.SessionListResponse{Sessions: []models.SessionResponse{}}
	for _, id := range h.sessionIDs() {
		h.mu.RLock()
		entry := h.sessions[id]
		h.mu.RUnlock()
		if entry != nil {
			resp.Sessions = append(resp.Sessions, h.sessionView(id, entry))
		}
	}
	return c.JSON(resp)
}

// GetSession returns one session's state
func (h *Handler) GetSession(c *fiber.Ctx) error {
	entry, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	return c.JSON(h.sessionView(c.Params("session"), entry))
}

// DeleteSession discards a session and everything derived from it
func (h *Handler) DeleteSession(c *fiber.Ctx) error {
	id := c.Params("session")
	h.mu.Lock()
	_, ok := h.sessions[id]
	delete(h.sessions, id)
	h.mu.Unlock()
	if !ok {
		return sessionNotFound(c)
	}
	h.logger.Info("Session deleted", "session_id", id)
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) sessionView(id string, entry *sessionEntry) models.SessionResponse {
	resp := models.SessionResponse{
		ID:        id,
		Name:      entry.name,
		CreatedAt: entry.createdAt.Format(time.RFC3339),
	}
	if handle, err := entry.session.Handle(); err == nil {
		resp.Loaded = true
		resp.Items = handle.Len()
	}
	return resp
}
