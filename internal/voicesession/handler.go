package voicesession

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/medkiosk/voice/internal/shared"
)

// Handler exposes the kiosk session API.
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/sessions", h.CreateSession)
	g.GET("/sessions", h.ListSessions)
	g.GET("/sessions/:id", h.GetSession)
	g.POST("/sessions/:id/select-slot", h.SelectSlot)
	g.DELETE("/sessions/:id", h.EndSession)
}

type createSessionRequest struct {
	KioskID  string          `json:"kiosk_id"`
	Language shared.Language `json:"language"`
}

type sessionResponse struct {
	SessionID string          `json:"session_id"`
	KioskID   string          `json:"kiosk_id"`
	Language  shared.Language `json:"language"`
	State     State           `json:"state"`
}

func (h *Handler) CreateSession(c echo.Context) error {
	var req createSessionRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.KioskID == "" {
		return shared.BadRequest("missing_kiosk", "kiosk_id is required")
	}
	if req.Language != "" && !req.Language.Valid() {
		return shared.BadRequest("invalid_language", "language must be en-IN or ta-IN")
	}

	s, err := h.manager.CreateSession(c.Request().Context(), req.KioskID, req.Language)
	if err != nil {
		h.logger.Error("failed to create session", "kiosk_id", req.KioskID, "error", err)
		return shared.InternalError("session_failed", "failed to start voice session")
	}

	return c.JSON(http.StatusCreated, sessionResponse{
		SessionID: s.ID(),
		KioskID:   s.KioskID(),
		Language:  s.Language(),
		State:     s.State(),
	})
}

func (h *Handler) ListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"sessions": h.manager.ListSessions(),
		"count":    h.manager.SessionCount(),
	})
}

func (h *Handler) GetSession(c echo.Context) error {
	s, ok := h.manager.GetSession(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "session not found")
	}
	return c.JSON(http.StatusOK, sessionResponse{
		SessionID: s.ID(),
		KioskID:   s.KioskID(),
		Language:  s.Language(),
		State:     s.State(),
	})
}

type selectSlotRequest struct {
	SlotID   int64  `json:"slot_id"`
	SlotTime string `json:"slot_time"`
}

// SelectSlot lets the touch UI confirm a spoken slot without a voice round
// trip.
func (h *Handler) SelectSlot(c echo.Context) error {
	s, ok := h.manager.GetSession(c.Param("id"))
	if !ok {
		return shared.NotFound("session_not_found", "session not found")
	}

	var req selectSlotRequest
	if err := c.Bind(&req); err != nil {
		return shared.BadRequest("invalid_request", "invalid request body")
	}
	if req.SlotID == 0 {
		return shared.BadRequest("missing_slot", "slot_id is required")
	}

	if err := s.SelectSlot(req.SlotID, req.SlotTime); err != nil {
		return shared.InternalError("inject_failed", "failed to send slot selection")
	}
	return c.NoContent(http.StatusAccepted)
}

func (h *Handler) EndSession(c echo.Context) error {
	id := c.Param("id")
	if _, ok := h.manager.GetSession(id); !ok {
		return shared.NotFound("session_not_found", "session not found")
	}
	h.manager.RemoveSession(c.Request().Context(), id)
	return c.NoContent(http.StatusNoContent)
}
