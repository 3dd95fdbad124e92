package convlog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/medkiosk/voice/internal/shared"
)

const defaultLogLimit = 200

// Handler exposes a session's conversation log for review.
type Handler struct {
	recorder *Recorder
	logger   *slog.Logger
}

func NewHandler(recorder *Recorder, logger *slog.Logger) *Handler {
	return &Handler{recorder: recorder, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/sessions/:id/log", h.BySession)
}

func (h *Handler) BySession(c echo.Context) error {
	sessionID := c.Param("id")

	limit := defaultLogLimit
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}

	entries, err := h.recorder.BySession(c.Request().Context(), sessionID, limit)
	if err != nil {
		h.logger.Error("failed to load conversation log", "error", err, "session_id", sessionID)
		return shared.InternalError("log_read_failed", "failed to load conversation log")
	}
	if entries == nil {
		entries = []*Entry{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"session_id": sessionID,
		"total":      len(entries),
		"entries":    entries,
	})
}
