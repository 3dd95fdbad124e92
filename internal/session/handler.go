package session

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/medkiosk/voice/internal/shared"
)

// Handler serves the kiosk control surface: live presence and hourly usage
// counters.
type Handler struct {
	store  *Store
	logger *slog.Logger
}

func NewHandler(store *Store, logger *slog.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/kiosks/:id/sessions", h.ActiveSessions)
	g.GET("/kiosks/:id/metrics", h.GetMetrics)
}

func (h *Handler) ActiveSessions(c echo.Context) error {
	kioskID := c.Param("id")

	sessions, err := h.store.ActiveSessions(c.Request().Context(), kioskID)
	if err != nil {
		h.logger.Error("failed to list active sessions", "error", err, "kiosk_id", kioskID)
		return shared.InternalError("list_failed", "failed to list sessions")
	}
	if sessions == nil {
		sessions = []*Session{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"kiosk_id": kioskID,
		"total":    len(sessions),
		"sessions": sessions,
	})
}

func (h *Handler) GetMetrics(c echo.Context) error {
	kioskID := c.Param("id")

	hours := 24
	if hoursStr := c.QueryParam("hours"); hoursStr != "" {
		if hr, err := strconv.Atoi(hoursStr); err == nil && hr > 0 && hr <= 168 {
			hours = hr
		}
	}

	metrics, err := h.store.GetMetrics(c.Request().Context(), kioskID, hours)
	if err != nil {
		h.logger.Error("failed to get metrics", "error", err, "kiosk_id", kioskID)
		return shared.InternalError("get_metrics_failed", "failed to get metrics")
	}
	if metrics == nil {
		metrics = []*Metrics{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"kiosk_id": kioskID,
		"hours":    hours,
		"metrics":  metrics,
	})
}
