package panel

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/medkiosk/voice/internal/shared"
	"github.com/medkiosk/voice/internal/voicesession"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler upgrades kiosk front panels to a duplex audio socket and binds a
// voice session to each.
type Handler struct {
	manager *voicesession.Manager
	logger  *slog.Logger
}

func NewHandler(manager *voicesession.Manager, logger *slog.Logger) *Handler {
	return &Handler{manager: manager, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/panel", h.Connect)
}

// Connect runs for the lifetime of the panel connection.
func (h *Handler) Connect(c echo.Context) error {
	kioskID := c.QueryParam("kiosk_id")
	if kioskID == "" {
		return shared.BadRequest("missing_kiosk", "kiosk_id is required")
	}

	language := shared.Language(c.QueryParam("language"))
	if language != "" && !language.Valid() {
		return shared.BadRequest("invalid_language", "language must be en-IN or ta-IN")
	}

	nativeRate := 0
	if rate := c.QueryParam("sample_rate"); rate != "" {
		parsed, err := strconv.Atoi(rate)
		if err != nil || parsed <= 0 {
			return shared.BadRequest("invalid_sample_rate", "sample_rate must be a positive integer")
		}
		nativeRate = parsed
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	conn := NewConn(ws, nativeRate, h.logger.With("kiosk_id", kioskID))
	sess, err := h.manager.CreateSessionWithDevices(c.Request().Context(), kioskID, language, conn, conn)
	if err != nil {
		h.logger.Error("failed to start panel session", "kiosk_id", kioskID, "error", err)
		_ = conn.Close()
		return nil
	}

	conn.SetOnClose(func() {
		h.manager.RemoveSession(context.Background(), sess.ID())
	})

	go conn.PingLoop()
	conn.ReadPump()
	return nil
}
