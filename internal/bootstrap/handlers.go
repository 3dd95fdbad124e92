package bootstrap

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/medkiosk/voice/internal/audio"
	"github.com/medkiosk/voice/internal/convlog"
	"github.com/medkiosk/voice/internal/greeting"
	"github.com/medkiosk/voice/internal/health"
	"github.com/medkiosk/voice/internal/hospital"
	"github.com/medkiosk/voice/internal/panel"
	"github.com/medkiosk/voice/internal/session"
	"github.com/medkiosk/voice/internal/shared"
	"github.com/medkiosk/voice/internal/voicesession"
	"go.uber.org/fx"
)

type noopEmbeddingService struct{}

func (n *noopEmbeddingService) Generate(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, 384), nil
}

func ProvideEmbeddingService() hospital.EmbeddingService {
	return &noopEmbeddingService{}
}

// noopSynthesizer renders a short silence so sessions work before a real TTS
// backend is wired in.
type noopSynthesizer struct{}

func (n *noopSynthesizer) Synthesize(ctx context.Context, text string, language shared.Language) ([]byte, error) {
	return make([]byte, audio.PlaybackRate), nil
}

func ProvideSynthesizer() greeting.Synthesizer {
	return &noopSynthesizer{}
}

type HandlerParams struct {
	fx.In

	SessionHandler *voicesession.Handler
	PanelHandler   *panel.Handler
	KioskHandler   *session.Handler
	ConvLogHandler *convlog.Handler
	HealthHandler  *health.Handler
}

func RegisterRoutes(e *echo.Echo, params HandlerParams) {
	api := e.Group("/v1")

	params.SessionHandler.RegisterRoutes(api)
	params.PanelHandler.RegisterRoutes(api)
	params.KioskHandler.RegisterRoutes(api)
	params.ConvLogHandler.RegisterRoutes(api)
	params.HealthHandler.RegisterRoutes(e)
}

// PreloadGreetings warms the greeting cache on startup and stops the
// conversation recorder on shutdown.
func PreloadGreetings(lc fx.Lifecycle, cache *greeting.Cache, recorder *convlog.Recorder, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := cache.Preload(ctx); err != nil {
				logger.Warn("greeting preload incomplete", "error", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			recorder.Close()
			return nil
		},
	})
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

var HandlersModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideEmbeddingService,
		ProvideSynthesizer,
	),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(PreloadGreetings),
)
