package bootstrap

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/medkiosk/voice/internal/audio"
	"github.com/medkiosk/voice/internal/convlog"
	"github.com/medkiosk/voice/internal/greeting"
	"github.com/medkiosk/voice/internal/health"
	"github.com/medkiosk/voice/internal/hospital"
	"github.com/medkiosk/voice/internal/live"
	"github.com/medkiosk/voice/internal/panel"
	"github.com/medkiosk/voice/internal/playback"
	"github.com/medkiosk/voice/internal/session"
	"github.com/medkiosk/voice/internal/tools"
	"github.com/medkiosk/voice/internal/voicesession"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideToolDispatcher(store *hospital.Store, embedder hospital.EmbeddingService, recorder *convlog.Recorder, logger *slog.Logger) *tools.Dispatcher {
	return tools.NewDispatcher(store, embedder, logger.With("component", "tools"), tools.WithRecorder(recorder))
}

func ProvideDialer() voicesession.Dialer {
	return func(cfg live.Config, handlers live.Handlers, log *slog.Logger) voicesession.Transport {
		return live.New(cfg, handlers, log)
	}
}

// headlessCapture is the default microphone for sessions created over the
// REST API with no panel attached: it never emits samples, so the session is
// driven purely by text injection.
type headlessCapture struct{}

func (h *headlessCapture) Start(emit func([]float32)) error { return nil }
func (h *headlessCapture) Stop() error                      { return nil }
func (h *headlessCapture) SampleRate() int                  { return audio.CaptureRate }

// discardSink drops playback audio for headless sessions.
type discardSink struct{}

func (d *discardSink) Play(ctx context.Context, samples []float32) error { return nil }

func liveEndpoint(cfg *Config) string {
	if cfg.LiveAPIKey == "" {
		return cfg.LiveURL
	}
	return cfg.LiveURL + "?key=" + url.QueryEscape(cfg.LiveAPIKey)
}

func ProvideVoiceSessionManager(
	lc fx.Lifecycle,
	cfg *Config,
	dial voicesession.Dialer,
	dispatcher *tools.Dispatcher,
	greetings *greeting.Cache,
	recorder *convlog.Recorder,
	presence *session.Store,
	logger *slog.Logger,
) *voicesession.Manager {
	m := voicesession.NewManager(voicesession.ManagerConfig{
		LiveURL:          liveEndpoint(cfg),
		Model:            cfg.LiveModel,
		VoiceName:        cfg.LiveVoice,
		HandshakeTimeout: cfg.LiveHandshakeTimeout,
		Declarations:     tools.Declarations(),
		Dial:             dial,
		Devices: voicesession.Devices{
			NewCapture: func() voicesession.CaptureSource { return &headlessCapture{} },
			NewSink:    func() playback.Sink { return &discardSink{} },
		},
		Tools:    dispatcher,
		Greeting: greetings,
		Recorder: recorder,
		Presence: presence,
		Log:      logger,
	})

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return m.Close()
		},
	})
	return m
}

func ProvideSessionHandler(manager *voicesession.Manager, logger *slog.Logger) *voicesession.Handler {
	return voicesession.NewHandler(manager, logger.With("handler", "voicesession"))
}

func ProvidePanelHandler(manager *voicesession.Manager, logger *slog.Logger) *panel.Handler {
	return panel.NewHandler(manager, logger.With("handler", "panel"))
}

func ProvideKioskHandler(store *session.Store, logger *slog.Logger) *session.Handler {
	return session.NewHandler(store, logger.With("handler", "kiosk"))
}

func ProvideConvLogHandler(recorder *convlog.Recorder, logger *slog.Logger) *convlog.Handler {
	return convlog.NewHandler(recorder, logger.With("handler", "convlog"))
}

func ProvideHealthHandler(db *gorm.DB, redisClient *redis.Client, qdrantClient *qdrant.Client, cfg *Config, manager *voicesession.Manager) *health.Handler {
	return health.NewHandler(db, redisClient, qdrantClient, cfg.LiveURL, manager, cfg.Version)
}

var VoiceModule = fx.Options(
	fx.Provide(
		ProvideToolDispatcher,
		ProvideDialer,
		ProvideVoiceSessionManager,
		ProvideSessionHandler,
		ProvidePanelHandler,
		ProvideKioskHandler,
		ProvideConvLogHandler,
		ProvideHealthHandler,
	),
)
