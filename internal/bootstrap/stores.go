package bootstrap

import (
	"log/slog"

	"github.com/medkiosk/voice/internal/convlog"
	"github.com/medkiosk/voice/internal/greeting"
	"github.com/medkiosk/voice/internal/hospital"
	"github.com/medkiosk/voice/internal/session"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideHospitalStore(db *gorm.DB, qdrantClient *qdrant.Client) *hospital.Store {
	return hospital.NewStore(db, qdrantClient)
}

func ProvideSessionStore(redisClient *redis.Client) *session.Store {
	return session.NewStore(redisClient)
}

func ProvideConversationRecorder(db *gorm.DB, logger *slog.Logger) *convlog.Recorder {
	return convlog.NewRecorder(db, 0, logger.With("component", "convlog"))
}

func ProvideGreetingCache(redisClient *redis.Client, synth greeting.Synthesizer, logger *slog.Logger) *greeting.Cache {
	return greeting.NewCache(redisClient, synth, logger.With("component", "greeting"))
}

func RunMigrations(hospitalStore *hospital.Store, recorder *convlog.Recorder) error {
	if err := hospitalStore.Migrate(); err != nil {
		return err
	}
	return recorder.Migrate()
}

var StoresModule = fx.Options(
	fx.Provide(
		ProvideHospitalStore,
		ProvideSessionStore,
		ProvideConversationRecorder,
		ProvideGreetingCache,
	),
	fx.Invoke(RunMigrations),
)
