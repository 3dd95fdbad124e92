package greeting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/medkiosk/voice/internal/shared"
	"github.com/redis/go-redis/v9"
)

const greetingTTL = 24 * time.Hour

// Texts are the fixed kiosk welcome lines, keyed by language.
var Texts = map[shared.Language]string{
	shared.LanguageEnglish: "Welcome to SIMS Assistant. How can I help you today?",
	shared.LanguageTamil:   "SIMS உதவியாளருக்கு வரவேற்கிறோம். இன்று நான் உங்களுக்கு எப்படி உதவ முடியும்?",
}

// Synthesizer renders greeting text as 24kHz PCM16 audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, language shared.Language) ([]byte, error)
}

// Cache keeps pre-rendered greeting audio in redis so a new session can play
// its welcome line without waiting on synthesis.
type Cache struct {
	redis *redis.Client
	synth Synthesizer
	log   *slog.Logger
}

func NewCache(redisClient *redis.Client, synth Synthesizer, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		redis: redisClient,
		synth: synth,
		log:   log,
	}
}

func key(language shared.Language) string {
	return "greeting:" + language.String()
}

// Preload renders and stores the greeting for every supported language.
// Failures are logged and skipped; Get synthesizes on demand for any language
// the preload missed.
func (c *Cache) Preload(ctx context.Context) error {
	var lastErr error
	for language, text := range Texts {
		if err := c.load(ctx, language, text); err != nil {
			c.log.Warn("greeting preload failed", "language", language, "error", err)
			lastErr = err
		}
	}
	return lastErr
}

func (c *Cache) load(ctx context.Context, language shared.Language, text string) error {
	exists, err := c.redis.Exists(ctx, key(language)).Result()
	if err != nil {
		return err
	}
	if exists > 0 {
		return nil
	}

	audio, err := c.synth.Synthesize(ctx, text, language)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key(language), audio, greetingTTL).Err()
}

// Get returns the greeting audio for a language, synthesizing and caching it
// on a miss.
func (c *Cache) Get(ctx context.Context, language shared.Language) ([]byte, error) {
	if !language.Valid() {
		return nil, fmt.Errorf("greeting: unsupported language %q", language)
	}

	audio, err := c.redis.Get(ctx, key(language)).Bytes()
	if err == nil {
		return audio, nil
	}
	if err != redis.Nil {
		return nil, err
	}

	audio, err = c.synth.Synthesize(ctx, Texts[language], language)
	if err != nil {
		return nil, fmt.Errorf("greeting: synthesize %s: %w", language, err)
	}
	if err := c.redis.Set(ctx, key(language), audio, greetingTTL).Err(); err != nil {
		c.log.Warn("failed to cache greeting", "language", language, "error", err)
	}
	return audio, nil
}

// Loaded reports whether every language has a cached greeting.
func (c *Cache) Loaded(ctx context.Context) bool {
	for language := range Texts {
		exists, err := c.redis.Exists(ctx, key(language)).Result()
		if err != nil || exists == 0 {
			return false
		}
	}
	return true
}
