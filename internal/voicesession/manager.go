package voicesession

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/medkiosk/voice/internal/live"
	"github.com/medkiosk/voice/internal/playback"
	"github.com/medkiosk/voice/internal/session"
	"github.com/medkiosk/voice/internal/shared"
)

// Devices builds the kiosk's audio endpoints for a new session.
type Devices struct {
	NewCapture func() CaptureSource
	NewSink    func() playback.Sink
}

type ManagerConfig struct {
	LiveURL          string
	Model            string
	VoiceName        string
	HandshakeTimeout time.Duration
	Declarations     []live.Tool

	Dial     Dialer
	Devices  Devices
	Tools    ToolExecutor
	Greeting Greeter
	Recorder Recorder
	Presence *session.Store
	Log      *slog.Logger
}

// Manager tracks the kiosk's live sessions and registers their presence.
type Manager struct {
	cfg      ManagerConfig
	sessions map[string]*Session
	mu       sync.RWMutex
	log      *slog.Logger
}

func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		log:      cfg.Log.With("component", "voicesession_manager"),
	}
}

// CreateSession builds, registers, and starts a session on the kiosk's
// default audio devices.
func (m *Manager) CreateSession(ctx context.Context, kioskID string, language shared.Language) (*Session, error) {
	return m.CreateSessionWithDevices(ctx, kioskID, language, m.cfg.Devices.NewCapture(), m.cfg.Devices.NewSink())
}

// CreateSessionWithDevices starts a session on explicit audio endpoints, used
// when a front panel brings its own microphone and speaker streams.
func (m *Manager) CreateSessionWithDevices(ctx context.Context, kioskID string, language shared.Language, capture CaptureSource, sink playback.Sink) (*Session, error) {
	scheduler := playback.NewScheduler(sink, 0, m.log)

	tools := m.cfg.Tools
	recorder := m.cfg.Recorder
	if m.cfg.Presence != nil {
		if tools != nil {
			tools = &meteredTools{next: tools, presence: m.cfg.Presence, kioskID: kioskID, log: m.log}
		}
		recorder = &meteredRecorder{next: recorder, presence: m.cfg.Presence, kioskID: kioskID, log: m.log}
	}

	s, err := New(Config{
		KioskID:          kioskID,
		Language:         language,
		LiveURL:          m.cfg.LiveURL,
		Model:            m.cfg.Model,
		VoiceName:        m.cfg.VoiceName,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		Declarations:     m.cfg.Declarations,
		Dial:             m.cfg.Dial,
		Capture:          capture,
		Player:           scheduler,
		Tools:            tools,
		Greeting:         m.cfg.Greeting,
		Recorder:         recorder,
	}, m.log)
	if err != nil {
		return nil, err
	}

	if err := s.Start(ctx); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()

	if m.cfg.Presence != nil {
		record := &session.Session{ID: s.ID(), KioskID: kioskID, Language: language}
		if err := m.cfg.Presence.CreateSession(ctx, record); err != nil {
			m.log.Warn("failed to register session presence", "error", err)
		}
		if err := m.cfg.Presence.IncrementSessions(ctx, kioskID); err != nil {
			m.log.Warn("failed to count session", "error", err)
		}
	}

	m.log.Info("voice session created", "session_id", s.ID(), "kiosk_id", kioskID, "language", language)
	return s, nil
}

func (m *Manager) GetSession(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// RemoveSession closes the session and retires its presence record.
func (m *Manager) RemoveSession(ctx context.Context, id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	s.Close()
	if m.cfg.Presence != nil {
		if err := m.cfg.Presence.EndSession(ctx, id, session.StatusEnded); err != nil {
			m.log.Warn("failed to end session presence", "error", err)
		}
	}
	m.log.Info("voice session removed", "session_id", id)
}

type SessionInfo struct {
	SessionID string          `json:"session_id"`
	KioskID   string          `json:"kiosk_id"`
	Language  shared.Language `json:"language"`
	State     State           `json:"state"`
}

func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) ListSessions() []SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		infos = append(infos, SessionInfo{
			SessionID: s.ID(),
			KioskID:   s.KioskID(),
			Language:  s.Language(),
			State:     s.State(),
		})
	}
	return infos
}

func (m *Manager) Close() error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
	return nil
}
