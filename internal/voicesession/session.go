package voicesession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/medkiosk/voice/internal/audio"
	"github.com/medkiosk/voice/internal/live"
	"github.com/medkiosk/voice/internal/shared"
)

// Transport is the duplex channel the session speaks through.
type Transport interface {
	Dial(ctx context.Context) error
	SendAudio(pcm []byte) error
	SendText(text string) error
	SendToolResponses(responses []live.FunctionResponse) error
	Close() error
}

// Dialer builds a transport wired to the session's handlers.
type Dialer func(cfg live.Config, handlers live.Handlers, log *slog.Logger) Transport

// CaptureSource is the kiosk microphone. Start delivers native-rate mono
// float samples on the device's own cadence until Stop.
type CaptureSource interface {
	Start(emit func(samples []float32)) error
	Stop() error
	SampleRate() int
}

// Player is the outbound half: the playback scheduler.
type Player interface {
	Start()
	Enqueue(pcm []byte)
	Flush() int
	WaitForDrain()
	Stop()
}

// Greeter supplies the cached welcome audio for a language.
type Greeter interface {
	Get(ctx context.Context, language shared.Language) ([]byte, error)
}

// ToolExecutor runs one toolCall batch to completion.
type ToolExecutor interface {
	Execute(ctx context.Context, sessionID string, calls []live.FunctionCall) []live.FunctionResponse
}

// Recorder receives transcript lines and lifecycle events, fire-and-forget.
type Recorder interface {
	Transcript(sessionID, role, content string)
	Lifecycle(sessionID, event string)
}

type Config struct {
	KioskID  string
	Language shared.Language

	LiveURL          string
	Model            string
	VoiceName        string
	HandshakeTimeout time.Duration
	Declarations     []live.Tool

	Dial     Dialer
	Capture  CaptureSource
	Player   Player
	Tools    ToolExecutor
	Greeting Greeter
	Recorder Recorder

	OnStateChange func(from, to State)
}

// Session orchestrates one kiosk conversation: it owns the state machine and
// wires the transport's inbound events to capture, playback, and tools.
type Session struct {
	id      string
	cfg     Config
	machine *stateMachine
	log     *slog.Logger

	transport Transport
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	closing      atomic.Bool
	micRunning   atomic.Bool
	transcript   strings.Builder
	transcriptMu sync.Mutex
}

func New(cfg Config, log *slog.Logger) (*Session, error) {
	if cfg.Dial == nil || cfg.Capture == nil || cfg.Player == nil || cfg.Tools == nil {
		return nil, fmt.Errorf("voicesession: dialer, capture, player, and tools are required")
	}
	if !cfg.Language.Valid() {
		cfg.Language = shared.LanguageEnglish
	}
	if log == nil {
		log = slog.Default()
	}

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		id:     id,
		cfg:    cfg,
		log:    log.With("session_id", id, "kiosk_id", cfg.KioskID),
		ctx:    ctx,
		cancel: cancel,
	}
	s.machine = newStateMachine(s.log)
	s.machine.onChange = s.stateChanged
	return s, nil
}

func (s *Session) ID() string                { return s.id }
func (s *Session) State() State              { return s.machine.State() }
func (s *Session) KioskID() string           { return s.cfg.KioskID }
func (s *Session) Language() shared.Language { return s.cfg.Language }

func (s *Session) stateChanged(from, to State) {
	s.log.Debug("session state changed", "from", from, "to", to)
	if s.cfg.OnStateChange != nil {
		s.cfg.OnStateChange(from, to)
	}
}

// Start opens the transport. The session becomes conversational once the
// remote acknowledges setup and the greeting has played.
func (s *Session) Start(ctx context.Context) error {
	if !s.machine.to(StateConnecting) {
		return fmt.Errorf("voicesession: start from state %s", s.machine.State())
	}

	liveCfg := live.Config{
		URL:               s.cfg.LiveURL,
		Model:             s.cfg.Model,
		SystemInstruction: systemInstruction(s.cfg.Language),
		Tools:             s.cfg.Declarations,
		HandshakeTimeout:  s.cfg.HandshakeTimeout,
		GenerationConfig: &live.GenerationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &live.SpeechConfig{
				LanguageCode: s.cfg.Language.String(),
				VoiceConfig: &live.VoiceConfig{
					PrebuiltVoiceConfig: &live.PrebuiltVoiceConfig{VoiceName: s.cfg.VoiceName},
				},
			},
		},
	}

	s.transport = s.cfg.Dial(liveCfg, live.Handlers{
		OnReady:        s.onReady,
		OnAudio:        s.onAudio,
		OnText:         s.onText,
		OnTurnComplete: s.onTurnComplete,
		OnInterrupted:  s.onInterrupted,
		OnToolCall:     s.onToolCall,
		OnClosed:       s.onClosed,
	}, s.log)

	s.cfg.Player.Start()
	if err := s.transport.Dial(ctx); err != nil {
		s.cfg.Player.Stop()
		s.machine.to(StateIdle)
		return fmt.Errorf("voicesession: connect: %w", err)
	}

	if s.cfg.Recorder != nil {
		s.cfg.Recorder.Lifecycle(s.id, "session_started")
	}
	return nil
}

// onReady plays the greeting to completion, then opens the microphone. Mic
// frames must not reach the transport while the welcome line is playing.
func (s *Session) onReady() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.playGreeting()
		if err := s.startCapture(); err != nil {
			s.log.Error("microphone unavailable", "error", err)
			if s.cfg.Recorder != nil {
				s.cfg.Recorder.Lifecycle(s.id, "microphone_error")
			}
			_ = s.transport.Close()
			return
		}
		s.machine.toIf(StateConnecting, StateListening)
	}()
}

func (s *Session) playGreeting() {
	if s.cfg.Greeting == nil {
		return
	}
	pcm, err := s.cfg.Greeting.Get(s.ctx, s.cfg.Language)
	if err != nil {
		s.log.Warn("greeting unavailable, skipping", "error", err)
		return
	}
	s.cfg.Player.Enqueue(pcm)
	s.cfg.Player.WaitForDrain()
}

func (s *Session) startCapture() error {
	resampler := audio.NewCaptureResampler(s.cfg.Capture.SampleRate(), audio.DefaultChunkSize, func(chunk []byte) {
		if err := s.transport.SendAudio(chunk); err != nil && !errors.Is(err, live.ErrNotActive) {
			s.log.Warn("dropping capture chunk", "error", err)
		}
	})

	if err := s.cfg.Capture.Start(func(samples []float32) {
		resampler.Push(samples)
	}); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrMicrophoneAccess, err)
	}
	s.micRunning.Store(true)
	return nil
}

func (s *Session) onAudio(pcm []byte) {
	s.machine.to(StateSpeaking)
	s.cfg.Player.Enqueue(pcm)
}

func (s *Session) onText(text string) {
	s.transcriptMu.Lock()
	s.transcript.WriteString(text)
	s.transcriptMu.Unlock()
}

func (s *Session) flushTranscript() {
	s.transcriptMu.Lock()
	text := s.transcript.String()
	s.transcript.Reset()
	s.transcriptMu.Unlock()

	if text != "" && s.cfg.Recorder != nil {
		s.cfg.Recorder.Transcript(s.id, "assistant", text)
	}
}

// onTurnComplete returns to Listening once the remaining queued audio for the
// finished turn has actually played out.
func (s *Session) onTurnComplete() {
	s.flushTranscript()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.cfg.Player.WaitForDrain()
		s.machine.toIf(StateSpeaking, StateListening)
	}()
}

// onInterrupted is server-driven barge-in: the user spoke over the model.
// Queued audio is dropped immediately; an in-flight tool call keeps running.
func (s *Session) onInterrupted() {
	dropped := s.cfg.Player.Flush()
	s.log.Debug("playback interrupted", "dropped_buffers", dropped)
	s.flushTranscript()
	if s.cfg.Recorder != nil {
		s.cfg.Recorder.Lifecycle(s.id, "interrupted")
	}
	s.machine.toIf(StateSpeaking, StateListening)
}

// onToolCall runs the batch off the reader goroutine so inbound audio keeps
// flowing, and sends every response together once the batch resolves.
func (s *Session) onToolCall(calls []live.FunctionCall) {
	s.machine.to(StateToolPending)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		responses := s.cfg.Tools.Execute(s.ctx, s.id, calls)
		if err := s.transport.SendToolResponses(responses); err != nil {
			s.log.Error("failed to send tool responses", "error", err)
		}
		s.machine.toIf(StateToolPending, StateListening)
	}()
}

func (s *Session) onClosed(err error) {
	s.stopCapture()
	s.cfg.Player.Flush()
	s.flushTranscript()

	if s.cfg.Recorder != nil {
		s.cfg.Recorder.Lifecycle(s.id, "session_closed")
	}

	if s.closing.Load() {
		s.machine.to(StateClosed)
	} else {
		if err != nil {
			s.log.Error("transport lost", "error", err)
		}
		s.machine.to(StateIdle)
	}
	s.cancel()
}

func (s *Session) stopCapture() {
	if s.micRunning.CompareAndSwap(true, false) {
		if err := s.cfg.Capture.Stop(); err != nil {
			s.log.Warn("failed to stop capture", "error", err)
		}
	}
}

// InjectText sends a synthetic user turn, used by kiosk UI shortcuts such as
// tapping a listed time slot.
func (s *Session) InjectText(text string) error {
	if s.transport == nil {
		return live.ErrNotActive
	}
	return s.transport.SendText(text)
}

// SelectSlot is the booking shortcut: the touch UI picks a slot id from a
// spoken list and confirms it without an audio round trip.
func (s *Session) SelectSlot(slotID int64, slotTime string) error {
	return s.InjectText(fmt.Sprintf("I would like to book slot %d at %s.", slotID, slotTime))
}

// Close ends the session deliberately and waits for in-flight work.
func (s *Session) Close() {
	s.closing.Store(true)
	if s.transport != nil {
		_ = s.transport.Close()
	}
	s.cfg.Player.Stop()
	s.wg.Wait()
}

func systemInstruction(language shared.Language) string {
	base := "You are the SIMS Hospital kiosk assistant. Help visitors find departments, " +
		"check doctor availability, book appointments, locate admitted patients, and " +
		"answer questions about the hospital. Keep answers short and spoken-friendly. " +
		"Always use the provided tools for factual answers instead of guessing."

	switch language {
	case shared.LanguageTamil:
		return base + " Respond only in Tamil."
	default:
		return base + " Respond only in English."
	}
}
