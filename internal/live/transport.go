package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait               = 10 * time.Second
	maxMessageSize          = 4 * 1024 * 1024
	defaultHandshakeTimeout = 15 * time.Second

	// MimeCapturePCM labels outbound microphone chunks.
	MimeCapturePCM = "audio/pcm;rate=16000"
)

var (
	ErrHandshakeTimeout = errors.New("live: setup was never acknowledged")
	ErrNotActive        = errors.New("live: transport is not active")
)

// State tracks the transport's frame state machine.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingSetupAck
	StateActive
	StateClosed
	StateError
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingSetupAck:
		return "awaiting_setup_ack"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Config describes one duplex connection to the remote conversational model.
type Config struct {
	URL               string
	Model             string
	SystemInstruction string
	GenerationConfig  *GenerationConfig
	Tools             []Tool

	// HandshakeTimeout bounds the wait for setupComplete. Zero applies the
	// default; negative disables the timer.
	HandshakeTimeout time.Duration
}

// Handlers receive demultiplexed inbound events. All handlers are invoked
// from the single reader goroutine, strictly in frame arrival order, and must
// not block: long-running work belongs on the caller's own goroutines.
type Handlers struct {
	OnReady        func()
	OnAudio        func(pcm []byte)
	OnText         func(text string)
	OnTurnComplete func()
	OnInterrupted  func()
	OnToolCall     func(calls []FunctionCall)
	OnClosed       func(err error)
}

// Transport owns the duplex channel: it serializes outbound frames, reads
// inbound frames in order, and routes them to the handlers.
type Transport struct {
	cfg      Config
	handlers Handlers
	log      *slog.Logger

	ws      *websocket.Conn
	writeMu sync.Mutex

	state     atomic.Int32
	closeOnce sync.Once
	handshake *time.Timer
}

func New(cfg Config, handlers Handlers, log *slog.Logger) *Transport {
	if log == nil {
		log = slog.Default()
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}

	t := &Transport{
		cfg:      cfg,
		handlers: handlers,
		log:      log,
	}
	t.state.Store(int32(StateDisconnected))
	return t
}

func (t *Transport) State() State {
	return State(t.state.Load())
}

// Dial opens the channel, sends the setup frame, and starts the reader. The
// transport is usable for realtime input only after OnReady fires.
func (t *Transport) Dial(ctx context.Context) error {
	if !t.state.CompareAndSwap(int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("live: dial from state %s", t.State())
	}

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		t.state.Store(int32(StateError))
		return fmt.Errorf("live: connect: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)
	t.ws = ws

	setup := clientFrame{Setup: &Setup{
		Model:            t.cfg.Model,
		GenerationConfig: t.cfg.GenerationConfig,
		Tools:            t.cfg.Tools,
	}}
	if t.cfg.SystemInstruction != "" {
		setup.Setup.SystemInstruction = &Content{
			Parts: []Part{{Text: t.cfg.SystemInstruction}},
		}
	}
	if err := t.writeFrame(&setup); err != nil {
		t.state.Store(int32(StateError))
		_ = ws.Close()
		return fmt.Errorf("live: send setup: %w", err)
	}
	t.state.Store(int32(StateAwaitingSetupAck))

	if t.cfg.HandshakeTimeout > 0 {
		t.handshake = time.AfterFunc(t.cfg.HandshakeTimeout, func() {
			if t.State() == StateAwaitingSetupAck {
				t.fail(ErrHandshakeTimeout)
			}
		})
	}

	go t.readLoop()
	return nil
}

// SendAudio transmits one captured PCM16 chunk. Chunks are sent in call
// order; the transport must be active.
func (t *Transport) SendAudio(pcm []byte) error {
	if t.State() != StateActive {
		return ErrNotActive
	}
	return t.writeFrame(&clientFrame{RealtimeInput: &RealtimeInput{
		MediaChunks: []MediaChunk{{
			Data:     base64.StdEncoding.EncodeToString(pcm),
			MimeType: MimeCapturePCM,
		}},
	}})
}

// SendText injects a synthetic user turn, bypassing the audio path. Used for
// programmatic input such as a slot-selection button.
func (t *Transport) SendText(text string) error {
	if t.State() != StateActive {
		return ErrNotActive
	}
	return t.writeFrame(&clientFrame{ClientContent: &ClientContent{
		Turns: []Content{{
			Role:  "user",
			Parts: []Part{{Text: text}},
		}},
		TurnComplete: true,
	}})
}

// SendToolResponses transmits one completed batch of function results.
func (t *Transport) SendToolResponses(responses []FunctionResponse) error {
	if t.State() != StateActive {
		return ErrNotActive
	}
	return t.writeFrame(&clientFrame{ToolResponse: &ToolResponse{
		FunctionResponses: responses,
	}})
}

func (t *Transport) writeFrame(frame *clientFrame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return t.ws.WriteJSON(frame)
}

// readLoop is the single inbound reader. Frames are processed strictly in
// arrival order; handlers run inline and must return quickly.
func (t *Transport) readLoop() {
	for {
		_, data, err := t.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.shutdown(nil)
			} else {
				t.fail(err)
			}
			return
		}

		var frame serverFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			t.log.Warn("dropping unparseable frame", "error", err)
			continue
		}
		t.route(&frame)
	}
}

func (t *Transport) route(frame *serverFrame) {
	switch {
	case frame.SetupComplete != nil:
		if t.handshake != nil {
			t.handshake.Stop()
		}
		if t.state.CompareAndSwap(int32(StateAwaitingSetupAck), int32(StateActive)) {
			if t.handlers.OnReady != nil {
				t.handlers.OnReady()
			}
		}

	case frame.ServerContent != nil:
		sc := frame.ServerContent
		if sc.ModelTurn != nil {
			for _, part := range sc.ModelTurn.Parts {
				t.routePart(part)
			}
		}
		if sc.Interrupted && t.handlers.OnInterrupted != nil {
			t.handlers.OnInterrupted()
		}
		if sc.TurnComplete && t.handlers.OnTurnComplete != nil {
			t.handlers.OnTurnComplete()
		}

	case frame.ToolCall != nil:
		if t.handlers.OnToolCall != nil && len(frame.ToolCall.FunctionCalls) > 0 {
			t.handlers.OnToolCall(frame.ToolCall.FunctionCalls)
		}
	}
}

func (t *Transport) routePart(part Part) {
	if part.InlineData != nil {
		pcm, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			// Malformed audio: drop the part, keep the stream alive.
			t.log.Warn("dropping undecodable audio part", "error", err)
			return
		}
		if len(pcm) > 0 && t.handlers.OnAudio != nil {
			t.handlers.OnAudio(pcm)
		}
		return
	}
	if part.Text != "" && t.handlers.OnText != nil {
		t.handlers.OnText(part.Text)
	}
}

// Close ends the session deliberately. OnClosed fires with a nil error.
func (t *Transport) Close() error {
	t.shutdown(nil)
	return nil
}

func (t *Transport) fail(err error) {
	t.shutdown(err)
}

func (t *Transport) shutdown(err error) {
	t.closeOnce.Do(func() {
		if err != nil {
			t.state.Store(int32(StateError))
			t.log.Error("transport closed", "error", err)
		} else {
			t.state.Store(int32(StateClosed))
		}

		if t.handshake != nil {
			t.handshake.Stop()
		}
		if t.ws != nil {
			t.writeMu.Lock()
			_ = t.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = t.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			t.writeMu.Unlock()
			_ = t.ws.Close()
		}

		if t.handlers.OnClosed != nil {
			t.handlers.OnClosed(err)
		}
	})
}
