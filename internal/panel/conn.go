package panel

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/medkiosk/voice/internal/audio"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024

	// DefaultNativeRate is assumed for panel microphones that do not
	// announce a rate.
	DefaultNativeRate = 48000
)

var ErrPanelClosed = errors.New("panel: connection closed")

// Conn bridges one kiosk front panel over a websocket. Inbound binary frames
// carry native-rate little-endian float32 microphone samples; outbound binary
// frames carry 24kHz PCM16 playback audio. The same Conn serves as the
// session's capture source and playback sink.
type Conn struct {
	ws         *websocket.Conn
	log        *slog.Logger
	nativeRate int

	emitMu sync.RWMutex
	emit   func([]float32)

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
	onClose   func()
}

func NewConn(ws *websocket.Conn, nativeRate int, log *slog.Logger) *Conn {
	if nativeRate <= 0 {
		nativeRate = DefaultNativeRate
	}
	if log == nil {
		log = slog.Default()
	}
	return &Conn{
		ws:         ws,
		log:        log,
		nativeRate: nativeRate,
		done:       make(chan struct{}),
	}
}

// SetOnClose registers a hook fired once when the panel disconnects.
func (c *Conn) SetOnClose(fn func()) {
	c.onClose = fn
}

// Start begins delivering microphone samples. Frames that arrive before
// Start are dropped, which is what the session wants while the greeting
// plays.
func (c *Conn) Start(emit func([]float32)) error {
	select {
	case <-c.done:
		return ErrPanelClosed
	default:
	}

	c.emitMu.Lock()
	c.emit = emit
	c.emitMu.Unlock()
	return nil
}

func (c *Conn) Stop() error {
	c.emitMu.Lock()
	c.emit = nil
	c.emitMu.Unlock()
	return nil
}

func (c *Conn) SampleRate() int { return c.nativeRate }

// Play ships one decoded buffer to the panel's speaker and paces itself to
// the buffer's real duration so consecutive buffers render gaplessly.
func (c *Conn) Play(ctx context.Context, samples []float32) error {
	pcm := audio.DownsamplePCM16(samples, audio.PlaybackRate, audio.PlaybackRate)

	c.writeMu.Lock()
	select {
	case <-c.done:
		c.writeMu.Unlock()
		return ErrPanelClosed
	default:
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.ws.WriteMessage(websocket.BinaryMessage, pcm)
	c.writeMu.Unlock()
	if err != nil {
		return err
	}

	duration := time.Duration(len(samples)) * time.Second / audio.PlaybackRate
	timer := time.NewTimer(duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrPanelClosed
	}
}

// ReadPump consumes panel frames until the connection drops. It blocks the
// caller, matching the lifetime of the HTTP handler that upgraded the socket.
func (c *Conn) ReadPump() {
	defer c.Close()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("panel read ended", "error", err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		samples, err := decodeFloat32(data)
		if err != nil {
			c.log.Warn("dropping malformed mic frame", "error", err)
			continue
		}

		c.emitMu.RLock()
		emit := c.emit
		c.emitMu.RUnlock()
		if emit != nil {
			emit(samples)
		}
	}
}

// PingLoop keeps the socket alive; run on its own goroutine.
func (c *Conn) PingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.writeMu.Lock()
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
	return nil
}

func decodeFloat32(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, errors.New("frame length not a multiple of 4")
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(data[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}
