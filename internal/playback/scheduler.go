package playback

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/medkiosk/voice/internal/audio"
)

// Sink renders decoded float samples on the output device. Play blocks until
// the buffer has finished playing or ctx is cancelled; returning an error
// aborts the remaining queue.
type Sink interface {
	Play(ctx context.Context, samples []float32) error
}

// chunk is a queued buffer tagged with the flush generation it was accepted
// under. Flush bumps the generation, so the worker can tell buffers it must
// discard from audio enqueued after the flush completed.
type chunk struct {
	pcm []byte
	gen uint64
}

// Scheduler plays PCM16 buffers gaplessly in arrival order. A single worker
// dequeues buffers and starts each the moment the previous one ends. Flush is
// the only cancellation primitive: it drops the pending queue and halts the
// in-progress buffer before any post-interruption audio is accepted.
type Scheduler struct {
	queue  chan chunk
	stopCh atomic.Pointer[chan struct{}]
	gen    atomic.Uint64
	sink   Sink
	log    *slog.Logger

	playing  atomic.Bool
	failed   atomic.Bool
	wg       sync.WaitGroup
	stopOnce sync.Once

	// Held for the full duration of each in-progress buffer so Flush can
	// block until playback has actually halted.
	activeMu sync.Mutex

	mu      sync.Mutex
	onError func(error)

	pendingMu   sync.Mutex
	pendingCond *sync.Cond
	pending     int64
}

func NewScheduler(sink Sink, bufferSize int, log *slog.Logger) *Scheduler {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Scheduler{
		queue: make(chan chunk, bufferSize),
		sink:  sink,
		log:   log,
	}
	s.pendingCond = sync.NewCond(&s.pendingMu)

	stopCh := make(chan struct{})
	s.stopCh.Store(&stopCh)
	return s
}

func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	for c := range s.queue {
		s.playBuffer(c)
	}
}

func (s *Scheduler) playBuffer(c chunk) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	// Deferred in LIFO order: decrement runs first, then the idle check.
	defer func() {
		if s.pendingCount() == 0 {
			s.playing.Store(false)
		}
	}()
	defer s.decrementPending()

	// Load the stop channel before checking the generation. Flush bumps the
	// generation before swapping the channel, so a buffer that passes the
	// check holds a channel that flush is guaranteed to close.
	stopCh := *s.stopCh.Load()
	if c.gen != s.gen.Load() {
		// Flushed while queued.
		return
	}

	if s.failed.Load() {
		return
	}

	samples, err := audio.DecodePCM16(c.pcm)
	if err != nil {
		// Malformed frame: drop it and keep going.
		s.log.Warn("dropping undecodable audio frame", "error", err)
		return
	}
	if len(samples) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-done:
		}
	}()

	s.playing.Store(true)
	err = s.sink.Play(ctx, samples)
	close(done)
	wasFlushed := ctx.Err() != nil
	cancel()

	if err != nil && !wasFlushed {
		// The output device failed mid-queue. The source turn cannot be
		// re-requested, so abort the rest and surface the error.
		s.failed.Store(true)
		s.drain()
		s.mu.Lock()
		cb := s.onError
		s.mu.Unlock()
		if cb != nil {
			cb(err)
		}
	}
}

// Enqueue appends a PCM16 buffer to the playback queue. It never blocks the
// caller; a full queue drops the buffer with a warning.
func (s *Scheduler) Enqueue(pcm []byte) {
	if len(pcm) == 0 {
		return
	}

	select {
	case s.queue <- chunk{pcm: pcm, gen: s.gen.Load()}:
		s.pendingMu.Lock()
		s.pending++
		s.pendingMu.Unlock()
	default:
		s.log.Warn("playback queue full, dropping buffer", "bytes", len(pcm))
	}
}

// Flush drops every queued buffer and halts the in-progress one. It does not
// return until playback has stopped, so no audio accepted afterwards can
// interleave with pre-flush buffers.
func (s *Scheduler) Flush() int {
	s.gen.Add(1)
	newCh := make(chan struct{})
	oldPtr := s.stopCh.Swap(&newCh)
	if oldPtr != nil {
		close(*oldPtr)
	}
	count := s.drain()

	// The worker holds activeMu while a buffer is in flight; taking it here
	// waits out the cancellation of that buffer.
	s.activeMu.Lock()
	s.activeMu.Unlock()

	s.playing.Store(false)
	return count
}

func (s *Scheduler) drain() int {
	count := 0
	for {
		select {
		case <-s.queue:
			count++
			s.decrementPending()
		default:
			return count
		}
	}
}

func (s *Scheduler) pendingCount() int64 {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return s.pending
}

func (s *Scheduler) decrementPending() {
	s.pendingMu.Lock()
	s.pending--
	if s.pending <= 0 {
		s.pending = 0
		s.pendingCond.Broadcast()
	}
	s.pendingMu.Unlock()
}

// WaitForDrain blocks until every enqueued buffer has been played or flushed.
func (s *Scheduler) WaitForDrain() {
	s.pendingMu.Lock()
	for s.pending > 0 {
		s.pendingCond.Wait()
	}
	s.pendingMu.Unlock()
}

// IsPlaying reports whether a buffer is currently being rendered or queued.
func (s *Scheduler) IsPlaying() bool {
	return s.playing.Load() || s.pendingCount() > 0
}

// SetErrorCallback registers the sink-failure hook. Called at most once per
// failure; the scheduler does not retry.
func (s *Scheduler) SetErrorCallback(cb func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = cb
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
}
