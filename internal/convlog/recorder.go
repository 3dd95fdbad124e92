package convlog

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/medkiosk/voice/internal/shared"
	"gorm.io/gorm"
)

const defaultQueueSize = 512

// Recorder persists conversation entries off the session's hot path. Record
// never blocks: entries go through a buffered channel to a single writer
// goroutine, and a full queue drops the entry rather than stall audio.
type Recorder struct {
	db    *gorm.DB
	log   *slog.Logger
	queue chan *Entry

	dropped   atomic.Int64
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewRecorder(db *gorm.DB, queueSize int, log *slog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if log == nil {
		log = slog.Default()
	}

	r := &Recorder{
		db:    db,
		log:   log,
		queue: make(chan *Entry, queueSize),
	}
	r.wg.Add(1)
	go r.writeLoop()
	return r
}

func (r *Recorder) Migrate() error {
	return r.db.AutoMigrate(&Entry{})
}

// Record queues one entry for persistence. Safe to call from any goroutine;
// entries for the same session are written in call order.
func (r *Recorder) Record(entry *Entry) {
	if entry.ID == "" {
		entry.ID = shared.NewID("clog_")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	select {
	case r.queue <- entry:
	default:
		r.dropped.Add(1)
		r.log.Warn("conversation log queue full, dropping entry",
			"session_id", entry.SessionID, "kind", entry.Kind, "dropped_total", r.dropped.Load())
	}
}

// Dropped reports how many entries have been discarded on a full queue.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Transcript logs one spoken line.
func (r *Recorder) Transcript(sessionID, role, content string) {
	if content == "" {
		return
	}
	r.Record(&Entry{SessionID: sessionID, Kind: KindTranscript, Role: role, Content: content})
}

// ToolCall logs one executed function with its arguments and result summary.
func (r *Recorder) ToolCall(sessionID, name string, meta shared.JSONMap) {
	r.Record(&Entry{SessionID: sessionID, Kind: KindToolCall, Content: name, Metadata: meta})
}

// Lifecycle logs a session state transition.
func (r *Recorder) Lifecycle(sessionID, event string) {
	r.Record(&Entry{SessionID: sessionID, Kind: KindLifecycle, Content: event})
}

func (r *Recorder) writeLoop() {
	defer r.wg.Done()

	for entry := range r.queue {
		if err := r.db.Create(entry).Error; err != nil {
			r.log.Error("failed to persist conversation entry",
				"session_id", entry.SessionID, "kind", entry.Kind, "error", err)
		}
	}
}

// BySession returns a session's entries oldest first.
func (r *Recorder) BySession(ctx context.Context, sessionID string, limit int) ([]*Entry, error) {
	var entries []*Entry
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at").
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// Close drains the queue and stops the writer.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
	})
	r.wg.Wait()
}
