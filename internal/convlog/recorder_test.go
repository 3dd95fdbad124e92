package convlog

import (
	"context"
	"log/slog"
	"testing"

	"github.com/medkiosk/voice/internal/shared"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestRecorder(t *testing.T, queueSize int) *Recorder {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	r := NewRecorder(db, queueSize, nil)
	if err := r.Migrate(); err != nil {
		t.Fatalf("migration failed: %v", err)
	}
	return r
}

func TestRecorder_PersistsInOrder(t *testing.T) {
	r := setupTestRecorder(t, 16)

	r.Transcript("sess_1", "user", "I need a cardiologist")
	r.Transcript("sess_1", "assistant", "Cardiology is on the third floor")
	r.ToolCall("sess_1", "getDoctorAvailability", shared.JSONMap{"departmentName": "Cardiology"})
	r.Close()

	entries, err := r.BySession(context.Background(), "sess_1", 10)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Role != "user" || entries[1].Role != "assistant" {
		t.Error("entries must come back in record order")
	}
	if entries[2].Kind != KindToolCall || entries[2].Metadata["departmentName"] != "Cardiology" {
		t.Errorf("tool call metadata lost: %+v", entries[2])
	}
}

func TestRecorder_EmptyTranscriptSkipped(t *testing.T) {
	r := setupTestRecorder(t, 16)

	r.Transcript("sess_1", "assistant", "")
	r.Lifecycle("sess_1", "session_closed")
	r.Close()

	entries, err := r.BySession(context.Background(), "sess_1", 10)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != KindLifecycle {
		t.Errorf("empty transcript lines must not be recorded, got %v", entries)
	}
}

func TestRecorder_AssignsIDs(t *testing.T) {
	r := setupTestRecorder(t, 16)

	r.Transcript("sess_1", "user", "hello")
	r.Close()

	entries, _ := r.BySession(context.Background(), "sess_1", 10)
	if len(entries) != 1 || len(entries[0].ID) < 6 || entries[0].ID[:5] != "clog_" {
		t.Errorf("entry should get a generated id, got %v", entries)
	}
	if entries[0].CreatedAt.IsZero() {
		t.Error("entry should get a timestamp")
	}
}

func TestRecorder_DropsOnFullQueue(t *testing.T) {
	// No writer goroutine, so the queue stays full after the first entry.
	r := &Recorder{log: slog.Default(), queue: make(chan *Entry, 1)}

	r.Transcript("sess_1", "user", "first")
	r.Transcript("sess_1", "user", "second")
	r.Transcript("sess_1", "user", "third")

	if got := r.Dropped(); got != 2 {
		t.Errorf("expected 2 dropped entries, got %d", got)
	}
}

func TestRecorder_CloseIdempotent(t *testing.T) {
	r := setupTestRecorder(t, 4)
	r.Transcript("sess_1", "user", "hello")
	r.Close()
	r.Close()
}
