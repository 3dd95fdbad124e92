package convlog

import (
	"time"

	"github.com/medkiosk/voice/internal/shared"
)

// Entry is one logged conversation event: a transcript line, a tool call, or
// a session lifecycle marker.
type Entry struct {
	ID        string         `gorm:"primaryKey" json:"id"`
	SessionID string         `gorm:"not null;index" json:"session_id"`
	Kind      Kind           `gorm:"not null;index" json:"kind"`
	Role      string         `json:"role,omitempty"`
	Content   string         `json:"content,omitempty"`
	Metadata  shared.JSONMap `gorm:"type:json" json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Entry) TableName() string { return "conversation_logs" }

type Kind string

const (
	KindTranscript Kind = "transcript"
	KindToolCall   Kind = "tool_call"
	KindLifecycle  Kind = "lifecycle"
)
