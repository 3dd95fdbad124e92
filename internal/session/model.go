package session

import (
	"strconv"
	"time"

	"github.com/medkiosk/voice/internal/shared"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
	StatusError  Status = "error"
)

// Session is the presence record for one live kiosk conversation.
type Session struct {
	ID           string          `json:"id"`
	KioskID      string          `json:"kiosk_id"`
	Language     shared.Language `json:"language"`
	Status       Status          `json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	LastActiveAt time.Time       `json:"last_active_at"`
}

func (s *Session) RedisKey() string {
	return "session:" + s.ID
}

// Metrics aggregates one kiosk's hourly counters.
type Metrics struct {
	KioskID       string `json:"kiosk_id"`
	Date          string `json:"date"`
	Hour          int    `json:"hour"`
	Sessions      int64  `json:"sessions"`
	ToolCalls     int64  `json:"tool_calls"`
	Bookings      int64  `json:"bookings"`
	Interruptions int64  `json:"interruptions"`
	ErrorCount    int64  `json:"error_count"`
}

func MetricsRedisKey(kioskID, date string, hour int) string {
	return "kiosk:" + kioskID + ":metrics:" + date + ":" + strconv.Itoa(hour)
}
