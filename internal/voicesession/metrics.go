package voicesession

import (
	"context"
	"log/slog"

	"github.com/medkiosk/voice/internal/live"
	"github.com/medkiosk/voice/internal/session"
)

// meteredTools counts tool calls and successful bookings against the kiosk's
// hourly metrics before delegating to the real executor.
type meteredTools struct {
	next     ToolExecutor
	presence *session.Store
	kioskID  string
	log      *slog.Logger
}

func (t *meteredTools) Execute(ctx context.Context, sessionID string, calls []live.FunctionCall) []live.FunctionResponse {
	if err := t.presence.IncrementMetric(ctx, t.kioskID, "tool_calls", int64(len(calls))); err != nil {
		t.log.Warn("failed to count tool calls", "error", err)
	}

	responses := t.next.Execute(ctx, sessionID, calls)

	for _, resp := range responses {
		if resp.Name != "bookAppointment" {
			continue
		}
		if _, ok := resp.Response["appointmentId"]; ok {
			if err := t.presence.IncrementBookings(ctx, t.kioskID); err != nil {
				t.log.Warn("failed to count booking", "error", err)
			}
		}
	}
	return responses
}

// meteredRecorder forwards to the conversation recorder and turns lifecycle
// events into kiosk metrics.
type meteredRecorder struct {
	next     Recorder
	presence *session.Store
	kioskID  string
	log      *slog.Logger
}

func (r *meteredRecorder) Transcript(sessionID, role, content string) {
	if r.next != nil {
		r.next.Transcript(sessionID, role, content)
	}
}

func (r *meteredRecorder) Lifecycle(sessionID, event string) {
	if r.next != nil {
		r.next.Lifecycle(sessionID, event)
	}

	var err error
	switch event {
	case "interrupted":
		err = r.presence.IncrementInterruptions(context.Background(), r.kioskID)
	case "microphone_error":
		err = r.presence.IncrementErrors(context.Background(), r.kioskID)
	default:
		return
	}
	if err != nil {
		r.log.Warn("failed to count lifecycle event", "event", event, "error", err)
	}
}
