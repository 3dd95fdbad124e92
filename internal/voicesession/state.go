package voicesession

import (
	"log/slog"
	"sync"
)

// State is the session's conversational phase.
type State string

const (
	StateIdle        State = "idle"
	StateConnecting  State = "connecting"
	StateListening   State = "listening"
	StateSpeaking    State = "speaking"
	StateToolPending State = "tool_pending"
	StateClosed      State = "closed"
)

// A transport error from any live state drops back to Idle so the kiosk can
// offer a fresh start; Closed is reached only by a deliberate shutdown.
var transitions = map[State][]State{
	StateIdle:        {StateConnecting, StateClosed},
	StateConnecting:  {StateListening, StateSpeaking, StateIdle, StateClosed},
	StateListening:   {StateSpeaking, StateToolPending, StateIdle, StateClosed},
	StateSpeaking:    {StateListening, StateToolPending, StateIdle, StateClosed},
	StateToolPending: {StateListening, StateSpeaking, StateIdle, StateClosed},
	StateClosed:      {},
}

// stateMachine serializes phase changes and rejects transitions the session
// lifecycle does not allow. Closed is terminal.
type stateMachine struct {
	mu       sync.Mutex
	current  State
	log      *slog.Logger
	onChange func(from, to State)
}

func newStateMachine(log *slog.Logger) *stateMachine {
	if log == nil {
		log = slog.Default()
	}
	return &stateMachine{current: StateIdle, log: log}
}

func (m *stateMachine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// to attempts a transition and reports whether it was applied.
func (m *stateMachine) to(next State) bool {
	m.mu.Lock()
	return m.applyLocked(m.current, next)
}

// toIf transitions only when the machine is currently in from.
func (m *stateMachine) toIf(from, next State) bool {
	m.mu.Lock()
	if m.current != from {
		m.mu.Unlock()
		return false
	}
	return m.applyLocked(from, next)
}

// applyLocked finishes a transition started under mu and releases it.
func (m *stateMachine) applyLocked(from, next State) bool {
	if from == next {
		m.mu.Unlock()
		return true
	}
	allowed := false
	for _, s := range transitions[from] {
		if s == next {
			allowed = true
			break
		}
	}
	if !allowed {
		m.mu.Unlock()
		m.log.Debug("state transition rejected", "from", from, "to", next)
		return false
	}
	m.current = next
	cb := m.onChange
	m.mu.Unlock()

	if cb != nil {
		cb(from, next)
	}
	return true
}
