package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/medkiosk/voice/internal/hospital"
	"github.com/medkiosk/voice/internal/live"
	"github.com/medkiosk/voice/internal/shared"
)

const defaultCallTimeout = 30 * time.Second

// Recorder is the subset of the conversation log the dispatcher writes to.
type Recorder interface {
	ToolCall(sessionID, name string, meta shared.JSONMap)
}

// Dispatcher executes model-requested function calls against the hospital
// directory and booking tables.
type Dispatcher struct {
	store    *hospital.Store
	embedder hospital.EmbeddingService
	recorder Recorder
	log      *slog.Logger

	timeout time.Duration
	now     func() time.Time
	run     func(ctx context.Context, call live.FunctionCall) map[string]any
}

type Option func(*Dispatcher)

func WithTimeout(d time.Duration) Option {
	return func(disp *Dispatcher) { disp.timeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(disp *Dispatcher) { disp.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(disp *Dispatcher) { disp.recorder = r }
}

func NewDispatcher(store *hospital.Store, embedder hospital.EmbeddingService, log *slog.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		store:    store,
		embedder: embedder,
		log:      log,
		timeout:  defaultCallTimeout,
		now:      time.Now,
	}
	d.run = d.dispatch
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs one batch of function calls and returns a response per call,
// in the batch's original order. Calls within a batch run concurrently; each
// is bounded by the per-call timeout, and a timed-out or failed call yields an
// error response rather than aborting the batch.
func (d *Dispatcher) Execute(ctx context.Context, sessionID string, calls []live.FunctionCall) []live.FunctionResponse {
	responses := make([]live.FunctionResponse, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call live.FunctionCall) {
			defer wg.Done()
			responses[i] = live.FunctionResponse{
				Name:     call.Name,
				ID:       call.ID,
				Response: d.executeOne(ctx, sessionID, call),
			}
		}(i, call)
	}
	wg.Wait()

	return responses
}

func (d *Dispatcher) executeOne(ctx context.Context, sessionID string, call live.FunctionCall) map[string]any {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := d.now()
	resultCh := make(chan map[string]any, 1)
	go func() { resultCh <- d.run(callCtx, call) }()

	// A handler that ignores its context must not hold the whole batch
	// hostage: on deadline the call gets a synthetic error response and the
	// stray goroutine is left to finish against the cancelled context.
	var result map[string]any
	select {
	case result = <-resultCh:
	case <-callCtx.Done():
		result = map[string]any{"error": "Tool execution timed out"}
	}
	elapsed := time.Since(start)

	d.log.Info("tool executed",
		"session_id", sessionID, "function", call.Name, "duration_ms", elapsed.Milliseconds())

	if d.recorder != nil {
		d.recorder.ToolCall(sessionID, call.Name, shared.JSONMap{
			"args":        call.Args,
			"duration_ms": elapsed.Milliseconds(),
			"error":       result["error"],
		})
	}
	return result
}

func (d *Dispatcher) dispatch(ctx context.Context, call live.FunctionCall) (result map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("tool panicked", "function", call.Name, "panic", r)
			result = map[string]any{"error": "Tool execution failed"}
		}
	}()

	args := arguments(call.Args)
	switch call.Name {
	case "getDepartments":
		return d.getDepartments(ctx)
	case "getDoctorAvailability":
		return d.getDoctorAvailability(ctx, args)
	case "getDoctorTimeSlots":
		return d.getDoctorTimeSlots(ctx, args)
	case "bookAppointment":
		return d.bookAppointment(ctx, args)
	case "findPatient":
		return d.findPatient(ctx, args)
	case "getHospitalInfo":
		return d.getHospitalInfo(ctx, args)
	case "suggestDepartment":
		return d.suggestDepartment(args)
	case "getAppointmentDetails":
		return d.getAppointmentDetails(ctx, args)
	default:
		return map[string]any{"error": fmt.Sprintf("Unknown function: %s", call.Name)}
	}
}

// arguments wraps the decoded JSON args with typed accessors. JSON numbers
// arrive as float64.
type arguments map[string]any

func (a arguments) str(key string) string {
	if v, ok := a[key].(string); ok {
		return v
	}
	return ""
}

func (a arguments) id(key string) int64 {
	switch v := a[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
