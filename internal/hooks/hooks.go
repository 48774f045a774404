// Package hooks implements the hook engine (C2): an ordered registry of
// named observers that may veto a frame and terminate its session.
//
// The register/run shape is grounded on the Bus/Subscriber pattern in the
// teacher's runtime/agent/hooks/bus.go (registration appends under lock,
// invocation runs against a snapshot taken with the lock released),
// adapted from fan-out publish to sequential short-circuiting run.
package hooks

import (
	"sync"

	"github.com/xLillium/rip/internal/frame"
)

// EventFilter selects which frames a Hook observes.
type EventFilter string

const (
	// FilterSessionStarted matches only session_started frames.
	FilterSessionStarted EventFilter = "session_started"
	// FilterOutput matches output_text_delta and every other non-terminal,
	// non-session_started frame kind (reasoning/tool-call deltas, provider
	// events, and all tool_* frames) — spec.md's HookEventKind only ever
	// named three filters because the original EventKind only had three
	// variants; this module's larger closed sum buckets everything that
	// isn't session_started/session_ended under Output (see FilterFor).
	FilterOutput EventFilter = "output"
	// FilterSessionEnded matches only session_ended frames.
	FilterSessionEnded EventFilter = "session_ended"
)

// Context is the read-only view a Hook inspects. Hooks must not mutate
// the session; the engine only ever hands out values, never pointers
// into session state.
type Context struct {
	SessionID   string
	Seq         uint64
	TimestampMs int64
	Event       EventFilter
	// Output holds the delta text when Event == FilterOutput and the
	// underlying frame is specifically output_text_delta; nil otherwise.
	Output *string
}

// Outcome is a hook's verdict.
type Outcome struct {
	Abort  bool
	Reason string
}

// Continue lets the frame through unmodified.
var Continue = Outcome{}

// Abort vetoes the frame and ends the session with reason.
func Abort(reason string) Outcome {
	return Outcome{Abort: true, Reason: reason}
}

// Handler inspects a Context and returns Continue or Abort.
type Handler func(ctx Context) Outcome

// Hook is one named, filtered observer.
type Hook struct {
	Name   string
	Filter EventFilter
	Handle Handler
}

// Engine holds an append-ordered list of hooks and runs them against
// each candidate frame.
type Engine struct {
	mu    sync.RWMutex
	hooks []Hook
}

// NewEngine returns an empty hook engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Register appends hook to the end of the invocation order.
func (e *Engine) Register(h Hook) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hooks = append(e.hooks, h)
}

// Run invokes every hook whose Filter matches ctx.Event, in registration
// order, stopping at the first Abort. A panic inside a hook is treated as
// fatal to the session: it surfaces as Abort{reason="hook panic"}.
func (e *Engine) Run(ctx Context) (outcome Outcome) {
	e.mu.RLock()
	hooks := make([]Hook, len(e.hooks))
	copy(hooks, e.hooks)
	e.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			outcome = Abort("hook panic")
		}
	}()

	for _, h := range hooks {
		if h.Filter != ctx.Event {
			continue
		}
		if o := h.Handle(ctx); o.Abort {
			return o
		}
	}
	return Continue
}

// FilterFor classifies a frame kind into the three-bucket filter space
// hooks observe. session_started and session_ended get their own
// filters; every other kind — including the supplemented
// reasoning_delta/tool_call_arguments_delta and every tool_*/provider_event
// frame — is an Output frame.
func FilterFor(k frame.Kind) EventFilter {
	switch k.(type) {
	case frame.SessionStarted:
		return FilterSessionStarted
	case frame.SessionEnded:
		return FilterSessionEnded
	default:
		return FilterOutput
	}
}

// OutputText extracts the delta text hooks see for output_text_delta
// frames, and nil for everything else (including the other Output-bucket
// kinds, per spec.md §4.2: "the output-delta text when the frame is
// output_text_delta").
func OutputText(k frame.Kind) *string {
	if d, ok := k.(frame.OutputTextDelta); ok {
		text := d.Delta
		return &text
	}
	return nil
}
