package frame

import "encoding/json"

// Kind is the closed sum of event payloads a Frame may carry. Each
// concrete type below is one variant; Type returns its JSON discriminator.
type Kind interface {
	Type() string
}

// SessionStarted opens a session.
type SessionStarted struct {
	Input string `json:"input"`
}

func (SessionStarted) Type() string { return "session_started" }

// OutputTextDelta carries one chunk of assistant output text.
type OutputTextDelta struct {
	Delta string `json:"delta"`
}

func (OutputTextDelta) Type() string { return "output_text_delta" }

// ReasoningDelta carries one chunk of provider reasoning/thinking text.
//
// Supplemented variant: absent from the distilled closed sum, present in
// the original provider's stream_transformers (reasoning-delta
// extraction) but dropped from the mapper's switch during distillation.
type ReasoningDelta struct {
	Delta string `json:"delta"`
}

func (ReasoningDelta) Type() string { return "reasoning_delta" }

// ToolCallArgumentsDelta carries one chunk of a function/tool call's
// streamed argument JSON.
//
// Supplemented variant, same provenance as ReasoningDelta.
type ToolCallArgumentsDelta struct {
	ToolCallID string `json:"tool_call_id"`
	ToolName   string `json:"tool_name,omitempty"`
	Delta      string `json:"delta"`
}

func (ToolCallArgumentsDelta) Type() string { return "tool_call_arguments_delta" }

// SessionEnded is the single terminal frame of a session.
type SessionEnded struct {
	Reason string `json:"reason"`
}

func (SessionEnded) Type() string { return "session_ended" }

// ProviderEvent surfaces a raw upstream provider event alongside the
// frames the mapper derives from it.
type ProviderEvent struct {
	Status    string          `json:"status"`
	EventName *string         `json:"event_name,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func (ProviderEvent) Type() string { return "provider_event" }

// ToolStarted announces the beginning of a tool invocation.
type ToolStarted struct {
	ToolID    string          `json:"tool_id"`
	Name      string          `json:"name"`
	Args      json.RawMessage `json:"args"`
	TimeoutMs *int64          `json:"timeout_ms,omitempty"`
}

func (ToolStarted) Type() string { return "tool_started" }

// ToolStdout carries one line of a tool's standard output.
type ToolStdout struct {
	ToolID string `json:"tool_id"`
	Chunk  string `json:"chunk"`
}

func (ToolStdout) Type() string { return "tool_stdout" }

// ToolStderr carries one line of a tool's standard error.
type ToolStderr struct {
	ToolID string `json:"tool_id"`
	Chunk  string `json:"chunk"`
}

func (ToolStderr) Type() string { return "tool_stderr" }

// ToolEnded reports a completed tool invocation.
type ToolEnded struct {
	ToolID     string          `json:"tool_id"`
	ExitCode   int             `json:"exit_code"`
	DurationMs int64           `json:"duration_ms"`
	Artifacts  json.RawMessage `json:"artifacts,omitempty"`
}

func (ToolEnded) Type() string { return "tool_ended" }

// ToolFailed reports a tool invocation that never produced an output
// (unknown tool, timeout).
type ToolFailed struct {
	ToolID string `json:"tool_id"`
	Error  string `json:"error"`
}

func (ToolFailed) Type() string { return "tool_failed" }

// kindConstructors maps a JSON discriminator to a zero value of its
// concrete type, used by UnmarshalJSON to pick a decode target.
var kindConstructors = map[string]func() Kind{
	SessionStarted{}.Type():         func() Kind { return SessionStarted{} },
	OutputTextDelta{}.Type():        func() Kind { return OutputTextDelta{} },
	ReasoningDelta{}.Type():         func() Kind { return ReasoningDelta{} },
	ToolCallArgumentsDelta{}.Type(): func() Kind { return ToolCallArgumentsDelta{} },
	SessionEnded{}.Type():           func() Kind { return SessionEnded{} },
	ProviderEvent{}.Type():          func() Kind { return ProviderEvent{} },
	ToolStarted{}.Type():            func() Kind { return ToolStarted{} },
	ToolStdout{}.Type():             func() Kind { return ToolStdout{} },
	ToolStderr{}.Type():             func() Kind { return ToolStderr{} },
	ToolEnded{}.Type():              func() Kind { return ToolEnded{} },
	ToolFailed{}.Type():             func() Kind { return ToolFailed{} },
}
