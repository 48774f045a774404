// Package framemap implements the frame mapper (C8): it turns decoded
// provider stream events (internal/sse.ParsedEvent) into the session's
// closed-sum frame.Frame values, grounded on
// original_source/crates/rip-provider-openresponses/src/lib.rs's
// EventFrameMapper, and on stream_transformers.rs for the
// reasoning-delta and tool-call-argument-delta supplement cases that
// file's own extractors show but the original mapper's switch never
// wired in.
package framemap

import (
	"github.com/xLillium/rip/internal/frame"
	"github.com/xLillium/rip/internal/sse"
)

// Mapper holds the per-session sequencing state needed to turn a stream
// of ParsedEvent values into Frame values. Once it has emitted a
// session_ended frame it emits nothing further.
type Mapper struct {
	sessionID string
	seq       uint64
	ended     bool
}

// New returns a Mapper for sessionID, with its own independent seq
// counter starting at 0.
func New(sessionID string) *Mapper {
	return &Mapper{sessionID: sessionID}
}

// Map consumes one ParsedEvent and returns the Frame it produces, if
// any. The bool result is false when the event yields no frame (e.g.
// invalid JSON, an event type the mapper does not recognize, or any
// event arriving after the session has already ended).
func (m *Mapper) Map(parsed sse.ParsedEvent) (frame.Frame, bool) {
	if m.ended {
		return frame.Frame{}, false
	}

	switch parsed.Kind {
	case sse.KindDone:
		return m.emitEnd("done")

	case sse.KindInvalidJSON:
		return frame.Frame{}, false

	case sse.KindEvent:
		return m.mapEvent(parsed)

	default:
		return frame.Frame{}, false
	}
}

func (m *Mapper) mapEvent(parsed sse.ParsedEvent) (frame.Frame, bool) {
	if parsed.Data == nil {
		return frame.Frame{}, false
	}
	eventType, ok := parsed.Data["type"].(string)
	if !ok {
		return frame.Frame{}, false
	}

	switch eventType {
	case "response.output_text.delta":
		delta, ok := parsed.Data["delta"].(string)
		if !ok {
			return frame.Frame{}, false
		}
		return m.emit(frame.OutputTextDelta{Delta: delta}), true

	case "response.reasoning.delta":
		delta, ok := parsed.Data["delta"].(string)
		if !ok {
			return frame.Frame{}, false
		}
		return m.emit(frame.ReasoningDelta{Delta: delta}), true

	case "response.function_call_arguments.delta":
		delta, ok := parsed.Data["delta"].(string)
		if !ok {
			return frame.Frame{}, false
		}
		toolCallID, _ := parsed.Data["item_id"].(string)
		toolName, _ := parsed.Data["name"].(string)
		return m.emit(frame.ToolCallArgumentsDelta{
			ToolCallID: toolCallID,
			ToolName:   toolName,
			Delta:      delta,
		}), true

	case "response.completed", "response.failed", "response.incomplete":
		return m.emitEnd(eventType)

	default:
		return frame.Frame{}, false
	}
}

func (m *Mapper) emitEnd(reason string) (frame.Frame, bool) {
	if m.ended {
		return frame.Frame{}, false
	}
	m.ended = true
	return m.emit(frame.SessionEnded{Reason: reason}), true
}

func (m *Mapper) emit(kind frame.Kind) frame.Frame {
	fr := frame.New(m.sessionID, m.seq, kind)
	m.seq++
	return fr
}
