// Package session implements the session state machine (C4) and the
// session service (C11): the former advances one session one frame at a
// time and runs it past the hook engine, grounded on
// original_source/crates/rip-kernel/src/lib.rs's Session/Stage/next_event;
// the latter owns the set of live sessions and fans their frames out to
// subscribers, grounded on the Bus/Subscriber pattern in the teacher's
// runtime/agent/hooks/bus.go.
package session

import (
	"context"

	"github.com/xLillium/rip/internal/frame"
	"github.com/xLillium/rip/internal/framemap"
	"github.com/xLillium/rip/internal/sse"
)

// Driver produces the raw, unstamped frame.Kind values a Session
// advances through. Session owns stamping (id/seq/timestamp) and hook
// evaluation; a Driver only decides what happens next.
//
// Next returns false once the driver has nothing further to produce.
// A driver that has finished must keep returning false; Session never
// calls Next again after it has seen false or emitted a session_ended
// kind.
type Driver interface {
	Next(ctx context.Context) (frame.Kind, bool)
}

// stage is the four-state progression rip-kernel's Session walks
// through for a locally-synthesized reply.
type stage int

const (
	stageStart stage = iota
	stageOutput
	stageEnd
	stageDone
)

// EchoDriver is a direct port of rip-kernel's Session::next_event: it
// acknowledges the session's input with one output delta and ends.
// There is no provider involved; it exists for sessions that don't
// stream from an upstream model (tests, local command sessions).
type EchoDriver struct {
	input string
	stage stage
}

// NewEchoDriver returns a driver that will emit session_started,
// output_text_delta ("ack: "+input), then session_ended, in that order.
func NewEchoDriver(input string) *EchoDriver {
	return &EchoDriver{input: input}
}

// Next advances the echo driver by one stage.
func (d *EchoDriver) Next(ctx context.Context) (frame.Kind, bool) {
	switch d.stage {
	case stageStart:
		d.stage = stageOutput
		return frame.SessionStarted{Input: d.input}, true
	case stageOutput:
		d.stage = stageEnd
		return frame.OutputTextDelta{Delta: "ack: " + d.input}, true
	case stageEnd:
		d.stage = stageDone
		return frame.SessionEnded{Reason: "completed"}, true
	default:
		return nil, false
	}
}

// ProviderDriver resolves spec.md's open question on provider-streaming
// sessions: it pumps raw SSE chunks arriving on a channel through the
// provider stream decoder (internal/sse) and the frame mapper
// (internal/framemap), and hands the resulting frame kinds to the
// session one at a time.
//
// The channel carries the upstream provider's response body as it
// arrives; closing it signals end of stream, which ProviderDriver turns
// into a final Decoder.Finish() flush.
type ProviderDriver struct {
	chunks  <-chan string
	decoder *sse.Decoder
	mapper  *framemap.Mapper
	pending []frame.Kind
	closed  bool
}

// NewProviderDriver returns a driver that maps chunks received on
// chunks into session frame kinds for sessionID.
func NewProviderDriver(sessionID string, chunks <-chan string) *ProviderDriver {
	return &ProviderDriver{
		chunks:  chunks,
		decoder: sse.New(),
		mapper:  framemap.New(sessionID),
	}
}

// Next drains any buffered kinds first, then pulls chunks off the
// channel (or honors ctx cancellation) until one yields a kind or the
// channel closes.
func (d *ProviderDriver) Next(ctx context.Context) (frame.Kind, bool) {
	for {
		if len(d.pending) > 0 {
			k := d.pending[0]
			d.pending = d.pending[1:]
			return k, true
		}
		if d.closed {
			return nil, false
		}
		select {
		case <-ctx.Done():
			return nil, false
		case chunk, ok := <-d.chunks:
			if !ok {
				d.closed = true
				d.drain(d.decoder.Finish())
				continue
			}
			d.drain(d.decoder.Push(chunk))
		}
	}
}

func (d *ProviderDriver) drain(parsed []sse.ParsedEvent) {
	for _, p := range parsed {
		if fr, ok := d.mapper.Map(p); ok {
			d.pending = append(d.pending, fr.Kind)
		}
	}
}
