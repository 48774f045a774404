package session

import (
	"context"

	"github.com/google/uuid"

	"github.com/xLillium/rip/internal/frame"
	"github.com/xLillium/rip/internal/hooks"
)

// Session advances a Driver one frame at a time, stamping each kind into
// a frame.Frame and running it past a hook engine before handing it to
// the caller. It is a direct generalization of rip-kernel's
// Session::next_event, with the "what comes next" concern factored out
// into Driver so the same stamping/hook algorithm serves both locally
// echoed sessions and provider-streamed ones.
type Session struct {
	id     string
	driver Driver
	hooks  *hooks.Engine
	seq    uint64
	done   bool
}

// New returns a Session with a fresh id, driven by driver, observed by
// hooksEngine.
func New(driver Driver, hooksEngine *hooks.Engine) *Session {
	return NewWithID(uuid.NewString(), driver, hooksEngine)
}

// NewWithID returns a Session identified by id, driven by driver,
// observed by hooksEngine. Service uses this to keep a session's id
// stable across the CreateSession/SendInput split (the id is minted at
// CreateSession time, before a driver exists to hand to a Session).
func NewWithID(id string, driver Driver, hooksEngine *hooks.Engine) *Session {
	return &Session{
		id:     id,
		driver: driver,
		hooks:  hooksEngine,
	}
}

// ID returns the session's identifier.
func (s *Session) ID() string {
	return s.id
}

// Done reports whether the session has emitted its terminal frame.
func (s *Session) Done() bool {
	return s.done
}

// NextFrame pulls the next kind from the driver, stamps it, and runs it
// past the hook engine.
//
// On Continue the stamped frame is returned as-is and seq advances. On
// Abort the driver's frame is discarded, the session is forced to its
// terminal state, and a synthetic session_ended frame carrying the
// abort reason is returned instead — matching rip-kernel's Abort branch,
// which replaces whatever Stage::End would have produced.
//
// The second result is false once the session has nothing further to
// emit: the driver is exhausted, or a session_ended frame (synthetic or
// driver-produced) has already been returned.
func (s *Session) NextFrame(ctx context.Context) (frame.Frame, bool) {
	if s.done {
		return frame.Frame{}, false
	}

	kind, ok := s.driver.Next(ctx)
	if !ok {
		s.done = true
		return frame.Frame{}, false
	}

	fr := frame.New(s.id, s.seq, kind)
	ctxt := hooks.Context{
		SessionID:   s.id,
		Seq:         s.seq,
		TimestampMs: fr.TimestampMs,
		Event:       hooks.FilterFor(kind),
		Output:      hooks.OutputText(kind),
	}

	outcome := s.hooks.Run(ctxt)
	if outcome.Abort {
		s.done = true
		abortFrame := frame.New(s.id, s.seq, frame.SessionEnded{Reason: outcome.Reason})
		s.seq++
		return abortFrame, true
	}

	s.seq++
	if _, ended := kind.(frame.SessionEnded); ended {
		s.done = true
	}
	return fr, true
}
