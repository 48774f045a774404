package session

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xLillium/rip/internal/command"
	"github.com/xLillium/rip/internal/eventlog"
	"github.com/xLillium/rip/internal/frame"
	"github.com/xLillium/rip/internal/hooks"
	"github.com/xLillium/rip/internal/telemetry"
	"github.com/xLillium/rip/internal/tool"
	"github.com/xLillium/rip/internal/toolrunner"
)

// BroadcastCapacity is the bounded, lossy-on-slow-subscribers buffer
// size every per-session broadcast channel is created with.
const BroadcastCapacity = 128

// ErrSessionNotFound is returned by every Service operation given an
// unknown session id, in place of the not-found signal spec.md asks for
// rather than an exception.
var ErrSessionNotFound = errors.New("session not found")

// broadcaster fans a session's frames out to its live subscribers. It is
// adapted from the synchronous Publish/Register Bus in the teacher's
// runtime/agent/hooks/bus.go, changed from subscribers invoked
// synchronously in the publisher's goroutine (and able to veto) to
// subscribers that each own a buffered channel and can never block or
// fail the publish: a slow subscriber is dropped, never stalls the
// session.
type broadcaster struct {
	mu   sync.Mutex
	subs map[*subscription]chan frame.Frame
}

type subscription struct {
	parent *broadcaster
	ch     chan frame.Frame
	once   sync.Once
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[*subscription]chan frame.Frame)}
}

func (b *broadcaster) subscribe() (*subscription, <-chan frame.Frame) {
	ch := make(chan frame.Frame, BroadcastCapacity)
	sub := &subscription{parent: b, ch: ch}
	b.mu.Lock()
	b.subs[sub] = ch
	b.mu.Unlock()
	return sub, ch
}

// publish delivers fr to every current subscriber, dropping it for any
// subscriber whose buffer is full rather than blocking the caller.
func (b *broadcaster) publish(fr frame.Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- fr:
		default:
		}
	}
}

// closeAll closes every subscriber channel, observed by callers as
// channel closure per spec.md's cancellation contract.
func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub, ch := range b.subs {
		close(ch)
		delete(b.subs, sub)
	}
}

func (s *subscription) unsubscribe() {
	s.once.Do(func() {
		s.parent.mu.Lock()
		if ch, ok := s.parent.subs[s]; ok {
			close(ch)
			delete(s.parent.subs, s)
		}
		s.parent.mu.Unlock()
	})
}

// sessionHandle is the Session Handle of spec.md §4.2/§4.11: the
// broadcaster plus the authoritative in-memory replay buffer. seq is
// the session's single running counter, shared by driver-produced
// frames and by any tool frames RunTool appends, so "every subscriber
// observes frames in seq order" (spec.md §4.11) holds regardless of
// which of the two produced a given frame.
type sessionHandle struct {
	broadcaster *broadcaster
	frames      []frame.Frame
	seq         uint64
}

// Service is the session service (C11): it owns every live session's
// handle, spawns the driver goroutine send_input starts, and routes
// each frame to the durable log, the replay buffer, and the broadcast.
type Service struct {
	mu          sync.Mutex
	hooks       *hooks.Engine
	log         *eventlog.Log
	snapshotDir string
	sessions    map[string]*sessionHandle
	toolRunner  *toolrunner.Runner
	commands    *command.Registry
	tracer      telemetry.Tracer
	logger      telemetry.Logger
	remote      *RedisBroadcaster
	mongoIndex  *eventlog.MongoSnapshotIndex
}

// ServiceOption configures optional Service capabilities.
type ServiceOption func(*Service)

// WithToolRunner equips the Service with the tool runner (C10) tool
// invocations originating inside a session are executed through,
// enabling RunTool.
func WithToolRunner(r *toolrunner.Runner) ServiceOption {
	return func(s *Service) { s.toolRunner = r }
}

// WithCommands equips the Service with the side-band command registry
// (C3) ExecuteCommand dispatches through. Pairing a command registry
// with the hook engine mirrors original_source/crates/rip-kernel's
// Runtime, which bundles HookEngine and CommandRegistry as the two
// side channels a Session's driver loop doesn't itself know about.
func WithCommands(r *command.Registry) ServiceOption {
	return func(s *Service) { s.commands = r }
}

// WithTelemetry equips the Service with a tracer and logger, one span
// started per session's driver run. Defaults to the noop
// implementations.
func WithTelemetry(tracer telemetry.Tracer, logger telemetry.Logger) ServiceOption {
	return func(s *Service) {
		s.tracer = tracer
		s.logger = logger
	}
}

// WithRedisBroadcaster equips the Service with the multi-process
// broadcast supplement (see redis_broadcaster.go): every frame
// published locally is also published over Redis, so a subscriber
// attached to a different ripd process than the one driving the
// session still observes it. Wired in alongside, never instead of, the
// in-process broadcaster every sessionHandle already has.
func WithRedisBroadcaster(r *RedisBroadcaster) ServiceOption {
	return func(s *Service) { s.remote = r }
}

// WithMongoSnapshotIndex equips the Service with the snapshot-location
// index (see eventlog.MongoSnapshotIndex): finish records where each
// session's snapshot file was written so a deployment without a shared
// filesystem across ripd processes can still locate it.
func WithMongoSnapshotIndex(idx *eventlog.MongoSnapshotIndex) ServiceOption {
	return func(s *Service) { s.mongoIndex = idx }
}

// NewService returns a Service whose sessions are observed by
// hooksEngine and durably recorded to log, with end-of-session
// snapshots written under snapshotDir. log and snapshotDir may be left
// nil/"" in tests that don't exercise persistence.
func NewService(hooksEngine *hooks.Engine, log *eventlog.Log, snapshotDir string, opts ...ServiceOption) *Service {
	s := &Service{
		hooks:       hooksEngine,
		log:         log,
		snapshotDir: snapshotDir,
		sessions:    make(map[string]*sessionHandle),
		tracer:      telemetry.NewNoopTracer(),
		logger:      telemetry.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateSession registers an empty handle and returns its new id. No
// driver runs until SendInput is called.
func (s *Service) CreateSession() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &sessionHandle{broadcaster: newBroadcaster()}
	s.mu.Unlock()
	return id
}

// SendInput spawns an EchoDriver-backed session for sessionID and
// streams its frames to the log, replay buffer, and broadcast.
func (s *Service) SendInput(sessionID, input string) error {
	return s.run(sessionID, NewEchoDriver(input))
}

// SendProviderChunks spawns a ProviderDriver-backed session for
// sessionID, mapping raw upstream SSE bytes arriving on chunks into
// session frames. This is the provider-backed equivalent spec.md §4.11
// names as an alternative to the local §4.4 driver.
func (s *Service) SendProviderChunks(sessionID string, chunks <-chan string) error {
	return s.run(sessionID, NewProviderDriver(sessionID, chunks))
}

func (s *Service) run(sessionID string, driver Driver) error {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sess := NewWithID(sessionID, driver, s.hooks)
	go s.drive(sess)
	return nil
}

// drive runs sess to completion, routing each frame to the durable log
// unconditionally and to the replay buffer/broadcast only while the
// handle still exists. This is the Go shape of spec.md §4.11's
// cancellation contract: "the driver task is not forcibly aborted but
// detects the missing handle on its next broadcast attempt... the
// driver still appends to the log."
func (s *Service) drive(sess *Session) {
	ctx, span := s.tracer.Start(context.Background(), "session.drive")
	defer span.End()
	s.logger.Info(ctx, "session driver started", "session_id", sess.ID())

	for {
		fr, ok := sess.NextFrame(ctx)
		if !ok {
			return
		}

		s.mu.Lock()
		handle, exists := s.sessions[sess.ID()]
		if exists {
			fr.Seq = handle.seq
			handle.seq++
			handle.frames = append(handle.frames, fr)
		}
		s.mu.Unlock()

		if s.log != nil {
			_ = s.log.Append(fr)
		}
		if exists {
			handle.broadcaster.publish(fr)
			if s.remote != nil {
				_ = s.remote.Publish(ctx, sess.ID(), fr)
			}
		}

		if _, ended := fr.Kind.(frame.SessionEnded); ended {
			s.logger.Info(ctx, "session driver ended", "session_id", sess.ID())
			s.finish(sess.ID())
			return
		}
	}
}

// RunTool executes inv through the configured tool runner (see
// WithToolRunner) and routes the resulting tool_started/tool_stdout/
// tool_stderr/tool_ended-or-failed frames to sessionID's log, replay
// buffer, and broadcast, continuing from the session's own running seq
// counter so tool frames interleave correctly with driver frames.
func (s *Service) RunTool(ctx context.Context, sessionID string, inv tool.Invocation) ([]frame.Frame, error) {
	if s.toolRunner == nil {
		return nil, errors.New("session: no tool runner configured")
	}

	s.mu.Lock()
	handle, ok := s.sessions[sessionID]
	var seq uint64
	if ok {
		seq = handle.seq
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	frames := s.toolRunner.Run(ctx, sessionID, &seq, inv)

	s.mu.Lock()
	handle, ok = s.sessions[sessionID]
	if ok {
		handle.seq = seq
		handle.frames = append(handle.frames, frames...)
	}
	s.mu.Unlock()

	if s.log != nil {
		for _, fr := range frames {
			_ = s.log.Append(fr)
		}
	}
	if ok {
		for _, fr := range frames {
			handle.broadcaster.publish(fr)
			if s.remote != nil {
				_ = s.remote.Publish(ctx, sessionID, fr)
			}
		}
	}
	return frames, nil
}

// ExecuteCommand runs name through the configured command registry (see
// WithCommands), scoped to sessionID: the session must exist, but the
// command itself runs outside the driver's frame stream and produces no
// frame of its own, matching rip-kernel's Runtime treating commands as a
// side channel distinct from the Session's event sequence.
func (s *Service) ExecuteCommand(sessionID, name string, args []string, raw string) (string, error) {
	if s.commands == nil {
		return "", errors.New("session: no command registry configured")
	}
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return "", ErrSessionNotFound
	}
	return s.commands.Execute(name, command.Context{SessionID: sessionID, Args: args, Raw: raw})
}

// finish snapshots the session's replay buffer, if the handle is still
// present and a snapshot directory was configured.
func (s *Service) finish(sessionID string) {
	s.mu.Lock()
	handle, ok := s.sessions[sessionID]
	var frames []frame.Frame
	if ok {
		frames = append(frames, handle.frames...)
	}
	s.mu.Unlock()

	if ok && s.snapshotDir != "" {
		err := eventlog.WriteSnapshot(s.snapshotDir, sessionID, frames)
		if err == nil && s.mongoIndex != nil {
			path := filepath.Join(s.snapshotDir, sessionID+".json")
			_ = s.mongoIndex.Record(context.Background(), sessionID, path, time.Now())
		}
	}
}

// Subscribe returns a cursor channel delivering sessionID's frames as
// they are broadcast, and an unsubscribe function to release it.
func (s *Service) Subscribe(sessionID string) (<-chan frame.Frame, func(), error) {
	s.mu.Lock()
	handle, ok := s.sessions[sessionID]
	s.mu.Unlock()
	if !ok {
		return nil, nil, ErrSessionNotFound
	}
	sub, ch := handle.broadcaster.subscribe()
	return ch, sub.unsubscribe, nil
}

// Replay returns a copy of sessionID's authoritative in-memory frame
// list emitted so far, for callers that joined late and need the
// frames a lossy broadcast may have dropped.
func (s *Service) Replay(sessionID string) ([]frame.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	frames := make([]frame.Frame, len(handle.frames))
	copy(frames, handle.frames)
	return frames, nil
}

// Cancel removes sessionID's handle and closes every subscriber
// channel. The driver goroutine, if still running, is left to notice
// the handle is gone on its next publish attempt rather than being
// forcibly aborted.
func (s *Service) Cancel(sessionID string) error {
	s.mu.Lock()
	handle, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	handle.broadcaster.closeAll()
	return nil
}
