// Package toolrunner implements the tool runner (C10): it dispatches a
// tool.Invocation through a tool.Registry under a bounded-concurrency
// semaphore and an optional rate limit, and turns the result into the
// frame.Frame sequence a session streams to its subscribers. Grounded on
// original_source/crates/ripd/src/tool_runtime.rs's ToolRunner::run.
package toolrunner

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/google/uuid"

	"github.com/xLillium/rip/internal/frame"
	"github.com/xLillium/rip/internal/telemetry"
	"github.com/xLillium/rip/internal/tool"
)

// Runner dispatches invocations against a shared tool.Registry.
//
// The concurrency cap is a buffered channel used as a semaphore: no
// third-party semaphore appears anywhere in the retrieval pack, so this
// is built on the stdlib channel idiom the pack itself uses for
// bounded-worker patterns.
type Runner struct {
	registry *tool.Registry
	sem      chan struct{}
	limiter  *rate.Limiter
	tracer   telemetry.Tracer
	logger   telemetry.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithRateLimit caps the Runner to one invocation starting per period,
// on average, using a token-bucket limiter. This is a capability the
// original ToolRunner does not have; it exists so the rest of the
// ecosystem's rate-limiting library has a concrete home in this repo.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(runner *Runner) {
		runner.limiter = rate.NewLimiter(r, burst)
	}
}

// WithTelemetry equips the Runner with a tracer and logger, one span
// started per invocation. Defaults to the noop implementations.
func WithTelemetry(tracer telemetry.Tracer, logger telemetry.Logger) Option {
	return func(runner *Runner) {
		runner.tracer = tracer
		runner.logger = logger
	}
}

// New returns a Runner bounded to maxConcurrency simultaneous
// invocations (minimum 1).
func New(registry *tool.Registry, maxConcurrency int, opts ...Option) *Runner {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	runner := &Runner{
		registry: registry,
		sem:      make(chan struct{}, maxConcurrency),
		tracer:   telemetry.NewNoopTracer(),
		logger:   telemetry.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(runner)
	}
	return runner
}

// Run executes inv and returns the frames it produces: tool_started,
// any number of tool_stdout/tool_stderr, then exactly one of tool_ended
// or tool_failed. seq is the caller's running sequence counter; Run
// advances it by one per emitted frame.
func (r *Runner) Run(ctx context.Context, sessionID string, seq *uint64, inv tool.Invocation) []frame.Frame {
	ctx, span := r.tracer.Start(ctx, "toolrunner.Run")
	defer span.End()

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil
		}
	}

	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil
	}
	defer func() { <-r.sem }()

	toolID := uuid.NewString()
	started := time.Now()
	r.logger.Info(ctx, "tool invocation started", "session_id", sessionID, "tool_id", toolID, "name", inv.Name)

	var frames []frame.Frame
	frames = append(frames, r.emit(sessionID, seq, frame.ToolStarted{
		ToolID:    toolID,
		Name:      inv.Name,
		Args:      inv.Args,
		TimeoutMs: inv.TimeoutMs,
	}))

	handler, ok := r.registry.Get(inv.Name)
	if !ok {
		span.RecordError(errUnknownTool{name: inv.Name})
		r.logger.Warn(ctx, "tool invocation failed", "session_id", sessionID, "tool_id", toolID, "error", "unknown tool")
		frames = append(frames, r.emit(sessionID, seq, frame.ToolFailed{
			ToolID: toolID,
			Error:  "unknown tool",
		}))
		return frames
	}

	output, err := r.invoke(ctx, handler, inv)
	if err != nil {
		span.RecordError(err)
		r.logger.Warn(ctx, "tool invocation failed", "session_id", sessionID, "tool_id", toolID, "error", err.Error())
		frames = append(frames, r.emit(sessionID, seq, frame.ToolFailed{
			ToolID: toolID,
			Error:  err.Error(),
		}))
		return frames
	}

	for _, chunk := range output.Stdout {
		frames = append(frames, r.emit(sessionID, seq, frame.ToolStdout{ToolID: toolID, Chunk: chunk}))
	}
	for _, chunk := range output.Stderr {
		frames = append(frames, r.emit(sessionID, seq, frame.ToolStderr{ToolID: toolID, Chunk: chunk}))
	}
	frames = append(frames, r.emit(sessionID, seq, frame.ToolEnded{
		ToolID:     toolID,
		ExitCode:   output.ExitCode,
		DurationMs: time.Since(started).Milliseconds(),
		Artifacts:  output.Artifacts,
	}))
	r.logger.Info(ctx, "tool invocation ended", "session_id", sessionID, "tool_id", toolID, "exit_code", output.ExitCode)
	return frames
}

func (r *Runner) invoke(ctx context.Context, handler tool.Handler, inv tool.Invocation) (tool.Output, error) {
	if inv.TimeoutMs == nil {
		return handler(ctx, inv), nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(*inv.TimeoutMs)*time.Millisecond)
	defer cancel()

	result := make(chan tool.Output, 1)
	go func() { result <- handler(timeoutCtx, inv) }()

	select {
	case out := <-result:
		return out, nil
	case <-timeoutCtx.Done():
		return tool.Output{}, timeoutErr{}
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "timeout" }

type errUnknownTool struct{ name string }

func (e errUnknownTool) Error() string { return "unknown tool: " + e.name }

func (r *Runner) emit(sessionID string, seq *uint64, kind frame.Kind) frame.Frame {
	fr := frame.New(sessionID, *seq, kind)
	*seq++
	return fr
}
