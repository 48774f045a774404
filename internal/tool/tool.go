// Package tool defines the vocabulary the workspace tool sandbox (C9)
// and the tool runner (C10) share: invocations, outputs, handlers, and a
// concurrency-safe name-to-handler registry, grounded on
// original_source/crates/ripd/src/tool_runtime.rs's ToolInvocation /
// ToolOutput / ToolHandler / ToolRegistry.
package tool

import (
	"context"
	"encoding/json"
	"sync"
)

// Invocation is one request to run a named tool with JSON-encoded
// arguments and an optional timeout.
type Invocation struct {
	Name      string
	Args      json.RawMessage
	TimeoutMs *int64
}

// Output is what a Handler produces: captured stdout/stderr lines, an
// exit code, and optional structured artifacts.
type Output struct {
	Stdout    []string
	Stderr    []string
	ExitCode  int
	Artifacts json.RawMessage
}

// Success builds an Output with exit code 0 and no stderr/artifacts.
func Success(stdout ...string) Output {
	return Output{Stdout: stdout, ExitCode: 0}
}

// Failure builds a non-zero-exit Output carrying err as its only stderr
// line.
func Failure(err string) Output {
	return Output{Stderr: []string{err}, ExitCode: 1}
}

// InvalidArgs builds a Failure Output for a malformed invocation.
func InvalidArgs(msg string) Output {
	return Failure("invalid args: " + msg)
}

// Handler executes one Invocation. Handlers must respect ctx
// cancellation for anything that can block.
type Handler func(ctx context.Context, inv Invocation) Output

// Registry is a concurrency-safe name-to-Handler map.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Handler)}
}

// Register installs handler under name, replacing any prior handler
// with that name.
func (r *Registry) Register(name string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = handler
}

// RegisterAlias makes alias resolve to the same handler already
// registered under name. It is a no-op if name is not registered.
func (r *Registry) RegisterAlias(alias, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.tools[name]; ok {
		r.tools[alias] = h
	}
}

// Get returns the handler registered under name, if any.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.tools[name]
	return h, ok
}
