// Package tools holds the catalog of operations the model may invoke and the
// dispatcher that routes an invocation to its adapter-backed handler.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rodpglo1956/GloJohnStocky/internal/anthropic"
)

// Caller identifies who a tool runs on behalf of. Handlers scope their reads
// and writes to it.
type Caller struct {
	Bot    string
	ChatID int64
}

// Handler executes one tool invocation. A returned error becomes an
// error-shaped result; handlers never panic through the dispatcher.
type Handler func(ctx context.Context, caller Caller, input map[string]any) (string, error)

// Definition binds a tool's catalog entry and its handler as one unit, so the
// catalog shown to the model and the dispatch table cannot drift apart.
type Definition struct {
	Spec    anthropic.Tool
	Handler Handler
}

// Result is the uniform envelope fed back to the model for every invocation.
type Result struct {
	Content string
	IsError bool
}

// Registry is a fixed catalog of tools, validated at construction and
// immutable afterwards.
type Registry struct {
	defs  []Definition
	index map[string]int
}

// NewRegistry builds a registry from one or more definition groups.
// Duplicate or empty names and nil handlers are construction errors.
func NewRegistry(groups ...[]Definition) (*Registry, error) {
	r := &Registry{index: make(map[string]int)}
	for _, group := range groups {
		for _, def := range group {
			name := def.Spec.Name
			if name == "" {
				return nil, fmt.Errorf("tool with empty name")
			}
			if def.Handler == nil {
				return nil, fmt.Errorf("tool %s has no handler", name)
			}
			if _, exists := r.index[name]; exists {
				return nil, fmt.Errorf("tool %s registered twice", name)
			}
			r.index[name] = len(r.defs)
			r.defs = append(r.defs, def)
		}
	}
	return r, nil
}

// Catalog returns the tool descriptors in registration order, for inclusion
// in every model request.
func (r *Registry) Catalog() []anthropic.Tool {
	catalog := make([]anthropic.Tool, len(r.defs))
	for i, def := range r.defs {
		catalog[i] = def.Spec
	}
	return catalog
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.defs))
	for i, def := range r.defs {
		names[i] = def.Spec.Name
	}
	return names
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return len(r.defs)
}

// Execute runs the named tool. Unknown names and handler failures come back
// as error-shaped results rather than Go errors, so the orchestrator can feed
// them to the model and let the conversation self-correct.
func (r *Registry) Execute(ctx context.Context, caller Caller, name string, input map[string]any) Result {
	idx, ok := r.index[name]
	if !ok {
		return Result{Content: fmt.Sprintf("unknown tool: %s", name), IsError: true}
	}

	start := time.Now()
	content, err := safeCall(ctx, r.defs[idx].Handler, caller, input)
	elapsed := time.Since(start)

	if err != nil {
		slog.Warn("tool failed", "tool", name, "bot", caller.Bot, "elapsed_ms", elapsed.Milliseconds(), "error", err)
		return Result{Content: err.Error(), IsError: true}
	}

	slog.Debug("tool ok", "tool", name, "bot", caller.Bot, "elapsed_ms", elapsed.Milliseconds())
	return Result{Content: content}
}

func safeCall(ctx context.Context, h Handler, caller Caller, input map[string]any) (content string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("tool panicked: %v", rec)
		}
	}()
	return h(ctx, caller, input)
}
