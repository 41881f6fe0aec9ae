package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/sarvesh-official/lumo/internal/logging"
)

// Registry maps tool names to registered tools and guards every invocation
// with schema validation and panic recovery.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	resolved map[string]*jsonschema.Resolved
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		resolved: make(map[string]*jsonschema.Resolved),
	}
}

// Register adds a tool. Re-registering a name replaces the previous tool.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
	delete(r.resolved, t.Name())
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Describe returns descriptors for all registered tools, sorted by name.
func (r *Registry) Describe() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descs := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		descs = append(descs, Descriptor{
			Name:        t.Name(),
			Description: t.Description(),
			Schema:      t.Schema(),
		})
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Invoke validates rawArgs against the tool's schema and runs the executor.
// Schema violations come back wrapped in ErrInvalidInput without the
// executor running; executor errors and panics come back wrapped in
// ErrExecutionFailed.
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs json.RawMessage, tc *Context) (result *Result, err error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	schema, err := r.resolveSchema(t)
	if err != nil {
		return nil, fmt.Errorf("%w: resolving schema for %s: %v", ErrExecutionFailed, name, err)
	}

	var args any
	if err := json.Unmarshal(rawArgs, &args); err != nil {
		return nil, fmt.Errorf("%w: arguments are not valid JSON: %v", ErrInvalidInput, err)
	}
	if err := schema.Validate(args); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			logging.Error().Str("tool", name).Interface("panic", rec).Msg("tool executor panicked")
			result = nil
			err = fmt.Errorf("%w: executor panicked", ErrExecutionFailed)
		}
	}()

	result, execErr := t.Execute(ctx, rawArgs, tc)
	if execErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecutionFailed, execErr)
	}
	return result, nil
}

// resolveSchema resolves and caches a tool's schema on first use.
func (r *Registry) resolveSchema(t Tool) (*jsonschema.Resolved, error) {
	r.mu.RLock()
	resolved, ok := r.resolved[t.Name()]
	r.mu.RUnlock()
	if ok {
		return resolved, nil
	}

	resolved, err := t.Schema().Resolve(nil)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.resolved[t.Name()] = resolved
	r.mu.Unlock()
	return resolved, nil
}
