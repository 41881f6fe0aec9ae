// Package tool provides the schema-validated tool framework for model turns.
package tool

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/jsonschema-go/jsonschema"
)

var (
	// ErrUnknownTool is returned when a call names an unregistered tool.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidInput means the arguments violated the tool's input schema.
	// The executor never runs in this case.
	ErrInvalidInput = errors.New("invalid tool input")
	// ErrExecutionFailed means the executor ran and failed, including
	// persistence failures. Partial success is reported as failure.
	ErrExecutionFailed = errors.New("tool execution failed")
)

// Tool is a named, schema-validated, side-effecting capability.
type Tool interface {
	// Name returns the tool identifier the model calls it by.
	Name() string

	// Description tells the model when to use the tool.
	Description() string

	// Schema returns the JSON schema for the tool's input.
	Schema() *jsonschema.Schema

	// Execute runs the tool. Input has already been validated against Schema.
	Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error)
}

// Context carries per-invocation identity into the executor.
type Context struct {
	OwnerID   string
	SessionID string
	CallID    string
}

// Result is the structured outcome re-injected into the model context.
type Result struct {
	Success bool   `json:"success"`
	Count   int    `json:"count,omitempty"`
	Summary string `json:"summary"`

	// UISignal lets callers drive interface side effects (e.g. refreshing
	// a flashcard panel) without parsing the summary text.
	UISignal string `json:"uiSignal,omitempty"`
}

// Failure builds the structured result for a tool error, so the model can
// acknowledge the failure to the user instead of the stream breaking.
func Failure(err error) *Result {
	summary := "tool execution failed"
	if errors.Is(err, ErrInvalidInput) {
		summary = "tool input did not match the expected format"
	}
	return &Result{Success: false, Summary: summary}
}

// Descriptor is the advertised shape of a registered tool.
type Descriptor struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}
