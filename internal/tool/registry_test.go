package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoInput struct {
	Text string `json:"text" jsonschema:"text to echo back"`
}

type fakeTool struct {
	name    string
	execute func(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error)
}

func (t *fakeTool) Name() string        { return t.name }
func (t *fakeTool) Description() string { return "echoes its input" }

func (t *fakeTool) Schema() *jsonschema.Schema {
	schema, err := jsonschema.For[echoInput](nil)
	if err != nil {
		panic(err)
	}
	return schema
}

func (t *fakeTool) Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
	return t.execute(ctx, input, tc)
}

func TestRegistry_Invoke(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{
		name: "echo",
		execute: func(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
			var in echoInput
			require.NoError(t, json.Unmarshal(input, &in))
			return &Result{Success: true, Summary: in.Text}, nil
		},
	})

	result, err := reg.Invoke(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`), &Context{})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "hi", result.Summary)
}

func TestRegistry_InvokeUnknownTool(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Invoke(context.Background(), "nope", json.RawMessage(`{}`), &Context{})
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistry_InvokeInvalidInput(t *testing.T) {
	reg := NewRegistry()
	executed := false
	reg.Register(&fakeTool{
		name: "echo",
		execute: func(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
			executed = true
			return &Result{Success: true}, nil
		},
	})

	tests := []struct {
		name string
		args string
	}{
		{"not json", `{"text":`},
		{"wrong type", `{"text":42}`},
		{"missing field", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Invoke(context.Background(), "echo", json.RawMessage(tt.args), &Context{})
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.False(t, executed, "executor must not run on schema violations")
}

func TestRegistry_InvokeExecutorError(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{
		name: "echo",
		execute: func(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
			return nil, assert.AnError
		},
	})

	_, err := reg.Invoke(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`), &Context{})
	assert.ErrorIs(t, err, ErrExecutionFailed)
}

func TestRegistry_InvokeRecoversPanic(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{
		name: "echo",
		execute: func(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
			panic("boom")
		},
	})

	result, err := reg.Invoke(context.Background(), "echo", json.RawMessage(`{"text":"hi"}`), &Context{})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrExecutionFailed)
}

func TestRegistry_Describe(t *testing.T) {
	reg := NewRegistry()
	reg.Register(&fakeTool{name: "zeta"})
	reg.Register(&fakeTool{name: "alpha"})

	descs := reg.Describe()
	require.Len(t, descs, 2)
	assert.Equal(t, "alpha", descs[0].Name)
	assert.Equal(t, "zeta", descs[1].Name)
	assert.NotNil(t, descs[0].Schema)
}

func TestFailure(t *testing.T) {
	r := Failure(ErrInvalidInput)
	assert.False(t, r.Success)
	assert.Contains(t, r.Summary, "format")

	r = Failure(ErrExecutionFailed)
	assert.False(t, r.Success)
	assert.Contains(t, r.Summary, "failed")
}
