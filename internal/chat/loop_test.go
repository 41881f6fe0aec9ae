package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarvesh-official/lumo/internal/provider"
	"github.com/sarvesh-official/lumo/internal/storage"
	"github.com/sarvesh-official/lumo/internal/tool"
	"github.com/sarvesh-official/lumo/pkg/types"
)

// scriptedStep is one Stream call's worth of fake provider output.
type scriptedStep struct {
	events []provider.StreamEvent
	err    error
}

// fakeProvider replays scripted steps; once the script runs out it repeats
// the last step, which is how the unbounded-tool-loop case is modeled.
type fakeProvider struct {
	mu           sync.Mutex
	steps        []scriptedStep
	streamCalls  int
	completeText string
	completeErr  error
}

func (f *fakeProvider) Stream(ctx context.Context, req provider.Request) (*provider.Stream, error) {
	f.mu.Lock()
	idx := f.streamCalls
	f.streamCalls++
	if idx >= len(f.steps) {
		idx = len(f.steps) - 1
	}
	step := f.steps[idx]
	f.mu.Unlock()

	s := provider.NewStream(nil)
	go func() {
		for _, ev := range step.events {
			s.Send(ev)
		}
		s.Finish(step.err)
	}()
	return s, nil
}

func (f *fakeProvider) Complete(ctx context.Context, req provider.Request) (string, error) {
	return f.completeText, f.completeErr
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

// recordInput is the echo tool's validated input.
type recordInput struct {
	Note string `json:"note" jsonschema:"note to record"`
}

// recordTool remembers every invocation and can be told to fail.
type recordTool struct {
	mu      sync.Mutex
	inputs  []string
	failErr error
}

func (r *recordTool) Name() string        { return "record_note" }
func (r *recordTool) Description() string { return "records a note" }

func (r *recordTool) Schema() *jsonschema.Schema {
	schema, err := jsonschema.For[recordInput](nil)
	if err != nil {
		panic(err)
	}
	return schema
}

func (r *recordTool) Execute(ctx context.Context, input json.RawMessage, tc *tool.Context) (*tool.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failErr != nil {
		return nil, r.failErr
	}
	var in recordInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, err
	}
	r.inputs = append(r.inputs, in.Note)
	return &tool.Result{Success: true, Count: 1, Summary: "noted"}, nil
}

type turnFixture struct {
	svc      *Service
	orch     *Orchestrator
	fake     *fakeProvider
	tool     *recordTool
	events   []TurnEvent
	eventsMu sync.Mutex
}

func (f *turnFixture) sink(ev TurnEvent) {
	f.eventsMu.Lock()
	defer f.eventsMu.Unlock()
	f.events = append(f.events, ev)
}

func (f *turnFixture) eventTypes() []TurnEventType {
	f.eventsMu.Lock()
	defer f.eventsMu.Unlock()
	out := make([]TurnEventType, len(f.events))
	for i, ev := range f.events {
		out[i] = ev.Type
	}
	return out
}

func newTurnFixture(t *testing.T, fake *fakeProvider, maxSteps int) *turnFixture {
	t.Helper()

	svc := NewService(storage.New(t.TempDir()), nil)
	reg := provider.NewRegistry(func() (provider.Provider, error) { return fake, nil })

	rec := &recordTool{}
	tools := tool.NewRegistry()
	tools.Register(rec)

	return &turnFixture{
		svc:  svc,
		orch: NewOrchestrator(svc, reg, tools, nil, "gpt-4", maxSteps),
		fake: fake,
		tool: rec,
	}
}

func TestTurn_TextOnly(t *testing.T) {
	fake := &fakeProvider{steps: []scriptedStep{{
		events: []provider.StreamEvent{
			provider.TextDelta{Text: "Mitosis is "},
			provider.TextDelta{Text: "cell division."},
			provider.StepFinish{Reason: provider.ReasonStop},
		},
	}}}
	fx := newTurnFixture(t, fake, 0)
	ctx := context.Background()

	sess, err := fx.svc.Create(ctx, "user-a", "")
	require.NoError(t, err)

	err = fx.orch.Turn(ctx, TurnRequest{
		OwnerID:   "user-a",
		SessionID: sess.ID,
		Messages:  []types.Message{NewUserMessage("What is mitosis?")},
		Sink:      fx.sink,
	})
	require.NoError(t, err)

	assert.Equal(t, []TurnEventType{EventTextDelta, EventTextDelta, EventFinish}, fx.eventTypes())
	assert.Equal(t, 1, fake.calls())

	got, err := fx.svc.Get(ctx, "user-a", sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, types.RoleUser, got.Messages[0].Role)
	assert.Equal(t, types.RoleAssistant, got.Messages[1].Role)
	assert.Equal(t, "Mitosis is cell division.", got.Messages[1].Text())
}

func TestTurn_ToolCallThenConfirmation(t *testing.T) {
	fake := &fakeProvider{steps: []scriptedStep{
		{
			events: []provider.StreamEvent{
				provider.TextDelta{Text: "Sure."},
				provider.ToolCallStart{CallID: "call_1", Name: "record_note"},
				provider.ToolCallDelta{CallID: "call_1", Args: `{"note":`},
				provider.ToolCallDelta{CallID: "call_1", Args: `"osmosis"}`},
				provider.StepFinish{Reason: provider.ReasonToolCalls},
			},
		},
		{
			events: []provider.StreamEvent{
				provider.TextDelta{Text: "Saved your note!"},
				provider.StepFinish{Reason: provider.ReasonStop},
			},
		},
	}}
	fx := newTurnFixture(t, fake, 0)
	ctx := context.Background()

	sess, err := fx.svc.Create(ctx, "user-a", "")
	require.NoError(t, err)

	err = fx.orch.Turn(ctx, TurnRequest{
		OwnerID:   "user-a",
		SessionID: sess.ID,
		Messages:  []types.Message{NewUserMessage("record osmosis")},
		Sink:      fx.sink,
	})
	require.NoError(t, err)

	// Fragmented arguments were reassembled before dispatch.
	assert.Equal(t, []string{"osmosis"}, fx.tool.inputs)
	assert.Equal(t, 2, fake.calls())
	assert.Equal(t, []TurnEventType{
		EventTextDelta, EventToolCall, EventToolResult, EventTextDelta, EventFinish,
	}, fx.eventTypes())

	got, err := fx.svc.Get(ctx, "user-a", sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)

	parts := got.Messages[1].Parts
	require.Len(t, parts, 4)
	assert.Equal(t, "text", parts[0].PartType())
	assert.Equal(t, "tool-call", parts[1].PartType())
	assert.Equal(t, "tool-result", parts[2].PartType())
	assert.Equal(t, "text", parts[3].PartType())

	call := parts[1].(*types.ToolCallPart)
	result := parts[2].(*types.ToolResultPart)
	assert.Equal(t, "record_note", call.Name)
	assert.Equal(t, call.Name, result.Name)
	assert.Equal(t, call.CallID, result.CallID)
	assert.JSONEq(t, `{"note":"osmosis"}`, string(call.Args))
}

func TestTurn_StepBudgetTerminates(t *testing.T) {
	// A model that always asks for a tool must still finish.
	fake := &fakeProvider{steps: []scriptedStep{{
		events: []provider.StreamEvent{
			provider.ToolCallStart{CallID: "call_x", Name: "record_note"},
			provider.ToolCallDelta{CallID: "call_x", Args: `{"note":"again"}`},
			provider.StepFinish{Reason: provider.ReasonToolCalls},
		},
	}}}
	fx := newTurnFixture(t, fake, 0)
	ctx := context.Background()

	sess, err := fx.svc.Create(ctx, "user-a", "")
	require.NoError(t, err)

	err = fx.orch.Turn(ctx, TurnRequest{
		OwnerID:   "user-a",
		SessionID: sess.ID,
		Messages:  []types.Message{NewUserMessage("loop forever")},
		Sink:      fx.sink,
	})
	require.NoError(t, err)

	assert.Equal(t, DefaultMaxSteps, fake.calls())

	evts := fx.eventTypes()
	require.NotEmpty(t, evts)
	assert.Equal(t, EventFinish, evts[len(evts)-1])

	fx.eventsMu.Lock()
	finish := fx.events[len(fx.events)-1]
	fx.eventsMu.Unlock()
	assert.Equal(t, DefaultMaxSteps, finish.Steps)

	// The truncated turn is still persisted as a finished turn.
	got, err := fx.svc.Get(ctx, "user-a", sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, 2)
}

func TestTurn_ToolFailureAbsorbed(t *testing.T) {
	fake := &fakeProvider{steps: []scriptedStep{
		{
			events: []provider.StreamEvent{
				provider.ToolCallStart{CallID: "call_1", Name: "record_note"},
				provider.ToolCallDelta{CallID: "call_1", Args: `{"note":"x"}`},
				provider.StepFinish{Reason: provider.ReasonToolCalls},
			},
		},
		{
			events: []provider.StreamEvent{
				provider.TextDelta{Text: "Sorry, that failed."},
				provider.StepFinish{Reason: provider.ReasonStop},
			},
		},
	}}
	fx := newTurnFixture(t, fake, 0)
	fx.tool.failErr = assert.AnError
	ctx := context.Background()

	sess, err := fx.svc.Create(ctx, "user-a", "")
	require.NoError(t, err)

	err = fx.orch.Turn(ctx, TurnRequest{
		OwnerID:   "user-a",
		SessionID: sess.ID,
		Messages:  []types.Message{NewUserMessage("record x")},
		Sink:      fx.sink,
	})
	require.NoError(t, err, "a failed tool call must still yield a coherent turn")

	got, err := fx.svc.Get(ctx, "user-a", sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 2)

	var result *types.ToolResultPart
	for _, p := range got.Messages[1].Parts {
		if r, ok := p.(*types.ToolResultPart); ok {
			result = r
		}
	}
	require.NotNil(t, result)

	var out tool.Result
	require.NoError(t, json.Unmarshal(result.Output, &out))
	assert.False(t, out.Success)
}

func TestTurn_AbortPersistsNothing(t *testing.T) {
	fake := &fakeProvider{steps: []scriptedStep{{
		events: []provider.StreamEvent{
			provider.TextDelta{Text: "half a thou"},
		},
		err: assert.AnError,
	}}}
	fx := newTurnFixture(t, fake, 0)
	ctx := context.Background()

	sess, err := fx.svc.Create(ctx, "user-a", "")
	require.NoError(t, err)

	err = fx.orch.Turn(ctx, TurnRequest{
		OwnerID:   "user-a",
		SessionID: sess.ID,
		Messages:  []types.Message{NewUserMessage("hello")},
		Sink:      fx.sink,
	})
	require.Error(t, err)

	got, err := fx.svc.Get(ctx, "user-a", sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages, "aborted turns must not persist partial transcripts")
}

func TestTurn_SessionNotFound(t *testing.T) {
	fake := &fakeProvider{steps: []scriptedStep{{}}}
	fx := newTurnFixture(t, fake, 0)

	err := fx.orch.Turn(context.Background(), TurnRequest{
		OwnerID:   "user-a",
		SessionID: "not-an-id",
		Messages:  []types.Message{NewUserMessage("hi")},
	})
	assert.ErrorIs(t, err, ErrInvalidID)
}
