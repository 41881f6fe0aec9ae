package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/oklog/ulid/v2"

	"github.com/sarvesh-official/lumo/internal/event"
	"github.com/sarvesh-official/lumo/internal/logging"
	"github.com/sarvesh-official/lumo/internal/provider"
	"github.com/sarvesh-official/lumo/internal/tool"
	"github.com/sarvesh-official/lumo/pkg/types"
)

const (
	// DefaultMaxSteps bounds the generation/tool cycles within one turn.
	DefaultMaxSteps = 5
	// RetryInitialInterval is the initial interval for stream establishment retries.
	RetryInitialInterval = time.Second
	// RetryMaxInterval caps the backoff interval.
	RetryMaxInterval = 10 * time.Second
	// MaxRetries bounds stream establishment attempts.
	MaxRetries = 3
)

const systemPrompt = "You are a friendly and knowledgeable science tutor who explains concepts clearly. " +
	"When users ask you to create flashcards from the conversation, use the generate_flashcards tool. " +
	"After creating flashcards, always confirm to the user that the flashcards have been generated and saved."

// TurnEventType tags events emitted to the turn's sink.
type TurnEventType string

const (
	EventTextDelta  TurnEventType = "text-delta"
	EventToolCall   TurnEventType = "tool-call"
	EventToolResult TurnEventType = "tool-result"
	EventFinish     TurnEventType = "finish"
)

// TurnEvent is one increment of turn progress, delivered to the caller as
// the orchestrator produces it.
type TurnEvent struct {
	Type   TurnEventType   `json:"type"`
	Text   string          `json:"text,omitempty"`
	CallID string          `json:"callId,omitempty"`
	Tool   string          `json:"tool,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Output json.RawMessage `json:"output,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Steps  int             `json:"steps,omitempty"`
}

// Sink receives turn events. It must not block for long; the stream to the
// caller and internal step progression are pipelined.
type Sink func(TurnEvent)

// TurnRequest describes one orchestration run.
type TurnRequest struct {
	OwnerID   string
	SessionID string
	// Messages are the new turn's messages, typically one user message.
	// The session's persisted transcript is loaded as prior context.
	Messages []types.Message
	Sink     Sink
}

// Orchestrator drives one turn of conversation: it streams model output,
// intercepts tool calls, executes them synchronously, feeds results back as
// context, and terminates deterministically under a step budget it counts
// itself.
type Orchestrator struct {
	sessions *Service
	registry *provider.Registry
	tools    *tool.Registry
	bus      *event.Bus
	model    string
	maxSteps int
}

// NewOrchestrator wires the orchestrator's dependencies. maxSteps <= 0
// selects the default budget.
func NewOrchestrator(sessions *Service, registry *provider.Registry, tools *tool.Registry, bus *event.Bus, model string, maxSteps int) *Orchestrator {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Orchestrator{
		sessions: sessions,
		registry: registry,
		tools:    tools,
		bus:      bus,
		model:    model,
		maxSteps: maxSteps,
	}
}

// Ready reports whether the model provider can be built. Callers use it to
// surface provider unavailability with a proper status code before
// committing to a streamed response.
func (o *Orchestrator) Ready() error {
	_, err := o.registry.Get()
	return err
}

// Turn runs one orchestration loop for a session.
//
// When the loop finishes it assembles one assistant message from everything
// generated across steps and appends it, together with the turn's incoming
// messages, to the session. That append is best-effort relative to the
// stream already flushed to the caller: a persistence failure is logged and
// never retracts delivered output. An abort (cancellation or provider error
// mid-stream) persists nothing.
func (o *Orchestrator) Turn(ctx context.Context, req TurnRequest) error {
	prov, err := o.registry.Get()
	if err != nil {
		return fmt.Errorf("provider unavailable: %w", err)
	}

	sess, err := o.sessions.Get(ctx, req.OwnerID, req.SessionID)
	if err != nil {
		return err
	}

	o.publish(event.TurnStarted, event.TurnStartedData{SessionID: sess.ID})

	convo := make([]types.Message, 0, len(sess.Messages)+len(req.Messages))
	convo = append(convo, sess.Messages...)
	convo = append(convo, req.Messages...)

	var parts []types.Part
	finishReason := provider.ReasonStop

	steps := 0
	for {
		if steps >= o.maxSteps {
			// Budget exhaustion is a hard cutoff, not an error; whatever
			// has been generated so far is final.
			break
		}
		steps++

		stream, err := o.openStream(ctx, prov, provider.Request{
			Model:    o.model,
			System:   systemPrompt,
			Messages: convo,
			Tools:    o.describeTools(),
		})
		if err != nil {
			return fmt.Errorf("establishing model stream: %w", err)
		}

		step, err := collectStep(ctx, stream, req.Sink)
		if err != nil {
			// Mid-stream failure aborts the turn; no partial message is
			// persisted over what the caller already received.
			return fmt.Errorf("model stream: %w", err)
		}

		finishReason = step.reason

		stepParts := make([]types.Part, 0, 1+2*len(step.calls))
		if step.text != "" {
			stepParts = append(stepParts, types.NewTextPart(step.text))
		}

		if step.reason != provider.ReasonToolCalls || len(step.calls) == 0 {
			parts = append(parts, stepParts...)
			break
		}

		for _, call := range step.calls {
			callPart, resultPart := o.runTool(ctx, req, sess.ID, call)
			stepParts = append(stepParts, callPart, resultPart)
		}

		parts = append(parts, stepParts...)
		// Re-invoke the model with the tool results as context so it can
		// confirm to the user or call further tools.
		convo = append(convo, types.Message{
			ID:    ulid.Make().String(),
			Role:  types.RoleAssistant,
			Parts: stepParts,
		})
	}

	assistant := types.Message{
		ID:    ulid.Make().String(),
		Role:  types.RoleAssistant,
		Parts: parts,
	}

	toPersist := append(append([]types.Message{}, req.Messages...), assistant)
	if err := o.sessions.Append(ctx, req.OwnerID, req.SessionID, toPersist...); err != nil {
		logging.Error().Err(err).
			Str("session", req.SessionID).
			Msg("failed to persist assistant message after flushed stream")
	}

	if req.Sink != nil {
		req.Sink(TurnEvent{Type: EventFinish, Reason: string(finishReason), Steps: steps})
	}
	o.publish(event.TurnFinished, event.TurnFinishedData{SessionID: sess.ID, Steps: steps})
	return nil
}

// runTool dispatches one detected tool call synchronously and builds the
// call/result part pair in call-then-result order.
func (o *Orchestrator) runTool(ctx context.Context, req TurnRequest, sessionID string, call pendingCall) (types.Part, types.Part) {
	args := json.RawMessage(call.args)
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	if req.Sink != nil {
		req.Sink(TurnEvent{Type: EventToolCall, CallID: call.id, Tool: call.name, Args: args})
	}

	result, err := o.tools.Invoke(ctx, call.name, args, &tool.Context{
		OwnerID:   req.OwnerID,
		SessionID: sessionID,
		CallID:    call.id,
	})
	if err != nil {
		// Tool failures are absorbed into the conversation as structured
		// results so the model can acknowledge them to the user.
		logging.Warn().Err(err).Str("tool", call.name).Msg("tool invocation failed")
		result = tool.Failure(err)
	}
	output, merr := json.Marshal(result)
	if merr != nil {
		output = json.RawMessage(`{"success":false,"summary":"tool execution failed"}`)
	}

	if req.Sink != nil {
		req.Sink(TurnEvent{Type: EventToolResult, CallID: call.id, Tool: call.name, Output: output})
	}
	o.publish(event.ToolInvoked, event.ToolInvokedData{SessionID: sessionID, Tool: call.name})

	callPart := &types.ToolCallPart{Type: "tool-call", CallID: call.id, Name: call.name, Args: args}
	resultPart := &types.ToolResultPart{Type: "tool-result", CallID: call.id, Name: call.name, Output: output}
	return callPart, resultPart
}

// openStream establishes the provider stream, retrying with backoff. Only
// establishment is retried; once chunks are flowing an error aborts.
func (o *Orchestrator) openStream(ctx context.Context, prov provider.Provider, preq provider.Request) (*provider.Stream, error) {
	var stream *provider.Stream
	op := func() error {
		var err error
		stream, err = prov.Stream(ctx, preq)
		return err
	}
	if err := backoff.Retry(op, newRetryBackoff(ctx)); err != nil {
		return nil, err
	}
	return stream, nil
}

func (o *Orchestrator) describeTools() []provider.ToolInfo {
	descs := o.tools.Describe()
	infos := make([]provider.ToolInfo, 0, len(descs))
	for _, d := range descs {
		infos = append(infos, provider.ToolInfo{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  schemaToMap(d.Schema),
		})
	}
	return infos
}

func (o *Orchestrator) publish(t event.Type, data any) {
	if o.bus != nil {
		o.bus.Publish(event.Event{Type: t, Data: data})
	}
}

// schemaToMap renders a JSON schema into the generic map shape the provider
// wire format wants.
func schemaToMap(s any) map[string]any {
	data, err := json.Marshal(s)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}

func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = RetryInitialInterval
	b.MaxInterval = RetryMaxInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, MaxRetries), ctx)
}
