package chat

import (
	"context"
	"io"
	"strings"

	"github.com/sarvesh-official/lumo/internal/provider"
)

// pendingCall aggregates one tool call's identity and argument fragments
// across stream deltas.
type pendingCall struct {
	id   string
	name string
	args string
}

// stepResult is everything one generation step produced.
type stepResult struct {
	text   string
	calls  []pendingCall
	reason provider.FinishReason
}

// collectStep drains one provider stream, forwarding text deltas to the
// sink as they arrive and aggregating tool call fragments into complete
// calls. A cancelled context or a stream error aborts the step.
func collectStep(ctx context.Context, stream *provider.Stream, sink Sink) (*stepResult, error) {
	defer stream.Close()

	var text strings.Builder
	var order []string
	calls := map[string]*pendingCall{}
	args := map[string]*strings.Builder{}
	reason := provider.ReasonStop

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		ev, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch e := ev.(type) {
		case provider.TextDelta:
			text.WriteString(e.Text)
			if sink != nil {
				sink(TurnEvent{Type: EventTextDelta, Text: e.Text})
			}
		case provider.ToolCallStart:
			if _, ok := calls[e.CallID]; !ok {
				calls[e.CallID] = &pendingCall{id: e.CallID, name: e.Name}
				args[e.CallID] = &strings.Builder{}
				order = append(order, e.CallID)
			}
		case provider.ToolCallDelta:
			if b, ok := args[e.CallID]; ok {
				b.WriteString(e.Args)
			}
		case provider.StepFinish:
			reason = e.Reason
		}
	}

	result := &stepResult{
		text:   text.String(),
		reason: reason,
	}
	for _, id := range order {
		call := *calls[id]
		call.args = args[id].String()
		result.calls = append(result.calls, call)
	}
	return result, nil
}
