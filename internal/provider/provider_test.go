package provider

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStream_RecvUntilEOF(t *testing.T) {
	s := NewStream(nil)

	go func() {
		s.Send(TextDelta{Text: "hello"})
		s.Send(ToolCallStart{CallID: "call_1", Name: "generate_flashcards"})
		s.Send(ToolCallDelta{CallID: "call_1", Args: `{"cards":`})
		s.Send(ToolCallDelta{CallID: "call_1", Args: `[]}`})
		s.Send(StepFinish{Reason: ReasonToolCalls})
		s.Finish(nil)
	}()

	var got []StreamEvent
	for {
		ev, err := s.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, ev)
	}

	require.Len(t, got, 5)
	assert.Equal(t, TextDelta{Text: "hello"}, got[0])
	assert.Equal(t, ToolCallStart{CallID: "call_1", Name: "generate_flashcards"}, got[1])
	assert.Equal(t, StepFinish{Reason: ReasonToolCalls}, got[4])
}

func TestStream_TerminalError(t *testing.T) {
	s := NewStream(nil)

	go func() {
		s.Send(TextDelta{Text: "partial"})
		s.Finish(io.ErrUnexpectedEOF)
	}()

	ev, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, TextDelta{Text: "partial"}, ev)

	_, err = s.Recv()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestMapFinishReason(t *testing.T) {
	tests := []struct {
		in   string
		want FinishReason
	}{
		{"stop", ReasonStop},
		{"tool_calls", ReasonToolCalls},
		{"function_call", ReasonToolCalls},
		{"length", ReasonLength},
		{"content_filter", ReasonStop},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, mapFinishReason(tt.in), tt.in)
	}
}

func TestRegistry_BuildsOnce(t *testing.T) {
	calls := 0
	reg := NewRegistry(func() (Provider, error) {
		calls++
		return NewOpenAI(OpenAIConfig{APIKey: "test"}), nil
	})

	p1, err := reg.Get()
	require.NoError(t, err)
	p2, err := reg.Get()
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.Equal(t, 1, calls)
}

func TestRegistry_StickyError(t *testing.T) {
	calls := 0
	reg := NewRegistry(func() (Provider, error) {
		calls++
		return nil, io.ErrClosedPipe
	})

	_, err := reg.Get()
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	_, err = reg.Get()
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	assert.Equal(t, 1, calls)
}
