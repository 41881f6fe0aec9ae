// Package provider abstracts the generative model behind a streaming interface.
package provider

import (
	"context"
	"io"
	"sync"

	"github.com/sarvesh-official/lumo/pkg/types"
)

// FinishReason reports why a generation step ended.
type FinishReason string

const (
	ReasonStop      FinishReason = "stop"
	ReasonToolCalls FinishReason = "tool_calls"
	ReasonLength    FinishReason = "length"
)

// StreamEvent is one chunk of a model stream. The variant set is closed:
// consumers dispatch with a type switch over the four concrete types below.
type StreamEvent interface {
	streamEvent()
}

// TextDelta carries an incremental fragment of assistant text.
type TextDelta struct {
	Text string
}

// ToolCallStart announces a tool invocation. CallID is stable for the
// lifetime of the call; argument fragments follow as ToolCallDelta events.
type ToolCallStart struct {
	CallID string
	Name   string
}

// ToolCallDelta carries an incremental fragment of a tool call's JSON
// argument string.
type ToolCallDelta struct {
	CallID string
	Args   string
}

// StepFinish closes one generation step.
type StepFinish struct {
	Reason FinishReason
}

func (TextDelta) streamEvent()     {}
func (ToolCallStart) streamEvent() {}
func (ToolCallDelta) streamEvent() {}
func (StepFinish) streamEvent()    {}

// ToolInfo describes a tool offered to the model.
type ToolInfo struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Request is a normalized generation request.
type Request struct {
	Model     string
	System    string
	Messages  []types.Message
	Tools     []ToolInfo
	MaxTokens int64
}

// Provider generates model output for a conversation.
type Provider interface {
	// Stream starts a streaming generation step.
	Stream(ctx context.Context, req Request) (*Stream, error)

	// Complete runs a one-shot generation and returns the full text.
	Complete(ctx context.Context, req Request) (string, error)
}

// Stream delivers StreamEvents as the model produces them.
type Stream struct {
	events chan StreamEvent
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

// NewStream creates a stream whose events are pushed by a producer
// goroutine via Send, then sealed with Finish.
func NewStream(cancel context.CancelFunc) *Stream {
	return &Stream{
		events: make(chan StreamEvent, 32),
		cancel: cancel,
	}
}

// Send enqueues one event. Only the producing goroutine may call it.
func (s *Stream) Send(ev StreamEvent) {
	s.events <- ev
}

// Finish seals the stream with an optional terminal error.
func (s *Stream) Finish(err error) {
	if err != nil {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
	}
	close(s.events)
}

// Recv returns the next event. It returns io.EOF after a clean finish and
// the terminal error if the stream failed mid-flight.
func (s *Stream) Recv() (StreamEvent, error) {
	ev, ok := <-s.events
	if !ok {
		if err := s.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	return ev, nil
}

// Err returns the terminal stream error, if any.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close abandons the stream and lets the producer goroutine exit.
func (s *Stream) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	go func() {
		for range s.events {
		}
	}()
}
