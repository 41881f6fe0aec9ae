package types

import (
	"encoding/json"
	"fmt"
)

// Part is a tagged variant of message content. The concrete types are
// TextPart, ToolCallPart and ToolResultPart; anything else on the wire is
// rejected at decode time.
type Part interface {
	PartType() string
}

// TextPart carries plain assistant or user text.
type TextPart struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

func (p *TextPart) PartType() string { return "text" }

// NewTextPart returns a text part with its type tag set.
func NewTextPart(text string) *TextPart {
	return &TextPart{Type: "text", Text: text}
}

// ToolCallPart records the model invoking a tool with raw JSON arguments.
type ToolCallPart struct {
	Type   string          `json:"type"` // always "tool-call"
	CallID string          `json:"callId"`
	Name   string          `json:"name"`
	Args   json.RawMessage `json:"args"`
}

func (p *ToolCallPart) PartType() string { return "tool-call" }

// ToolResultPart records the outcome of a tool call. Output is the summary
// re-injected into the model context, including structured failure results.
type ToolResultPart struct {
	Type   string          `json:"type"` // always "tool-result"
	CallID string          `json:"callId"`
	Name   string          `json:"name"`
	Output json.RawMessage `json:"output"`
}

func (p *ToolResultPart) PartType() string { return "tool-result" }

// UnmarshalPart decodes a JSON part into its concrete type.
func UnmarshalPart(data []byte) (Part, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}

	switch tag.Type {
	case "text":
		var p TextPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "tool-call":
		var p ToolCallPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	case "tool-result":
		var p ToolResultPart
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown part type: %q", tag.Type)
	}
}
