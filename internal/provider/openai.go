package provider

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sarvesh-official/lumo/pkg/types"
)

// aggCall accumulates partial tool call deltas for one stream index so the
// call survives chunk fragmentation of id, name and arguments.
type aggCall struct {
	id      string
	name    string
	started bool
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
}

// OpenAI implements Provider over the Chat Completions API.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI creates an OpenAI provider from config.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAI{client: openai.NewClient(opts...)}
}

// Stream starts a streaming completion and adapts chunks into StreamEvents.
func (o *OpenAI) Stream(ctx context.Context, req Request) (*Stream, error) {
	params := buildParams(req)

	ctx, cancel := context.WithCancel(ctx)
	upstream := o.client.Chat.Completions.NewStreaming(ctx, params)
	if err := upstream.Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("openai stream: %w", err)
	}

	s := NewStream(cancel)
	go func() {
		defer cancel()
		agg := map[int64]*aggCall{}
		for upstream.Next() {
			chunk := upstream.Current()
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					s.Send(TextDelta{Text: choice.Delta.Content})
				}
				for _, tc := range choice.Delta.ToolCalls {
					ac, ok := agg[tc.Index]
					if !ok {
						ac = &aggCall{}
						agg[tc.Index] = ac
					}
					if tc.ID != "" {
						ac.id = tc.ID
					}
					if tc.Function.Name != "" {
						ac.name = tc.Function.Name
					}
					if !ac.started && ac.name != "" {
						if ac.id == "" {
							ac.id = "call_" + uuid.NewString()
						}
						ac.started = true
						s.Send(ToolCallStart{CallID: ac.id, Name: ac.name})
					}
					if ac.started && tc.Function.Arguments != "" {
						s.Send(ToolCallDelta{CallID: ac.id, Args: tc.Function.Arguments})
					}
				}
				if choice.FinishReason != "" {
					s.Send(StepFinish{Reason: mapFinishReason(choice.FinishReason)})
				}
			}
		}
		if err := upstream.Err(); err != nil {
			s.Finish(fmt.Errorf("openai stream: %w", err))
			return
		}
		s.Finish(nil)
	}()
	return s, nil
}

// Complete runs a non-streaming completion and returns the message text.
func (o *OpenAI) Complete(ctx context.Context, req Request) (string, error) {
	resp, err := o.client.Chat.Completions.New(ctx, buildParams(req))
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildParams(req Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages: buildMessages(req),
		Model:    req.Model,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, t := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  openai.FunctionParameters(t.Parameters),
				},
			}
		}
		params.Tools = tools
	}
	return params
}

// buildMessages flattens conversation messages into OpenAI chat messages.
// Assistant tool calls become tool_calls entries and their results follow
// immediately as tool role messages, which is the ordering the API requires.
func buildMessages(req Request) []openai.ChatCompletionMessageParamUnion {
	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case types.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.Text()))
		case types.RoleUser:
			messages = append(messages, openai.UserMessage(m.Text()))
		case types.RoleAssistant:
			text := m.Text()
			toolCalls, results := splitToolParts(m)
			if len(toolCalls) == 0 {
				messages = append(messages, openai.AssistantMessage(text))
				continue
			}
			assistant := &openai.ChatCompletionAssistantMessageParam{
				Role:      "assistant",
				ToolCalls: toolCalls,
			}
			if text != "" {
				assistant.Content.OfString = openai.String(text)
			}
			messages = append(messages, openai.ChatCompletionMessageParamUnion{OfAssistant: assistant})
			messages = append(messages, results...)
		}
	}
	return messages
}

func splitToolParts(m types.Message) ([]openai.ChatCompletionMessageToolCallParam, []openai.ChatCompletionMessageParamUnion) {
	var calls []openai.ChatCompletionMessageToolCallParam
	var results []openai.ChatCompletionMessageParamUnion
	for _, p := range m.Parts {
		switch part := p.(type) {
		case *types.ToolCallPart:
			calls = append(calls, openai.ChatCompletionMessageToolCallParam{
				ID:   part.CallID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      part.Name,
					Arguments: string(part.Args),
				},
			})
		case *types.ToolResultPart:
			results = append(results, openai.ToolMessage(string(part.Output), part.CallID))
		}
	}
	return calls, results
}

func mapFinishReason(reason string) FinishReason {
	switch reason {
	case "tool_calls", "function_call":
		return ReasonToolCalls
	case "length":
		return ReasonLength
	default:
		return ReasonStop
	}
}
