package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnmarshalPart(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"text", `{"type":"text","text":"hello"}`, "text"},
		{"tool call", `{"type":"tool-call","callId":"c1","name":"generate_flashcards","args":{"cards":[]}}`, "tool-call"},
		{"tool result", `{"type":"tool-result","callId":"c1","name":"generate_flashcards","output":{"success":true}}`, "tool-result"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part, err := UnmarshalPart([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, part.PartType())
		})
	}
}

func TestUnmarshalPart_UnknownType(t *testing.T) {
	_, err := UnmarshalPart([]byte(`{"type":"reasoning","text":"hmm"}`))
	assert.Error(t, err)
}

func TestMessage_RoundTrip(t *testing.T) {
	msg := Message{
		ID:   "m1",
		Role: RoleAssistant,
		Parts: []Part{
			NewTextPart("Mitosis is cell division. "),
			&ToolCallPart{Type: "tool-call", CallID: "c1", Name: "generate_flashcards", Args: json.RawMessage(`{"cards":[{"question":"Q1","answer":"A1"}]}`)},
			&ToolResultPart{Type: "tool-result", CallID: "c1", Name: "generate_flashcards", Output: json.RawMessage(`{"success":true,"cardsGenerated":1}`)},
			NewTextPart("Saved 1 flashcard."),
		},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded Message
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Parts, 4)

	call, ok := decoded.Parts[1].(*ToolCallPart)
	require.True(t, ok)
	assert.Equal(t, "generate_flashcards", call.Name)

	assert.Equal(t, "Mitosis is cell division. Saved 1 flashcard.", decoded.Text())
}

func TestSession_Summary(t *testing.T) {
	s := Session{ID: "s1", OwnerID: "u1", Title: "Photosynthesis", Messages: []Message{{ID: "m1", Role: RoleUser}}}
	sum := s.Summary()
	assert.Equal(t, "s1", sum.ID)
	assert.Equal(t, "Photosynthesis", sum.Title)
}
