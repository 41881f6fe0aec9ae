package types

import "encoding/json"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one entry in a session transcript.
type Message struct {
	ID    string `json:"id"`
	Role  string `json:"role"` // "user" | "assistant" | "system"
	Parts []Part `json:"parts"`
}

// Text concatenates the message's text parts in order.
func (m *Message) Text() string {
	var out string
	for _, p := range m.Parts {
		if tp, ok := p.(*TextPart); ok {
			out += tp.Text
		}
	}
	return out
}

// UnmarshalJSON decodes the parts array through the Part tagged union.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID    string            `json:"id"`
		Role  string            `json:"role"`
		Parts []json.RawMessage `json:"parts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.ID = raw.ID
	m.Role = raw.Role
	m.Parts = make([]Part, 0, len(raw.Parts))
	for _, rp := range raw.Parts {
		part, err := UnmarshalPart(rp)
		if err != nil {
			return err
		}
		m.Parts = append(m.Parts, part)
	}
	return nil
}
