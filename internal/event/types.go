package event

import "github.com/sarvesh-official/lumo/pkg/types"

// SessionCreatedData is the payload for session.created events.
type SessionCreatedData struct {
	Info *types.Session `json:"info"`
}

// SessionUpdatedData is the payload for session.updated events.
type SessionUpdatedData struct {
	Info *types.Session `json:"info"`
}

// TurnStartedData is the payload for turn.started events.
type TurnStartedData struct {
	SessionID string `json:"sessionId"`
}

// TurnFinishedData is the payload for turn.finished events.
type TurnFinishedData struct {
	SessionID string `json:"sessionId"`
	Steps     int    `json:"steps"`
}

// ToolInvokedData is the payload for tool.invoked events.
type ToolInvokedData struct {
	SessionID string `json:"sessionId"`
	Tool      string `json:"tool"`
}

// FlashcardsCreatedData is the payload for flashcards.created events.
type FlashcardsCreatedData struct {
	Info *types.FlashcardSet `json:"info"`
}
