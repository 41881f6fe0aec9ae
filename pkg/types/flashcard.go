package types

import "time"

// Card is a single question/answer pair.
type Card struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FlashcardSet is the durable output of one generate_flashcards invocation.
// SessionID is an opaque back-reference to the session the cards were
// generated from, not an embedded document; a session may have many sets.
type FlashcardSet struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	SessionID string    `json:"sessionId"`
	Cards     []Card    `json:"cards"`
	CreatedAt time.Time `json:"createdAt"`
}
