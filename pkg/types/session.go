// Package types provides the core data types for the Lumo server.
package types

import "time"

// DefaultTitle is the title given to sessions created without one.
const DefaultTitle = "New Chat"

// Session represents a persisted conversation between one owner and the
// assistant. OwnerID is immutable after creation; Messages are append-only
// and reflect conversation chronology.
type Session struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
}

// SessionSummary is the listing shape returned by GET /sessions. It omits
// the message bodies so the sidebar payload stays small.
type SessionSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary returns the listing view of the session.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{ID: s.ID, Title: s.Title, CreatedAt: s.CreatedAt}
}
