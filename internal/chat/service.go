// Package chat implements session resolution, turn orchestration and title
// synthesis over the document store and the model provider.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sarvesh-official/lumo/internal/event"
	"github.com/sarvesh-official/lumo/internal/storage"
	"github.com/sarvesh-official/lumo/pkg/types"
)

// Service owns session creation and lookup. It is the only component that
// creates session records; the orchestrator appends to them through it.
type Service struct {
	store *storage.Store
	bus   *event.Bus
}

// NewService creates a session service. bus may be nil.
func NewService(store *storage.Store, bus *event.Bus) *Service {
	return &Service{store: store, bus: bus}
}

// ResolveRequest carries the client's view of the session to resolve.
type ResolveRequest struct {
	SessionID string
	Title     string
	SeedText  string
}

// Create makes a new session with a fresh identifier.
func (s *Service) Create(ctx context.Context, ownerID, title string) (*types.Session, error) {
	if title == "" {
		title = types.DefaultTitle
	}
	sess := newSession(ulid.Make().String(), ownerID, title, "")
	if err := s.store.Create(ctx, sessionPath(sess.ID), sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	s.publishCreated(sess)
	return sess, nil
}

// Resolve returns an existing session for the supplied identifier or
// atomically creates exactly one new session for it.
//
// A malformed supplied identifier does not fail the request: the client may
// have pre-allocated it before any record existed, so a fresh identifier is
// substituted instead. When two callers race to create the same identifier,
// the store's conditional create picks one winner; the loser refetches the
// winner's record and reports created=false.
func (s *Service) Resolve(ctx context.Context, ownerID string, req ResolveRequest) (string, bool, error) {
	id := req.SessionID
	if id == "" {
		id = ulid.Make().String()
	} else if _, err := ulid.ParseStrict(id); err != nil {
		id = ulid.Make().String()
	}

	var existing types.Session
	err := s.store.Get(ctx, sessionPath(id), &existing)
	switch {
	case err == nil:
		if existing.OwnerID != ownerID {
			return "", false, ErrForbidden
		}
		return existing.ID, false, nil
	case !errors.Is(err, storage.ErrNotFound):
		return "", false, fmt.Errorf("loading session: %w", err)
	}

	title := req.Title
	if title == "" {
		title = types.DefaultTitle
	}
	sess := newSession(id, ownerID, title, req.SeedText)

	err = s.store.Create(ctx, sessionPath(id), sess)
	if errors.Is(err, storage.ErrAlreadyExists) {
		// Lost the create race; the winner's record is authoritative.
		if err := s.store.Get(ctx, sessionPath(id), &existing); err != nil {
			return "", false, fmt.Errorf("loading session after create race: %w", err)
		}
		if existing.OwnerID != ownerID {
			return "", false, ErrForbidden
		}
		return existing.ID, false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("creating session: %w", err)
	}

	s.publishCreated(sess)
	return sess.ID, true, nil
}

// Get loads a session and enforces ownership.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*types.Session, error) {
	if _, err := ulid.ParseStrict(id); err != nil {
		return nil, ErrInvalidID
	}

	var sess types.Session
	if err := s.store.Get(ctx, sessionPath(id), &sess); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if sess.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return &sess, nil
}

// List returns the caller's sessions, newest first.
func (s *Service) List(ctx context.Context, ownerID string) ([]types.SessionSummary, error) {
	var sessions []types.SessionSummary
	err := s.store.Scan(ctx, []string{"session"}, func(id string, data json.RawMessage) error {
		var sess types.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return nil
		}
		if sess.OwnerID == ownerID {
			sessions = append(sessions, sess.Summary())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning sessions: %w", err)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
	})
	return sessions, nil
}

// Append adds messages to the end of a session's transcript. The store
// serializes the read-modify-write, so concurrent appends to one session
// interleave without losing messages.
func (s *Service) Append(ctx context.Context, ownerID, id string, messages ...types.Message) error {
	if _, err := ulid.ParseStrict(id); err != nil {
		return ErrInvalidID
	}

	var sess types.Session
	err := s.store.Update(ctx, sessionPath(id), &sess, func() error {
		if sess.OwnerID != ownerID {
			return ErrForbidden
		}
		sess.Messages = append(sess.Messages, messages...)
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		if errors.Is(err, ErrForbidden) {
			return ErrForbidden
		}
		return fmt.Errorf("persisting session: %w", err)
	}

	if s.bus != nil {
		s.bus.Publish(event.Event{
			Type: event.SessionUpdated,
			Data: event.SessionUpdatedData{Info: &sess},
		})
	}
	return nil
}

func (s *Service) publishCreated(sess *types.Session) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(event.Event{
		Type: event.SessionCreated,
		Data: event.SessionCreatedData{Info: sess},
	})
}

func newSession(id, ownerID, title, seedText string) *types.Session {
	sess := &types.Session{
		ID:        id,
		OwnerID:   ownerID,
		Title:     title,
		Messages:  []types.Message{},
		CreatedAt: time.Now().UTC(),
	}
	if seedText != "" {
		sess.Messages = append(sess.Messages, NewUserMessage(seedText))
	}
	return sess
}

// NewUserMessage builds a single-text-part user message with a fresh ID.
func NewUserMessage(text string) types.Message {
	return types.Message{
		ID:    ulid.Make().String(),
		Role:  types.RoleUser,
		Parts: []types.Part{types.NewTextPart(text)},
	}
}

func sessionPath(id string) []string {
	return []string{"session", id}
}
