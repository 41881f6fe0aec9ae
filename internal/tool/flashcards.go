package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"

	"github.com/sarvesh-official/lumo/internal/event"
	"github.com/sarvesh-official/lumo/internal/storage"
	"github.com/sarvesh-official/lumo/pkg/types"
)

// FlashcardsName is the tool identifier the model calls.
const FlashcardsName = "generate_flashcards"

// UISignalFlashcards tells clients a flashcard set became available.
const UISignalFlashcards = "flashcards"

// flashcardsInput is the validated input shape for generate_flashcards.
type flashcardsInput struct {
	Cards []cardInput `json:"cards" jsonschema:"Array of flashcard questions and answers generated from the conversation"`
}

type cardInput struct {
	Question string `json:"question" jsonschema:"The question for the flashcard"`
	Answer   string `json:"answer" jsonschema:"The answer to the question"`
}

// Flashcards persists one FlashcardSet per invocation. Sets are stored per
// owner, so reads never cross an ownership boundary.
type Flashcards struct {
	store  *storage.Store
	bus    *event.Bus
	schema *jsonschema.Schema
}

// NewFlashcards creates the flashcard generation tool. bus may be nil.
func NewFlashcards(store *storage.Store, bus *event.Bus) (*Flashcards, error) {
	schema, err := jsonschema.For[flashcardsInput](nil)
	if err != nil {
		return nil, fmt.Errorf("flashcards schema: %w", err)
	}
	return &Flashcards{store: store, bus: bus, schema: schema}, nil
}

func (f *Flashcards) Name() string { return FlashcardsName }

func (f *Flashcards) Description() string {
	return "Generate flashcards based on the conversation. Use this when the user asks to create flashcards, make flashcards, or generate study cards from the chat."
}

func (f *Flashcards) Schema() *jsonschema.Schema { return f.schema }

// Execute writes one FlashcardSet. A failed write is reported as an error;
// there is no partial success.
func (f *Flashcards) Execute(ctx context.Context, input json.RawMessage, tc *Context) (*Result, error) {
	var in flashcardsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("decoding cards: %w", err)
	}
	if len(in.Cards) == 0 {
		return nil, fmt.Errorf("no cards provided")
	}

	cards := make([]types.Card, len(in.Cards))
	for i, c := range in.Cards {
		cards[i] = types.Card{Question: c.Question, Answer: c.Answer}
	}

	set := &types.FlashcardSet{
		ID:        uuid.NewString(),
		OwnerID:   tc.OwnerID,
		SessionID: tc.SessionID,
		Cards:     cards,
		CreatedAt: time.Now().UTC(),
	}
	if err := f.store.Put(ctx, flashcardPath(tc.OwnerID, set.ID), set); err != nil {
		return nil, fmt.Errorf("saving flashcards: %w", err)
	}

	if f.bus != nil {
		f.bus.Publish(event.Event{
			Type: event.FlashcardsCreated,
			Data: event.FlashcardsCreatedData{Info: set},
		})
	}

	return &Result{
		Success:  true,
		Count:    len(cards),
		Summary:  fmt.Sprintf("Successfully generated and saved %d flashcards!", len(cards)),
		UISignal: UISignalFlashcards,
	}, nil
}

// CardsForSession returns the cards of every set recorded for a session,
// newest set first, flattened into a single list.
func CardsForSession(ctx context.Context, store *storage.Store, ownerID, sessionID string) ([]types.Card, error) {
	var sets []types.FlashcardSet
	err := store.Scan(ctx, []string{"flashcards", ownerID}, func(id string, data json.RawMessage) error {
		var set types.FlashcardSet
		if err := json.Unmarshal(data, &set); err != nil {
			return nil
		}
		if set.SessionID == sessionID {
			sets = append(sets, set)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning flashcards: %w", err)
	}

	sort.Slice(sets, func(i, j int) bool {
		return sets[i].CreatedAt.After(sets[j].CreatedAt)
	})

	cards := []types.Card{}
	for _, set := range sets {
		cards = append(cards, set.Cards...)
	}
	return cards, nil
}

func flashcardPath(ownerID, setID string) []string {
	return []string{"flashcards", ownerID, setID}
}
