// Package reconcile decides, on opening a session view, whether to replay
// persisted history, create the session and send a seed message, or do
// nothing. It guarantees the seed is sent at most once per session even
// across re-entrant Open calls and create races lost to a concurrent caller.
package reconcile

import (
	"context"
	"errors"
	"sync"

	"github.com/sarvesh-official/lumo/internal/chat"
	"github.com/sarvesh-official/lumo/internal/logging"
	"github.com/sarvesh-official/lumo/pkg/types"
)

// ErrNotFound is returned by API.Load when the session does not exist yet.
// Implementations must wrap it so the reconciler can take the create path.
var ErrNotFound = errors.New("session not found")

// LoadResult is a session's persisted view.
type LoadResult struct {
	Title    string
	Messages []types.Message
}

// API is the server surface the reconciler drives.
type API interface {
	Load(ctx context.Context, sessionID string) (*LoadResult, error)
	Resolve(ctx context.Context, sessionID, title, seedText string) (id string, existed bool, err error)
	SynthesizeTitle(ctx context.Context, seed string) (string, error)
	Turn(ctx context.Context, sessionID string, messages []types.Message, sink chat.Sink) error
}

// State is a session view's position in the open protocol.
type State int

const (
	Idle State = iota
	AwaitingLoad
	Creating
	Streaming
	Ready
)

func (s State) String() string {
	switch s {
	case AwaitingLoad:
		return "awaiting-load"
	case Creating:
		return "creating"
	case Streaming:
		return "streaming"
	case Ready:
		return "ready"
	default:
		return "idle"
	}
}

// Result reports what Open did.
type Result struct {
	SessionID string
	State     State
	// Created is true when this call created the session and sent the seed.
	Created bool
	// Messages holds the replayed transcript when the session already existed.
	Messages []types.Message
}

// view tracks one session's state across Open calls. seedSent is the
// one-shot latch: it arms before any network call on the create path and
// never disarms, so retries and re-renders cannot resend the seed.
type view struct {
	state    State
	seedSent bool
}

// Reconciler runs the open protocol over an API, one state machine per
// session ID. Safe for concurrent use.
type Reconciler struct {
	api API

	mu    sync.Mutex
	views map[string]*view
}

func New(api API) *Reconciler {
	return &Reconciler{api: api, views: make(map[string]*view)}
}

// State returns the current state for a session view.
func (r *Reconciler) State(sessionID string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[sessionID]; ok {
		return v.state
	}
	return Idle
}

// Open runs the reconciliation protocol for sessionID. An Open that arrives
// while another is in flight for the same session returns immediately with
// the in-flight state and takes no action.
func (r *Reconciler) Open(ctx context.Context, sessionID, seedText string, sink chat.Sink) (*Result, error) {
	r.mu.Lock()
	v, ok := r.views[sessionID]
	if !ok {
		v = &view{state: Idle}
		r.views[sessionID] = v
	}
	if v.state != Idle && v.state != Ready {
		state := v.state
		r.mu.Unlock()
		return &Result{SessionID: sessionID, State: state}, nil
	}
	v.state = AwaitingLoad
	r.mu.Unlock()

	res, err := r.open(ctx, sessionID, seedText, v, sink)
	r.mu.Lock()
	if err != nil {
		v.state = Idle
	} else {
		v.state = Ready
		res.State = Ready
	}
	r.mu.Unlock()
	return res, err
}

func (r *Reconciler) open(ctx context.Context, sessionID, seedText string, v *view, sink chat.Sink) (*Result, error) {
	loaded, err := r.api.Load(ctx, sessionID)
	switch {
	case err == nil:
		// Existing session: replay, never resend the seed.
		return &Result{SessionID: sessionID, Messages: loaded.Messages}, nil
	case !errors.Is(err, ErrNotFound):
		return nil, err
	}

	r.mu.Lock()
	armed := v.seedSent
	if seedText != "" {
		v.seedSent = true
	}
	r.mu.Unlock()

	if seedText == "" || armed {
		// Nothing to send, or a previous Open already owns the seed.
		return &Result{SessionID: sessionID}, nil
	}

	r.setState(v, Creating)
	title, err := r.api.SynthesizeTitle(ctx, seedText)
	if err != nil || title == "" {
		if err != nil {
			logging.Warn().Err(err).Str("session", sessionID).Msg("title synthesis failed, using default")
		}
		title = types.DefaultTitle
	}

	id, existed, err := r.api.Resolve(ctx, sessionID, title, seedText)
	if err != nil {
		return nil, err
	}
	if existed {
		// A concurrent request won the create race. Its transcript is the
		// session's truth; this seed is discarded, not queued as a turn.
		loaded, err := r.api.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Result{SessionID: id, Messages: loaded.Messages}, nil
	}

	// The resolver persisted the seed as the session's first message, so the
	// turn runs against the stored transcript with no new messages.
	r.setState(v, Streaming)
	if err := r.api.Turn(ctx, id, nil, sink); err != nil {
		return nil, err
	}
	return &Result{SessionID: id, Created: true}, nil
}

func (r *Reconciler) setState(v *view, s State) {
	r.mu.Lock()
	v.state = s
	r.mu.Unlock()
}
