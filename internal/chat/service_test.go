package chat

import (
	"context"
	"sync"
	"testing"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sarvesh-official/lumo/internal/storage"
	"github.com/sarvesh-official/lumo/pkg/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(storage.New(t.TempDir()), nil)
}

func TestService_Create(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-a", "Photosynthesis")
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis", sess.Title)
	assert.Equal(t, "user-a", sess.OwnerID)
	assert.Empty(t, sess.Messages)

	got, err := svc.Get(ctx, "user-a", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Photosynthesis", got.Title)
	assert.Equal(t, []types.Message{}, got.Messages)
}

func TestService_CreateDefaultTitle(t *testing.T) {
	svc := newTestService(t)

	sess, err := svc.Create(context.Background(), "user-a", "")
	require.NoError(t, err)
	assert.Equal(t, types.DefaultTitle, sess.Title)
}

func TestService_ResolveCreatesWithSuppliedID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	id := ulid.Make().String()

	gotID, created, err := svc.Resolve(ctx, "user-a", ResolveRequest{
		SessionID: id,
		Title:     "Mitosis",
		SeedText:  "What is mitosis?",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, id, gotID)

	sess, err := svc.Get(ctx, "user-a", id)
	require.NoError(t, err)
	assert.Equal(t, "Mitosis", sess.Title)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, types.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "What is mitosis?", sess.Messages[0].Text())
}

func TestService_ResolveExisting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-a", "Osmosis")
	require.NoError(t, err)

	gotID, created, err := svc.Resolve(ctx, "user-a", ResolveRequest{
		SessionID: sess.ID,
		SeedText:  "should be discarded",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, sess.ID, gotID)

	// The existing record is returned unchanged; the seed is not appended.
	got, err := svc.Get(ctx, "user-a", sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Messages)
}

func TestService_ResolveMalformedIDSubstitutes(t *testing.T) {
	svc := newTestService(t)

	gotID, created, err := svc.Resolve(context.Background(), "user-a", ResolveRequest{SessionID: "not-an-id"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, "not-an-id", gotID)
	_, err = ulid.ParseStrict(gotID)
	assert.NoError(t, err)
}

func TestService_ResolveNoIDAlwaysCreates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	id1, created1, err := svc.Resolve(ctx, "user-a", ResolveRequest{})
	require.NoError(t, err)
	id2, created2, err := svc.Resolve(ctx, "user-a", ResolveRequest{})
	require.NoError(t, err)

	assert.True(t, created1)
	assert.True(t, created2)
	assert.NotEqual(t, id1, id2)
}

func TestService_ResolveOtherOwner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-a", "")
	require.NoError(t, err)

	_, _, err = svc.Resolve(ctx, "user-b", ResolveRequest{SessionID: sess.ID})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestService_ResolveConcurrentSameID(t *testing.T) {
	svc := newTestService(t)
	id := ulid.Make().String()

	const n = 8
	type outcome struct {
		id      string
		created bool
		err     error
	}
	var wg sync.WaitGroup
	outcomes := make(chan outcome, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			gotID, created, err := svc.Resolve(context.Background(), "user-a", ResolveRequest{
				SessionID: id,
				SeedText:  "seed",
			})
			outcomes <- outcome{id: gotID, created: created, err: err}
		}()
	}
	wg.Wait()
	close(outcomes)

	creates := 0
	for o := range outcomes {
		require.NoError(t, o.err)
		assert.Equal(t, id, o.id)
		if o.created {
			creates++
		}
	}
	assert.Equal(t, 1, creates, "exactly one resolver must observe created=true")

	// Exactly one stored session, with exactly one seed message.
	sess, err := svc.Get(context.Background(), "user-a", id)
	require.NoError(t, err)
	assert.Len(t, sess.Messages, 1)
}

func TestService_Get(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-a", "")
	require.NoError(t, err)

	tests := []struct {
		name    string
		ownerID string
		id      string
		wantErr error
	}{
		{"malformed id", "user-a", "not-an-id", ErrInvalidID},
		{"absent", "user-a", ulid.Make().String(), ErrNotFound},
		{"other owner", "user-b", sess.ID, ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Get(ctx, tt.ownerID, tt.id)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestService_ListNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "user-a", "first")
	require.NoError(t, err)
	second, err := svc.Create(ctx, "user-a", "second")
	require.NoError(t, err)
	// Force distinct timestamps regardless of clock granularity.
	second.CreatedAt = first.CreatedAt.Add(1)
	require.NoError(t, svc.store.Put(ctx, sessionPath(second.ID), second))

	_, err = svc.Create(ctx, "user-b", "other owner")
	require.NoError(t, err)

	sessions, err := svc.List(ctx, "user-a")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "second", sessions[0].Title)
	assert.Equal(t, "first", sessions[1].Title)
}

func TestService_Append(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-a", "")
	require.NoError(t, err)

	user := NewUserMessage("hello")
	require.NoError(t, svc.Append(ctx, "user-a", sess.ID, user))

	got, err := svc.Get(ctx, "user-a", sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hello", got.Messages[0].Text())

	assert.ErrorIs(t, svc.Append(ctx, "user-b", sess.ID, user), ErrForbidden)
}

func TestService_AppendInvalidID(t *testing.T) {
	svc := newTestService(t)

	err := svc.Append(context.Background(), "user-a", "not-an-id", NewUserMessage("hi"))
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestService_AppendConcurrentLosesNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	sess, err := svc.Create(ctx, "user-a", "")
	require.NoError(t, err)

	const writers = 12
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.Append(ctx, "user-a", sess.ID, NewUserMessage("turn")))
		}()
	}
	wg.Wait()

	got, err := svc.Get(ctx, "user-a", sess.ID)
	require.NoError(t, err)
	assert.Len(t, got.Messages, writers)
}
