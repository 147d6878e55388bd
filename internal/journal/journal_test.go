package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/husk/internal/core"
	"github.com/roach88/husk/internal/counter"
	"github.com/roach88/husk/internal/effect"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func recordSession(t *testing.T, store *Store, session string) []byte {
	t.Helper()
	ctx := context.Background()

	c := core.New(counter.App{}, core.WithTokenGenerator(core.NewFixedGenerator(session)))
	t.Cleanup(c.Close)
	rec := NewRecorder(c, store)

	for i := 0; i < 2; i++ {
		_, err := rec.ProcessEvent(ctx, counter.EncodeEvent(counter.Increment{}))
		require.NoError(t, err)
	}

	out, err := rec.ProcessEvent(ctx, counter.EncodeEvent(counter.Fetch{URL: "https://example.com/answer"}))
	require.NoError(t, err)
	reqs, err := effect.DecodeRequests(out)
	require.NoError(t, err)
	require.Len(t, reqs, 1)

	_, err = rec.Resolve(ctx, reqs[0].ID, effect.EncodeResponse(effect.Response{
		Done: true,
		Kind: effect.KindHTTP,
		HTTP: &effect.HTTPResponse{Status: 200, Body: []byte("42")},
	}))
	require.NoError(t, err)

	view, err := rec.View()
	require.NoError(t, err)
	return view
}

func TestJournal_RecordAndCallsInOrder(t *testing.T) {
	store := openTestStore(t)
	recordSession(t, store, "session-a")

	calls, err := store.Calls(context.Background(), "session-a")
	require.NoError(t, err)
	require.Len(t, calls, 4)

	kinds := make([]string, len(calls))
	for i, c := range calls {
		kinds[i] = c.Kind
		if i > 0 {
			assert.Greater(t, c.Seq, calls[i-1].Seq, "seq must increase in admission order")
		}
	}
	assert.Equal(t, []string{KindEvent, KindEvent, KindEvent, KindResolve}, kinds)
	assert.Equal(t, uint32(1), calls[3].RequestID)
}

func TestJournal_ReplayReproducesView(t *testing.T) {
	store := openTestStore(t)
	original := recordSession(t, store, "session-replay")

	c, res, err := Replay(context.Background(), store, counter.App{}, "session-replay", nil)
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 3, res.Events)
	assert.Equal(t, 1, res.Resolves)
	assert.Equal(t, original, res.View, "replayed view must match the recorded session's view")

	v, err := counter.DecodeView(res.View)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Count)
	assert.Equal(t, "42", v.Remote)
}

func TestJournal_VerifyDeterministic(t *testing.T) {
	store := openTestStore(t)
	recordSession(t, store, "session-det")

	ok, err := VerifyDeterministic(context.Background(), store, counter.App{}, "session-det", nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestJournal_ReplayUnknownSession(t *testing.T) {
	store := openTestStore(t)

	_, _, err := Replay(context.Background(), store, counter.App{}, "missing", nil)
	assert.Error(t, err)
}

func TestJournal_SessionsAreListed(t *testing.T) {
	store := openTestStore(t)
	recordSession(t, store, "session-1")
	recordSession(t, store, "session-2")

	sessions, err := store.Sessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"session-1", "session-2"}, sessions)
}

func TestJournal_OpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestJournal_ReplayToleratesRecordedNoOpResolve(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	c := core.New(counter.App{}, core.WithTokenGenerator(core.NewFixedGenerator("session-noop")))
	defer c.Close()
	rec := NewRecorder(c, store)

	_, err := rec.ProcessEvent(ctx, counter.EncodeEvent(counter.Increment{}))
	require.NoError(t, err)

	// Resolve of a never-issued id is a recorded no-op.
	_, err = rec.Resolve(ctx, 999, []byte("anything"))
	require.NoError(t, err)

	replayed, res, err := Replay(ctx, store, counter.App{}, "session-noop", nil)
	require.NoError(t, err)
	defer replayed.Close()

	assert.Equal(t, 1, res.Resolves)
	v, err := counter.DecodeView(res.View)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Count)
}
