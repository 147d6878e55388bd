package shell

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/husk/internal/core"
	"github.com/roach88/husk/internal/counter"
	"github.com/roach88/husk/internal/effect"
)

type resolvedCall struct {
	ID       uint32
	Response effect.Response
}

// fakeResolver records resolves and returns empty follow-on batches.
type fakeResolver struct {
	mu    sync.Mutex
	calls []resolvedCall
}

func (f *fakeResolver) Resolve(id uint32, responseBytes []byte) ([]byte, error) {
	res, err := effect.DecodeResponse(responseBytes)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, resolvedCall{ID: id, Response: res})
	f.mu.Unlock()
	return effect.EncodeRequests(nil), nil
}

func (f *fakeResolver) snapshot() []resolvedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resolvedCall(nil), f.calls...)
}

func memKV(t *testing.T) *KVStore {
	t.Helper()
	kv, err := OpenKV(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestKVStore_GetSetDelete(t *testing.T) {
	kv := memKV(t)

	_, found, err := kv.Get("missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set("k", []byte("v1")))
	require.NoError(t, kv.Set("k", []byte("v2")))

	value, found, err := kv.Get("k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v2"), value)

	require.NoError(t, kv.Delete("k"))
	require.NoError(t, kv.Delete("k"))

	_, found, err = kv.Get("k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDispatcher_HTTPExecutor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		w.Write([]byte("42"))
	}))
	defer srv.Close()

	resolver := &fakeResolver{}
	d := NewDispatcher(resolver, nil, nil)

	batch := effect.EncodeRequests([]effect.Request{{
		ID:        1,
		Operation: effect.Operation{Kind: effect.KindHTTP, HTTP: &effect.HTTPRequest{Method: "GET", URL: srv.URL}},
	}})
	require.NoError(t, d.Dispatch(batch))
	d.Wait()

	calls := resolver.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, uint32(1), calls[0].ID)
	assert.True(t, calls[0].Response.Done)
	assert.Equal(t, uint16(200), calls[0].Response.HTTP.Status)
	assert.Equal(t, []byte("42"), calls[0].Response.HTTP.Body)
}

func TestDispatcher_HTTPFailureBecomesResponseData(t *testing.T) {
	resolver := &fakeResolver{}
	d := NewDispatcher(resolver, nil, nil)

	batch := effect.EncodeRequests([]effect.Request{{
		ID:        1,
		Operation: effect.Operation{Kind: effect.KindHTTP, HTTP: &effect.HTTPRequest{Method: "GET", URL: "http://127.0.0.1:1"}},
	}})
	require.NoError(t, d.Dispatch(batch))
	d.Wait()

	calls := resolver.snapshot()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].Response.Err)
	assert.Nil(t, calls[0].Response.HTTP)
}

func TestDispatcher_TimerExecutor(t *testing.T) {
	resolver := &fakeResolver{}
	d := NewDispatcher(resolver, nil, nil)

	start := time.Now()
	batch := effect.EncodeRequests([]effect.Request{{
		ID:        1,
		Operation: effect.Operation{Kind: effect.KindTimer, Timer: &effect.TimerStart{DurationMS: 10}},
	}})
	require.NoError(t, d.Dispatch(batch))
	d.Wait()

	calls := resolver.snapshot()
	require.Len(t, calls, 1)
	assert.True(t, calls[0].Response.Timer)
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
}

func TestDispatcher_KVExecutor(t *testing.T) {
	resolver := &fakeResolver{}
	d := NewDispatcher(resolver, memKV(t), nil)

	batch := effect.EncodeRequests([]effect.Request{
		{ID: 1, Operation: effect.Operation{Kind: effect.KindKeyValue, KV: &effect.KVRequest{Op: effect.KVSet, Key: "k", Value: []byte("v")}}},
	})
	require.NoError(t, d.Dispatch(batch))
	d.Wait()

	batch = effect.EncodeRequests([]effect.Request{
		{ID: 2, Operation: effect.Operation{Kind: effect.KindKeyValue, KV: &effect.KVRequest{Op: effect.KVGet, Key: "k"}}},
	})
	require.NoError(t, d.Dispatch(batch))
	d.Wait()

	calls := resolver.snapshot()
	require.Len(t, calls, 2)
	assert.True(t, calls[1].Response.KV.Found)
	assert.Equal(t, []byte("v"), calls[1].Response.KV.Value)
}

func TestDispatcher_PlatformExecutor(t *testing.T) {
	resolver := &fakeResolver{}
	d := NewDispatcher(resolver, nil, nil)

	batch := effect.EncodeRequests([]effect.Request{
		{ID: 1, Operation: effect.Operation{Kind: effect.KindPlatform}},
	})
	require.NoError(t, d.Dispatch(batch))
	d.Wait()

	calls := resolver.snapshot()
	require.Len(t, calls, 1)
	assert.NotEmpty(t, calls[0].Response.Platform.OS)
	assert.NotEmpty(t, calls[0].Response.Platform.Arch)
}

func TestDispatcher_RenderCallback(t *testing.T) {
	resolver := &fakeResolver{}
	d := NewDispatcher(resolver, nil, nil)

	rendered := 0
	d.OnRender = func() { rendered++ }

	batch := effect.EncodeRequests([]effect.Request{
		{ID: 1, Operation: effect.Operation{Kind: effect.KindRender}},
	})
	require.NoError(t, d.Dispatch(batch))
	d.Wait()

	assert.Equal(t, 1, rendered)
	assert.Empty(t, resolver.snapshot(), "render requests are never resolved")
}

func TestDispatcher_MalformedBatchRejected(t *testing.T) {
	d := NewDispatcher(&fakeResolver{}, nil, nil)
	assert.Error(t, d.Dispatch([]byte{0x01}))
}

func TestBroker_PublishAndComplete(t *testing.T) {
	resolver := &fakeResolver{}
	d := NewDispatcher(resolver, nil, nil)

	batch := effect.EncodeRequests([]effect.Request{
		{ID: 7, Operation: effect.Operation{Kind: effect.KindPubSub, PubSub: &effect.PubSubRequest{Op: effect.PubSubSubscribe, Topic: "ticks"}}},
	})
	require.NoError(t, d.Dispatch(batch))
	require.Equal(t, 1, d.Broker().Subscribers("ticks"))

	d.Broker().Publish("ticks", []byte("a"))
	d.Broker().Publish("ticks", []byte("b"))
	d.Broker().Complete("ticks")

	calls := resolver.snapshot()
	require.Len(t, calls, 3)
	assert.False(t, calls[0].Response.Done)
	assert.Equal(t, []byte("a"), calls[0].Response.PubSub.Payload)
	assert.False(t, calls[1].Response.Done)
	assert.True(t, calls[2].Response.Done)
	assert.Equal(t, 0, d.Broker().Subscribers("ticks"))
}

// End to end: real core, real executors, counter application.
func TestShell_EndToEndCounter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("42"))
	}))
	defer srv.Close()

	c := core.New(counter.App{}, core.WithTokenGenerator(core.NewFixedGenerator("e2e")))
	defer c.Close()

	d := NewDispatcher(c, memKV(t), nil)

	out, err := c.ProcessEvent(counter.EncodeEvent(counter.Fetch{URL: srv.URL}))
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(out))
	d.Wait()

	buf, err := c.View()
	require.NoError(t, err)
	v, err := counter.DecodeView(buf)
	require.NoError(t, err)
	assert.Equal(t, "42", v.Remote)

	// Save through the real KV executor, then load it back.
	out, err = c.ProcessEvent(counter.EncodeEvent(counter.Increment{}))
	require.NoError(t, err)
	out, err = c.ProcessEvent(counter.EncodeEvent(counter.Save{}))
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(out))
	d.Wait()

	out, err = c.ProcessEvent(counter.EncodeEvent(counter.Watch{Topic: "ticks"}))
	require.NoError(t, err)
	require.NoError(t, d.Dispatch(out))

	d.Broker().Publish("ticks", []byte("tick"))
	d.Broker().Publish("ticks", []byte("tick"))
	d.Broker().Complete("ticks")
	d.Wait()

	buf, err = c.View()
	require.NoError(t, err)
	v, err = counter.DecodeView(buf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v.Ticks)
	assert.Equal(t, int64(1), v.Count)
}
