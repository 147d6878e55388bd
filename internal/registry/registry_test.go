package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/husk/internal/effect"
)

func noopResume(effect.Response) {}

func TestRegistry_IDsAreMonotonicFromOne(t *testing.T) {
	r := New()

	id1 := r.Register(Entry{Kind: effect.KindHTTP, Resume: noopResume})
	id2 := r.Register(Entry{Kind: effect.KindTimer, Resume: noopResume})
	id3 := r.Register(Entry{Kind: effect.KindKeyValue, Resume: noopResume})

	assert.Equal(t, uint32(1), id1)
	assert.Equal(t, uint32(2), id2)
	assert.Equal(t, uint32(3), id3)
}

func TestRegistry_IDsNeverReused(t *testing.T) {
	r := New()

	id1 := r.Register(Entry{Kind: effect.KindHTTP, Resume: noopResume})
	r.Retire(id1)

	id2 := r.Register(Entry{Kind: effect.KindHTTP, Resume: noopResume})
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, uint32(2), id2)
}

func TestRegistry_LookupAndRetire(t *testing.T) {
	r := New()

	id := r.Register(Entry{Kind: effect.KindHTTP, Streaming: false, Resume: noopResume})

	e, ok := r.Lookup(id)
	require.True(t, ok)
	assert.Equal(t, effect.KindHTTP, e.Kind)

	r.Retire(id)
	_, ok = r.Lookup(id)
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_RetireUnknownIsNoOp(t *testing.T) {
	r := New()
	r.Retire(999)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_DrainDropsEverything(t *testing.T) {
	r := New()

	resumed := false
	r.Register(Entry{Kind: effect.KindHTTP, Resume: func(effect.Response) { resumed = true }})
	r.Register(Entry{Kind: effect.KindPubSub, Streaming: true, Resume: noopResume})

	n := r.Drain()
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, r.Len())
	assert.False(t, resumed, "drain must drop continuations without resuming them")
}

func TestRegistry_AllocateSharesIDSequence(t *testing.T) {
	r := New()

	id1 := r.Register(Entry{Kind: effect.KindHTTP, Resume: noopResume})
	id2 := r.Allocate()
	id3 := r.Register(Entry{Kind: effect.KindTimer, Resume: noopResume})

	assert.Equal(t, []uint32{1, 2, 3}, []uint32{id1, id2, id3})

	_, ok := r.Lookup(id2)
	assert.False(t, ok, "allocated ids carry no continuation")
}

func TestRegistry_DrainDoesNotResetAllocator(t *testing.T) {
	r := New()
	r.Register(Entry{Kind: effect.KindHTTP, Resume: noopResume})
	r.Drain()

	id := r.Register(Entry{Kind: effect.KindHTTP, Resume: noopResume})
	assert.Equal(t, uint32(2), id)
}

func TestRegistry_RegisterDuplicateIDPanics(t *testing.T) {
	r := New()
	// Occupy the id the allocator will hand out next.
	r.entries[1] = Entry{Kind: effect.KindHTTP, Resume: noopResume}

	require.Panics(t, func() {
		r.Register(Entry{Kind: effect.KindHTTP, Resume: noopResume})
	})
}

func TestRegistry_IDExhaustionPanics(t *testing.T) {
	r := New()
	r.next = ^uint32(0) // next allocation wraps to 0

	require.Panics(t, func() {
		r.Register(Entry{Kind: effect.KindHTTP, Resume: noopResume})
	})

	r2 := New()
	r2.next = ^uint32(0)
	require.Panics(t, func() { r2.Allocate() })
}
