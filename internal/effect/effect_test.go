package effect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/husk/internal/wire"
)

func sampleRequests() []Request {
	return []Request{
		{ID: 1, Operation: Operation{Kind: KindHTTP, HTTP: &HTTPRequest{
			Method:  "GET",
			URL:     "https://example.com/answer",
			Headers: []Header{{Name: "Accept", Value: "text/plain"}},
			Body:    nil,
		}}},
		{ID: 2, Operation: Operation{Kind: KindTimer, Timer: &TimerStart{DurationMS: 1500}}},
		{ID: 3, Operation: Operation{Kind: KindKeyValue, KV: &KVRequest{
			Op: KVSet, Key: "counter", Value: []byte("41"),
		}}},
		{ID: 4, Operation: Operation{Kind: KindPubSub, PubSub: &PubSubRequest{
			Op: PubSubSubscribe, Topic: "ticks",
		}}},
		{ID: 5, Operation: Operation{Kind: KindRender}},
		{ID: 6, Operation: Operation{Kind: KindPlatform}},
	}
}

func TestRequests_RoundTrip(t *testing.T) {
	reqs := sampleRequests()

	buf := EncodeRequests(reqs)
	got, err := DecodeRequests(buf)
	require.NoError(t, err)

	require.Len(t, got, len(reqs))
	for i := range reqs {
		assert.Equal(t, reqs[i].ID, got[i].ID)
		assert.Equal(t, reqs[i].Operation.Kind, got[i].Operation.Kind)
	}
	assert.Equal(t, "https://example.com/answer", got[0].Operation.HTTP.URL)
	assert.Equal(t, []Header{{Name: "Accept", Value: "text/plain"}}, got[0].Operation.HTTP.Headers)
	assert.Equal(t, uint64(1500), got[1].Operation.Timer.DurationMS)
	assert.Equal(t, KVSet, got[2].Operation.KV.Op)
	assert.Equal(t, []byte("41"), got[2].Operation.KV.Value)
	assert.Equal(t, "ticks", got[3].Operation.PubSub.Topic)
}

func TestRequests_EncodingIsDeterministic(t *testing.T) {
	reqs := sampleRequests()
	assert.Equal(t, EncodeRequests(reqs), EncodeRequests(reqs))
}

func TestRequests_TruncatedPrefixesFail(t *testing.T) {
	buf := EncodeRequests(sampleRequests())

	for n := 0; n < len(buf); n++ {
		_, err := DecodeRequests(buf[:n])
		require.Error(t, err, "prefix of %d bytes must not decode", n)
	}
}

func TestRequests_OverlongCountFails(t *testing.T) {
	// A count field the remaining bytes cannot possibly hold must be a
	// decode error, not an allocation sized by hostile input.
	cases := map[string][]byte{
		"max count, empty body": {0xff, 0xff, 0xff, 0xff},
		"count one, no body":    {0x00, 0x00, 0x00, 0x01},
		"count two, one entry":  append([]byte{0x00, 0x00, 0x00, 0x02}, EncodeRequests([]Request{{ID: 1, Operation: Operation{Kind: KindRender}}})[4:]...),
	}
	for name, buf := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRequests(buf)
			require.ErrorIs(t, err, wire.ErrTruncated)
		})
	}
}

func TestRequests_TrailingBytesFail(t *testing.T) {
	buf := append(EncodeRequests(sampleRequests()), 0x00)
	_, err := DecodeRequests(buf)
	assert.ErrorIs(t, err, wire.ErrTrailingBytes)
}

func TestDecodeOperation_UnknownKind(t *testing.T) {
	w := wire.NewWriter()
	w.U8(200)
	_, err := DecodeOperation(wire.NewReader(w.Bytes()))
	assert.ErrorIs(t, err, wire.ErrBadTag)
}

func TestResponse_RoundTrip(t *testing.T) {
	cases := []Response{
		{Done: true, Kind: KindHTTP, HTTP: &HTTPResponse{
			Status:  200,
			Headers: []Header{{Name: "Content-Type", Value: "text/plain"}},
			Body:    []byte("42"),
		}},
		{Done: true, Kind: KindTimer, Timer: true},
		{Done: true, Kind: KindKeyValue, KV: &KVResult{Found: true, Value: []byte("v")}},
		{Done: true, Kind: KindKeyValue, KV: &KVResult{Found: false}},
		{Done: false, Kind: KindPubSub, PubSub: &PubSubMessage{Payload: []byte("tick")}},
		{Done: true, Kind: KindPubSub, PubSub: &PubSubMessage{}},
		{Done: true, Kind: KindPlatform, Platform: &PlatformInfo{OS: "linux", Arch: "amd64", Version: "6.1"}},
		{Done: true, Kind: KindHTTP, Err: "connection refused"},
	}

	for _, res := range cases {
		t.Run(res.Kind.String(), func(t *testing.T) {
			buf := EncodeResponse(res)
			got, err := DecodeResponse(buf)
			require.NoError(t, err)
			assert.Equal(t, res.Done, got.Done)
			assert.Equal(t, res.Kind, got.Kind)
			assert.Equal(t, res.Err, got.Err)
			if res.Err == "" {
				switch res.Kind {
				case KindHTTP:
					assert.Equal(t, res.HTTP.Status, got.HTTP.Status)
					assert.Equal(t, res.HTTP.Body, got.HTTP.Body)
				case KindKeyValue:
					assert.Equal(t, res.KV.Found, got.KV.Found)
				case KindPubSub:
					require.NotNil(t, got.PubSub)
				case KindPlatform:
					assert.Equal(t, res.Platform, got.Platform)
				}
			}
		})
	}
}

func TestResponse_TruncatedPrefixesFail(t *testing.T) {
	buf := EncodeResponse(Response{Done: true, Kind: KindHTTP, HTTP: &HTTPResponse{
		Status: 200, Body: []byte("payload"),
	}})

	for n := 0; n < len(buf); n++ {
		_, err := DecodeResponse(buf[:n])
		require.Error(t, err, "prefix of %d bytes must not decode", n)
	}
}

func TestResponse_ErrorEnvelopeCarriesNoBody(t *testing.T) {
	buf := EncodeResponse(Response{Done: true, Kind: KindHTTP, Err: "timeout"})
	got, err := DecodeResponse(buf)
	require.NoError(t, err)
	assert.Equal(t, "timeout", got.Err)
	assert.Nil(t, got.HTTP)
}

func TestOperation_Classification(t *testing.T) {
	sub := Operation{Kind: KindPubSub, PubSub: &PubSubRequest{Op: PubSubSubscribe, Topic: "t"}}
	pub := Operation{Kind: KindPubSub, PubSub: &PubSubRequest{Op: PubSubPublish, Topic: "t"}}
	render := Operation{Kind: KindRender}
	httpOp := Operation{Kind: KindHTTP, HTTP: &HTTPRequest{Method: "GET"}}

	assert.True(t, sub.ExpectsResponse())
	assert.True(t, sub.Streaming())

	assert.False(t, pub.ExpectsResponse())
	assert.False(t, pub.Streaming())

	assert.False(t, render.ExpectsResponse())
	assert.True(t, httpOp.ExpectsResponse())
	assert.False(t, httpOp.Streaming())
}
