package effect

import (
	"fmt"

	"github.com/roach88/husk/internal/wire"
)

// Kind identifies an operation variant on the wire.
type Kind uint8

const (
	// KindHTTP requests one HTTP exchange performed by the shell.
	KindHTTP Kind = iota + 1
	// KindTimer requests a one-shot notification after a duration elapses.
	KindTimer
	// KindKeyValue requests a get/set/delete against the shell's store.
	KindKeyValue
	// KindPubSub requests a publish or a subscription on a topic.
	KindPubSub
	// KindRender signals the shell that the view changed and should be
	// re-rendered. Render requests carry no payload and expect no response.
	KindRender
	// KindPlatform requests a description of the host platform.
	KindPlatform
)

// String returns the lowercase protocol name of the kind.
func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindTimer:
		return "timer"
	case KindKeyValue:
		return "keyvalue"
	case KindPubSub:
		return "pubsub"
	case KindRender:
		return "render"
	case KindPlatform:
		return "platform"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Header is one HTTP header pair. Repeated names are allowed; order is
// preserved through encoding.
type Header struct {
	Name  string
	Value string
}

// HTTPRequest describes one HTTP exchange for the shell to perform.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers []Header
	Body    []byte
}

// TimerStart describes a one-shot timer.
type TimerStart struct {
	DurationMS uint64
}

// KVOp selects the key-value sub-operation.
type KVOp uint8

const (
	KVGet KVOp = iota + 1
	KVSet
	KVDelete
)

// KVRequest describes a key-value operation. Value is only meaningful for
// KVSet.
type KVRequest struct {
	Op    KVOp
	Key   string
	Value []byte
}

// PubSubOp selects the pub-sub sub-operation.
type PubSubOp uint8

const (
	PubSubSubscribe PubSubOp = iota + 1
	PubSubPublish
)

// PubSubRequest describes a pub-sub operation. Payload is only meaningful
// for PubSubPublish.
type PubSubRequest struct {
	Op      PubSubOp
	Topic   string
	Payload []byte
}

// Operation is the closed tagged union of effect descriptions. Exactly the
// variant named by Kind is non-nil (Render and Platform carry no body).
type Operation struct {
	Kind   Kind
	HTTP   *HTTPRequest
	Timer  *TimerStart
	KV     *KVRequest
	PubSub *PubSubRequest
}

// ExpectsResponse reports whether the shell owes this operation at least one
// Resolve call. Render and publish are fire-and-forget: the core registers
// no continuation for them.
func (o Operation) ExpectsResponse() bool {
	switch o.Kind {
	case KindRender:
		return false
	case KindPubSub:
		return o.PubSub != nil && o.PubSub.Op == PubSubSubscribe
	default:
		return true
	}
}

// Streaming reports whether the operation's continuation survives multiple
// resolutions. Only subscriptions stream; everything else retires after its
// first response.
func (o Operation) Streaming() bool {
	return o.Kind == KindPubSub && o.PubSub != nil && o.PubSub.Op == PubSubSubscribe
}

// Request is the unit delivered to the shell: a unique correlation id plus
// the operation it identifies.
type Request struct {
	ID        uint32
	Operation Operation
}

// Encode appends the operation's wire form: kind tag then kind-specific body.
func (o Operation) Encode(w *wire.Writer) {
	w.U8(uint8(o.Kind))
	switch o.Kind {
	case KindHTTP:
		w.String(o.HTTP.Method)
		w.String(o.HTTP.URL)
		w.U32(uint32(len(o.HTTP.Headers)))
		for _, h := range o.HTTP.Headers {
			w.String(h.Name)
			w.String(h.Value)
		}
		w.Blob(o.HTTP.Body)
	case KindTimer:
		w.U64(o.Timer.DurationMS)
	case KindKeyValue:
		w.U8(uint8(o.KV.Op))
		w.String(o.KV.Key)
		w.Blob(o.KV.Value)
	case KindPubSub:
		w.U8(uint8(o.PubSub.Op))
		w.String(o.PubSub.Topic)
		w.Blob(o.PubSub.Payload)
	case KindRender, KindPlatform:
		// tag only
	}
}

// DecodeOperation reads one operation from r.
func DecodeOperation(r *wire.Reader) (Operation, error) {
	tag, err := r.U8()
	if err != nil {
		return Operation{}, err
	}
	op := Operation{Kind: Kind(tag)}
	switch op.Kind {
	case KindHTTP:
		h := &HTTPRequest{}
		if h.Method, err = r.String(); err != nil {
			return Operation{}, err
		}
		if h.URL, err = r.String(); err != nil {
			return Operation{}, err
		}
		n, err := r.U32()
		if err != nil {
			return Operation{}, err
		}
		for i := uint32(0); i < n; i++ {
			var hd Header
			if hd.Name, err = r.String(); err != nil {
				return Operation{}, err
			}
			if hd.Value, err = r.String(); err != nil {
				return Operation{}, err
			}
			h.Headers = append(h.Headers, hd)
		}
		if h.Body, err = r.Blob(); err != nil {
			return Operation{}, err
		}
		op.HTTP = h
	case KindTimer:
		t := &TimerStart{}
		if t.DurationMS, err = r.U64(); err != nil {
			return Operation{}, err
		}
		op.Timer = t
	case KindKeyValue:
		kv := &KVRequest{}
		sub, err := r.U8()
		if err != nil {
			return Operation{}, err
		}
		kv.Op = KVOp(sub)
		if kv.Op < KVGet || kv.Op > KVDelete {
			return Operation{}, fmt.Errorf("%w: keyvalue sub-op %d", wire.ErrBadTag, sub)
		}
		if kv.Key, err = r.String(); err != nil {
			return Operation{}, err
		}
		if kv.Value, err = r.Blob(); err != nil {
			return Operation{}, err
		}
		op.KV = kv
	case KindPubSub:
		ps := &PubSubRequest{}
		sub, err := r.U8()
		if err != nil {
			return Operation{}, err
		}
		ps.Op = PubSubOp(sub)
		if ps.Op < PubSubSubscribe || ps.Op > PubSubPublish {
			return Operation{}, fmt.Errorf("%w: pubsub sub-op %d", wire.ErrBadTag, sub)
		}
		if ps.Topic, err = r.String(); err != nil {
			return Operation{}, err
		}
		if ps.Payload, err = r.Blob(); err != nil {
			return Operation{}, err
		}
		op.PubSub = ps
	case KindRender, KindPlatform:
		// tag only
	default:
		return Operation{}, fmt.Errorf("%w: operation kind %d", wire.ErrBadTag, tag)
	}
	return op, nil
}

// EncodeRequests encodes an ordered request batch: count then each request.
func EncodeRequests(reqs []Request) []byte {
	w := wire.NewWriter()
	w.U32(uint32(len(reqs)))
	for _, req := range reqs {
		w.U32(req.ID)
		req.Operation.Encode(w)
	}
	return w.Bytes()
}

// DecodeRequests decodes a full request batch, rejecting trailing bytes.
func DecodeRequests(buf []byte) ([]Request, error) {
	r := wire.NewReader(buf)
	n, err := r.U32()
	if err != nil {
		return nil, err
	}
	// The smallest request is 5 bytes (u32 id + u8 kind tag), so a count
	// the remaining bytes cannot hold is truncation, caught before the
	// count sizes any allocation.
	if uint64(n) > uint64(r.Remaining())/5 {
		return nil, fmt.Errorf("%w: batch count %d exceeds remaining %d bytes", wire.ErrTruncated, n, r.Remaining())
	}
	reqs := make([]Request, 0, n)
	for i := uint32(0); i < n; i++ {
		id, err := r.U32()
		if err != nil {
			return nil, err
		}
		op, err := DecodeOperation(r)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, Request{ID: id, Operation: op})
	}
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return reqs, nil
}
