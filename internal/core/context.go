package core

import (
	"time"

	"github.com/roach88/husk/internal/effect"
	"github.com/roach88/husk/internal/registry"
)

// Context is the capability set handed to Update. Each capability call
// describes an effect, registers its continuation, and appends the resulting
// Request to the current step's batch in emission order.
//
// A Context is bound to one core and is only valid inside the core's
// critical section; Update and continuations must not retain it past their
// own return.
type Context struct {
	core  *Core
	batch []effect.Request
}

// emit appends op to the current step's batch. Whether a continuation is
// registered, and whether it streams, follows from the operation itself:
// fire-and-forget operations consume an id without registering, so resume
// must be nil exactly when the shell owes no response.
func (cx *Context) emit(op effect.Operation, resume registry.Continuation) {
	var id uint32
	if op.ExpectsResponse() {
		id = cx.core.reg.Register(registry.Entry{
			Kind:      op.Kind,
			Streaming: op.Streaming(),
			Resume:    resume,
		})
	} else {
		id = cx.core.reg.Allocate()
	}
	cx.batch = append(cx.batch, effect.Request{ID: id, Operation: op})
}

// HTTPOutcome is the result-shaped value a continuation receives for an HTTP
// operation. Err is the shell-reported failure; when Err is non-empty,
// Response is nil.
type HTTPOutcome struct {
	Response *effect.HTTPResponse
	Err      string
}

// KVOutcome is the result of a key-value operation. Found is false for a
// get on a missing key.
type KVOutcome struct {
	Found bool
	Value []byte
	Err   string
}

// StreamEvent is one delivery on a subscription. Done marks the terminal
// delivery; after Done the continuation will not run again.
type StreamEvent struct {
	Payload []byte
	Done    bool
	Err     string
}

// PlatformOutcome is the result of a platform-info operation.
type PlatformOutcome struct {
	Info *effect.PlatformInfo
	Err  string
}

// HTTP is the HTTP capability.
type HTTP struct{ cx *Context }

// HTTP returns the HTTP capability.
func (cx *Context) HTTP() HTTP { return HTTP{cx} }

// Request issues an HTTP operation and suspends then until its response.
func (h HTTP) Request(req effect.HTTPRequest, then func(model any, out HTTPOutcome)) {
	cx := h.cx
	h.cx.emit(
		effect.Operation{Kind: effect.KindHTTP, HTTP: &req},
		func(res effect.Response) {
			then(cx.core.model, HTTPOutcome{Response: res.HTTP, Err: res.Err})
		},
	)
}

// Get issues a GET for url.
func (h HTTP) Get(url string, then func(model any, out HTTPOutcome)) {
	h.Request(effect.HTTPRequest{Method: "GET", URL: url}, then)
}

// Time is the timer capability.
type Time struct{ cx *Context }

// Time returns the timer capability.
func (cx *Context) Time() Time { return Time{cx} }

// After requests a one-shot notification once d has elapsed on the shell's
// clock. Sub-millisecond precision is truncated by the wire format.
func (t Time) After(d time.Duration, then func(model any)) {
	cx := t.cx
	t.cx.emit(
		effect.Operation{Kind: effect.KindTimer, Timer: &effect.TimerStart{DurationMS: uint64(d / time.Millisecond)}},
		func(res effect.Response) {
			then(cx.core.model)
		},
	)
}

// KV is the key-value capability.
type KV struct{ cx *Context }

// KV returns the key-value capability.
func (cx *Context) KV() KV { return KV{cx} }

func (k KV) request(req effect.KVRequest, then func(model any, out KVOutcome)) {
	cx := k.cx
	if then == nil {
		then = func(any, KVOutcome) {}
	}
	k.cx.emit(
		effect.Operation{Kind: effect.KindKeyValue, KV: &req},
		func(res effect.Response) {
			out := KVOutcome{Err: res.Err}
			if res.KV != nil {
				out.Found = res.KV.Found
				out.Value = res.KV.Value
			}
			then(cx.core.model, out)
		},
	)
}

// Get reads key from the shell's store.
func (k KV) Get(key string, then func(model any, out KVOutcome)) {
	k.request(effect.KVRequest{Op: effect.KVGet, Key: key}, then)
}

// Set writes key. then may be nil when the app does not care about the ack.
func (k KV) Set(key string, value []byte, then func(model any, out KVOutcome)) {
	k.request(effect.KVRequest{Op: effect.KVSet, Key: key, Value: value}, then)
}

// Delete removes key. then may be nil.
func (k KV) Delete(key string, then func(model any, out KVOutcome)) {
	k.request(effect.KVRequest{Op: effect.KVDelete, Key: key}, then)
}

// PubSub is the publish/subscribe capability.
type PubSub struct{ cx *Context }

// PubSub returns the publish/subscribe capability.
func (cx *Context) PubSub() PubSub { return PubSub{cx} }

// Subscribe opens a streaming subscription on topic. then runs once per
// delivery and stays registered until a delivery arrives with Done set (or
// the core is closed). Restarting a terminated stream means subscribing
// again.
func (p PubSub) Subscribe(topic string, then func(model any, ev StreamEvent)) {
	cx := p.cx
	p.cx.emit(
		effect.Operation{Kind: effect.KindPubSub, PubSub: &effect.PubSubRequest{Op: effect.PubSubSubscribe, Topic: topic}},
		func(res effect.Response) {
			ev := StreamEvent{Done: res.Done, Err: res.Err}
			if res.PubSub != nil {
				ev.Payload = res.PubSub.Payload
			}
			then(cx.core.model, ev)
		},
	)
}

// Publish sends payload on topic. Fire-and-forget: no response is expected
// and no continuation is registered.
func (p PubSub) Publish(topic string, payload []byte) {
	p.cx.emit(
		effect.Operation{Kind: effect.KindPubSub, PubSub: &effect.PubSubRequest{Op: effect.PubSubPublish, Topic: topic, Payload: payload}},
		nil,
	)
}

// Render signals the shell that the view changed. Fire-and-forget.
func (cx *Context) Render() {
	cx.emit(effect.Operation{Kind: effect.KindRender}, nil)
}

// Platform is the host-info capability.
type Platform struct{ cx *Context }

// Platform returns the host-info capability.
func (cx *Context) Platform() Platform { return Platform{cx} }

// Info requests a description of the host platform.
func (p Platform) Info(then func(model any, out PlatformOutcome)) {
	cx := p.cx
	p.cx.emit(
		effect.Operation{Kind: effect.KindPlatform},
		func(res effect.Response) {
			then(cx.core.model, PlatformOutcome{Info: res.Platform, Err: res.Err})
		},
	)
}
