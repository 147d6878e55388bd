package shell

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/roach88/husk/internal/effect"
	"github.com/roach88/husk/internal/wire"
)

// Resolver is the engine-side surface the dispatcher resolves into.
// Implemented by core.Core; CLI shells wrap journaling around it.
type Resolver interface {
	Resolve(id uint32, responseBytes []byte) ([]byte, error)
}

// Dispatcher routes decoded requests to effect executors.
type Dispatcher struct {
	resolver Resolver
	log      *slog.Logger

	httpClient *http.Client
	kv         *KVStore
	broker     *Broker

	// OnRender, when set, is called once per render request. Typically it
	// pulls Core.View and repaints.
	OnRender func()

	wg sync.WaitGroup
}

// NewDispatcher creates a dispatcher resolving into r. kv may be nil if the
// application never uses the key-value capability.
func NewDispatcher(r Resolver, kv *KVStore, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{
		resolver:   r,
		log:        log,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		kv:         kv,
		broker:     NewBroker(),
	}
	d.broker.deliver = d.finish
	return d
}

// Broker returns the in-process pub-sub broker backing the subscription
// capability. Tests and CLI publish through it.
func (d *Dispatcher) Broker() *Broker {
	return d.broker
}

// Dispatch decodes a request batch and launches an executor per request.
// Returns a decode error for malformed batches; executor failures are
// reported to the core as response data, never as errors here.
func (d *Dispatcher) Dispatch(requestsBytes []byte) error {
	reqs, err := effect.DecodeRequests(requestsBytes)
	if err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	for _, req := range reqs {
		d.launch(req)
	}
	return nil
}

// Wait blocks until every in-flight executor has resolved. Subscriptions
// are not waited on; they live until their topic completes.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) launch(req effect.Request) {
	op := req.Operation
	switch op.Kind {
	case effect.KindHTTP:
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.finish(req.ID, d.performHTTP(op.HTTP))
		}()

	case effect.KindTimer:
		d.wg.Add(1)
		time.AfterFunc(time.Duration(op.Timer.DurationMS)*time.Millisecond, func() {
			defer d.wg.Done()
			d.finish(req.ID, effect.Response{Done: true, Kind: effect.KindTimer, Timer: true})
		})

	case effect.KindKeyValue:
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.finish(req.ID, d.performKV(op.KV))
		}()

	case effect.KindPubSub:
		switch op.PubSub.Op {
		case effect.PubSubSubscribe:
			d.broker.Subscribe(op.PubSub.Topic, req.ID)
		case effect.PubSubPublish:
			d.broker.Publish(op.PubSub.Topic, op.PubSub.Payload)
		}

	case effect.KindRender:
		if d.OnRender != nil {
			d.OnRender()
		}

	case effect.KindPlatform:
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.finish(req.ID, effect.Response{
				Done: true,
				Kind: effect.KindPlatform,
				Platform: &effect.PlatformInfo{
					OS:      runtime.GOOS,
					Arch:    runtime.GOARCH,
					Version: runtime.Version(),
				},
			})
		}()

	default:
		d.log.Warn("request with unknown operation kind",
			"request_id", req.ID,
			"kind", uint8(op.Kind),
		)
	}
}

// finish resolves one response into the core and dispatches any follow-on
// requests the resumed logic emitted.
func (d *Dispatcher) finish(id uint32, res effect.Response) {
	out, err := d.resolver.Resolve(id, effect.EncodeResponse(res))
	if err != nil {
		d.log.Warn("resolve rejected",
			"request_id", id,
			"error", err,
		)
		return
	}
	if err := d.Dispatch(out); err != nil {
		d.log.Warn("follow-on dispatch failed",
			"request_id", id,
			"error", err,
		)
	}
}

func (d *Dispatcher) performHTTP(op *effect.HTTPRequest) effect.Response {
	fail := func(err error) effect.Response {
		return effect.Response{Done: true, Kind: effect.KindHTTP, Err: err.Error()}
	}

	var body io.Reader
	if len(op.Body) > 0 {
		body = bytes.NewReader(op.Body)
	}
	httpReq, err := http.NewRequest(op.Method, op.URL, body)
	if err != nil {
		return fail(err)
	}
	for _, h := range op.Headers {
		httpReq.Header.Add(h.Name, h.Value)
	}

	httpRes, err := d.httpClient.Do(httpReq)
	if err != nil {
		return fail(err)
	}
	defer httpRes.Body.Close()

	// Cap at what the wire format will carry anyway.
	resBody, err := io.ReadAll(io.LimitReader(httpRes.Body, wire.MaxChunkSize))
	if err != nil {
		return fail(err)
	}

	res := effect.HTTPResponse{
		Status: uint16(httpRes.StatusCode),
		Body:   resBody,
	}
	for name, values := range httpRes.Header {
		for _, v := range values {
			res.Headers = append(res.Headers, effect.Header{Name: name, Value: v})
		}
	}
	return effect.Response{Done: true, Kind: effect.KindHTTP, HTTP: &res}
}

func (d *Dispatcher) performKV(op *effect.KVRequest) effect.Response {
	fail := func(err error) effect.Response {
		return effect.Response{Done: true, Kind: effect.KindKeyValue, Err: err.Error()}
	}
	if d.kv == nil {
		return fail(fmt.Errorf("no key-value store configured"))
	}

	switch op.Op {
	case effect.KVGet:
		value, found, err := d.kv.Get(op.Key)
		if err != nil {
			return fail(err)
		}
		return effect.Response{Done: true, Kind: effect.KindKeyValue, KV: &effect.KVResult{Found: found, Value: value}}
	case effect.KVSet:
		if err := d.kv.Set(op.Key, op.Value); err != nil {
			return fail(err)
		}
		return effect.Response{Done: true, Kind: effect.KindKeyValue, KV: &effect.KVResult{Found: true}}
	case effect.KVDelete:
		if err := d.kv.Delete(op.Key); err != nil {
			return fail(err)
		}
		return effect.Response{Done: true, Kind: effect.KindKeyValue, KV: &effect.KVResult{Found: true}}
	default:
		return fail(fmt.Errorf("unknown key-value sub-op %d", op.Op))
	}
}
