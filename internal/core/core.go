package core

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/husk/internal/effect"
	"github.com/roach88/husk/internal/registry"
	"github.com/roach88/husk/internal/wire"
)

var (
	// ErrClosed reports a facade call on a closed core.
	ErrClosed = errors.New("core: closed")

	// ErrKindMismatch reports a response whose kind does not match the
	// operation originally registered under its request id.
	ErrKindMismatch = errors.New("core: response kind does not match request")
)

// Core is the externally visible engine facade: model, scheduler, registry
// and codecs behind three operations. One Core embeds one App for the
// lifetime of the process; teardown is Close, which drops all pending
// continuations without resuming them.
//
// All methods are safe for concurrent use from any goroutine.
type Core struct {
	mu      sync.RWMutex
	log     *slog.Logger
	app     App
	model   any
	reg     *registry.Registry
	cx      *Context
	session string
	running bool
	closed  bool
}

// Option configures a Core.
type Option func(*Core)

// WithLogger sets the diagnostic logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(c *Core) { c.log = log }
}

// WithTokenGenerator sets the session token source. Defaults to UUIDv7.
func WithTokenGenerator(gen TokenGenerator) Option {
	return func(c *Core) { c.session = gen.Generate() }
}

// New creates a core around app with a fresh model.
func New(app App, opts ...Option) *Core {
	c := &Core{
		log:   slog.Default(),
		app:   app,
		model: app.Init(),
		reg:   registry.New(),
	}
	c.cx = &Context{core: c}
	for _, opt := range opts {
		opt(c)
	}
	if c.session == "" {
		c.session = UUIDv7Generator{}.Generate()
	}
	return c
}

// Session returns the core's session token.
func (c *Core) Session() string {
	return c.session
}

// Pending reports the number of live continuations. Mainly for tests and
// diagnostics.
func (c *Core) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.reg.Len()
}

// ProcessEvent decodes one event, runs it through Update, and returns the
// encoded batch of requests Update emitted, in emission order. Malformed
// event bytes are a decode error; Update itself cannot fail.
func (c *Core) ProcessEvent(eventBytes []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	r := wire.NewReader(eventBytes)
	ev, err := c.app.DecodeEvent(r)
	if err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if err := r.Finish(); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	c.enterStep()
	c.app.Update(c.model, ev, c.cx)
	return effect.EncodeRequests(c.leaveStep()), nil
}

// Resolve delivers the shell's response for an outstanding request id and
// returns the encoded batch of follow-on requests, possibly empty.
//
// An unknown id (never issued, already retired, or dropped at teardown) is a
// benign no-op with a diagnostic: shell-side completions racing engine-side
// retirement are expected, and the payload is not even decoded. A response
// whose kind contradicts the registered operation is a protocol error.
func (c *Core) Resolve(id uint32, responseBytes []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	entry, ok := c.reg.Lookup(id)
	if !ok {
		c.log.Warn("resolve for unknown request id",
			"request_id", id,
			"session", c.session,
		)
		return effect.EncodeRequests(nil), nil
	}

	res, err := effect.DecodeResponse(responseBytes)
	if err != nil {
		return nil, fmt.Errorf("decode response for request %d: %w", id, err)
	}
	if res.Kind != entry.Kind {
		return nil, fmt.Errorf("%w: request %d is %s, response is %s",
			ErrKindMismatch, id, entry.Kind, res.Kind)
	}

	// Retire before resuming so the continuation can only run once per
	// registration, whatever the resumed logic does.
	if !entry.Streaming || res.Done {
		c.reg.Retire(id)
	}

	c.enterStep()
	entry.Resume(res)
	return effect.EncodeRequests(c.leaveStep()), nil
}

// View computes and encodes the current view projection. It takes the read
// lock only: no side effects, no suspension, no caching between calls.
func (c *Core) View() ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}

	w := wire.NewWriter()
	if err := c.app.EncodeView(w, c.app.View(c.model)); err != nil {
		return nil, fmt.Errorf("encode view: %w", err)
	}
	return w.Bytes(), nil
}

// Close tears the core down, dropping every pending continuation without
// resuming it. Later facade calls fail with ErrClosed; a shell resolve that
// raced Close hits the unknown-id path by design. Close is idempotent.
func (c *Core) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if n := c.reg.Drain(); n > 0 {
		c.log.Debug("dropped pending continuations at teardown",
			"count", n,
			"session", c.session,
		)
	}
}

func (c *Core) enterStep() {
	if c.running {
		panic("core: step entered while scheduler already running")
	}
	c.running = true
	c.cx.batch = nil
}

func (c *Core) leaveStep() []effect.Request {
	batch := c.cx.batch
	c.cx.batch = nil
	c.running = false
	return batch
}
