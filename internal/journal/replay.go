package journal

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/husk/internal/core"
)

// Result summarizes one replayed session.
type Result struct {
	Session  string
	Events   int
	Resolves int
	View     []byte
}

// Replay feeds a session's recorded calls, in order, into a fresh core for
// app and returns the rebuilt core plus a summary. The caller owns the
// returned core and must Close it.
//
// Replay errors mean the journal and the application no longer agree (for
// example, the app's event codec changed); the partial core is closed
// before returning.
func Replay(ctx context.Context, store *Store, app core.App, session string, log *slog.Logger) (*core.Core, Result, error) {
	if log == nil {
		log = slog.Default()
	}

	calls, err := store.Calls(ctx, session)
	if err != nil {
		return nil, Result{}, err
	}
	if len(calls) == 0 {
		return nil, Result{}, fmt.Errorf("replay: session %s has no recorded calls", session)
	}

	c := core.New(app, core.WithTokenGenerator(core.NewFixedGenerator(session)))
	res := Result{Session: session}

	for _, call := range calls {
		switch call.Kind {
		case KindEvent:
			if _, err := c.ProcessEvent(call.Payload); err != nil {
				c.Close()
				return nil, Result{}, fmt.Errorf("replay seq %d: %w", call.Seq, err)
			}
			res.Events++
		case KindResolve:
			if _, err := c.Resolve(call.RequestID, call.Payload); err != nil {
				c.Close()
				return nil, Result{}, fmt.Errorf("replay seq %d: %w", call.Seq, err)
			}
			res.Resolves++
		default:
			c.Close()
			return nil, Result{}, fmt.Errorf("replay seq %d: unknown call kind %q", call.Seq, call.Kind)
		}
	}

	view, err := c.View()
	if err != nil {
		c.Close()
		return nil, Result{}, fmt.Errorf("replay view: %w", err)
	}
	res.View = view

	log.Debug("replayed session",
		"session", session,
		"events", res.Events,
		"resolves", res.Resolves,
	)
	return c, res, nil
}

// VerifyDeterministic replays session twice and compares the resulting view
// bytes. A mismatch means update logic consulted something outside the
// journaled inputs.
func VerifyDeterministic(ctx context.Context, store *Store, app core.App, session string, log *slog.Logger) (bool, error) {
	c1, first, err := Replay(ctx, store, app, session, log)
	if err != nil {
		return false, err
	}
	c1.Close()

	c2, second, err := Replay(ctx, store, app, session, log)
	if err != nil {
		return false, err
	}
	c2.Close()

	return bytes.Equal(first.View, second.View), nil
}
