package journal

import (
	"context"

	"github.com/roach88/husk/internal/core"
)

// Recorder wraps a core and journals every successful boundary call before
// the result is returned to the shell. View calls are not recorded: they
// are side-effect free and contribute nothing to replay.
//
// Calls are appended outside the core's lock, so the journal's admission
// order can in principle diverge from the core's under concurrent shells.
// Recording shells that need exact ordering serialize their own resolves;
// the CLI shell does.
type Recorder struct {
	core  *core.Core
	store *Store
}

// NewRecorder creates a recorder journaling c's calls into store.
func NewRecorder(c *core.Core, store *Store) *Recorder {
	return &Recorder{core: c, store: store}
}

// Core returns the wrapped core.
func (r *Recorder) Core() *core.Core {
	return r.core
}

// ProcessEvent forwards to the core and journals the event on success.
func (r *Recorder) ProcessEvent(ctx context.Context, eventBytes []byte) ([]byte, error) {
	out, err := r.core.ProcessEvent(eventBytes)
	if err != nil {
		return nil, err
	}
	if err := r.store.Append(ctx, r.core.Session(), KindEvent, 0, eventBytes); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve forwards to the core and journals the resolution on success.
// Unknown-id no-ops are journaled too; replaying them hits the same no-op
// path and costs nothing.
func (r *Recorder) Resolve(ctx context.Context, id uint32, responseBytes []byte) ([]byte, error) {
	out, err := r.core.Resolve(id, responseBytes)
	if err != nil {
		return nil, err
	}
	if err := r.store.Append(ctx, r.core.Session(), KindResolve, id, responseBytes); err != nil {
		return nil, err
	}
	return out, nil
}

// View snapshots the core. Never journaled.
func (r *Recorder) View() ([]byte, error) {
	return r.core.View()
}
