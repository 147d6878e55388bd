package core

import "github.com/roach88/husk/internal/wire"

// App is the application contract: pure state-transition logic plus the
// codecs that give its events and views a wire form.
//
// Update must not perform I/O, block, or touch anything outside the model
// and the capability context. It is infallible from the engine's point of
// view: anything that can go wrong during an effect arrives later as
// response data, and anything wrong with an event is the app's to represent
// inside its model.
type App interface {
	// Init returns a fresh model. Called once at core construction. Apps
	// return a pointer so Update mutates the engine-owned instance.
	Init() any

	// Update applies one event or, via continuations it registers, one
	// response to the model. Effects are requested through cx.
	Update(model any, event any, cx *Context)

	// View derives the serializable projection of the model. Called on
	// demand, must not mutate the model, and must not use cx-style
	// capabilities (it has none to use).
	View(model any) any

	// DecodeEvent reads one event from r. The caller verifies r is fully
	// consumed afterwards, so decoders only read their own bytes.
	DecodeEvent(r *wire.Reader) (any, error)

	// EncodeView writes the view projection to w.
	EncodeView(w *wire.Writer, view any) error
}
