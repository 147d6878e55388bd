// Package counter is the reference application: a counter whose update
// logic exercises every capability the engine offers. It is what the CLI
// runs and what the conformance harness drives.
package counter

import (
	"strconv"

	"github.com/roach88/husk/internal/core"
)

const storageKey = "counter/value"

// Model is the application state. Owned by the core; mutated only in Update.
type Model struct {
	Count    int64
	Remote   string
	Ticks    int64
	Watching bool
	Platform string
	LastErr  string
}

// ViewModel is the serializable projection of Model.
type ViewModel struct {
	Count    int64
	Remote   string
	Ticks    int64
	Platform string
}

// Event is the closed set of stimuli the counter app accepts.
type Event interface{ isEvent() }

// Increment bumps the counter. Purely synchronous: emits no requests.
type Increment struct{}

// Fetch asks the shell for a remote value over HTTP and stores the response
// body in Model.Remote.
type Fetch struct{ URL string }

// Save persists the current count through the key-value capability.
type Save struct{}

// Load restores the count from the key-value capability.
type Load struct{}

// Watch subscribes to a topic; each delivery bumps Model.Ticks until the
// stream terminates.
type Watch struct{ Topic string }

// WhoAmI asks the shell for platform information.
type WhoAmI struct{}

func (Increment) isEvent() {}
func (Fetch) isEvent()     {}
func (Save) isEvent()      {}
func (Load) isEvent()      {}
func (Watch) isEvent()     {}
func (WhoAmI) isEvent()    {}

// App implements core.App for the counter.
type App struct{}

// Init returns a zeroed model.
func (App) Init() any { return &Model{} }

// Update applies one event, requesting effects as needed.
func (App) Update(model any, event any, cx *core.Context) {
	m := model.(*Model)
	switch ev := event.(type) {
	case Increment:
		m.Count++

	case Fetch:
		cx.HTTP().Get(ev.URL, func(model any, out core.HTTPOutcome) {
			m := model.(*Model)
			if out.Err != "" {
				m.LastErr = out.Err
				return
			}
			m.Remote = string(out.Response.Body)
			cx.Render()
		})

	case Save:
		value := []byte(strconv.FormatInt(m.Count, 10))
		cx.KV().Set(storageKey, value, func(model any, out core.KVOutcome) {
			if out.Err != "" {
				model.(*Model).LastErr = out.Err
			}
		})

	case Load:
		cx.KV().Get(storageKey, func(model any, out core.KVOutcome) {
			m := model.(*Model)
			if out.Err != "" {
				m.LastErr = out.Err
				return
			}
			if !out.Found {
				return
			}
			n, err := strconv.ParseInt(string(out.Value), 10, 64)
			if err != nil {
				m.LastErr = "corrupt saved counter: " + err.Error()
				return
			}
			m.Count = n
			cx.Render()
		})

	case Watch:
		m.Watching = true
		cx.PubSub().Subscribe(ev.Topic, func(model any, sev core.StreamEvent) {
			m := model.(*Model)
			if sev.Err != "" {
				m.LastErr = sev.Err
			}
			if sev.Done {
				m.Watching = false
				return
			}
			m.Ticks++
			cx.Render()
		})

	case WhoAmI:
		cx.Platform().Info(func(model any, out core.PlatformOutcome) {
			m := model.(*Model)
			if out.Err != "" {
				m.LastErr = out.Err
				return
			}
			m.Platform = out.Info.OS + "/" + out.Info.Arch
		})
	}
}

// View projects the model. Recomputed on every call; nothing is cached.
func (App) View(model any) any {
	m := model.(*Model)
	return ViewModel{
		Count:    m.Count,
		Remote:   m.Remote,
		Ticks:    m.Ticks,
		Platform: m.Platform,
	}
}
