package harness

import (
	"fmt"

	"github.com/roach88/husk/internal/core"
	"github.com/roach88/husk/internal/effect"
)

// Fixture binds a scenario to a concrete application: the app under test
// plus the codec knowledge the harness lacks.
type Fixture struct {
	// App is instantiated fresh per scenario run.
	App core.App

	// MakeEvent turns a scenario event step into wire bytes.
	MakeEvent func(name string, args map[string]any) ([]byte, error)

	// DescribeView turns view bytes into a canonical-JSON-compatible map
	// for the trace.
	DescribeView func(view []byte) (map[string]any, error)
}

// Result is one scenario execution: the trace plus the last view snapshot
// taken (nil if the scenario never snapshots).
type Result struct {
	Trace    []map[string]any
	LastView []byte
}

// Run executes scenario against a fresh core for fixture.
func Run(fixture Fixture, scenario *Scenario) (*Result, error) {
	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	c := core.New(fixture.App,
		core.WithTokenGenerator(core.NewFixedGenerator(scenario.session())))
	defer c.Close()

	result := &Result{}
	for i, step := range scenario.Steps {
		entry, err := runStep(c, fixture, step, result)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		result.Trace = append(result.Trace, entry)
	}
	return result, nil
}

func runStep(c *core.Core, fixture Fixture, step Step, result *Result) (map[string]any, error) {
	switch {
	case step.Event != nil:
		eventBytes, err := fixture.MakeEvent(step.Event.Name, step.Event.Args)
		if err != nil {
			return nil, fmt.Errorf("make event %q: %w", step.Event.Name, err)
		}
		out, err := c.ProcessEvent(eventBytes)
		if err != nil {
			return nil, fmt.Errorf("process event %q: %w", step.Event.Name, err)
		}
		reqs, err := traceRequests(out)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"type":     "event",
			"name":     step.Event.Name,
			"requests": reqs,
		}, nil

	case step.Resolve != nil:
		res, err := buildResponse(step.Resolve)
		if err != nil {
			return nil, err
		}
		out, err := c.Resolve(step.Resolve.Request, effect.EncodeResponse(res))
		if err != nil {
			return nil, fmt.Errorf("resolve %d: %w", step.Resolve.Request, err)
		}
		reqs, err := traceRequests(out)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"type":     "resolve",
			"request":  step.Resolve.Request,
			"requests": reqs,
		}, nil

	default: // view
		view, err := c.View()
		if err != nil {
			return nil, fmt.Errorf("view: %w", err)
		}
		result.LastView = view
		described, err := fixture.DescribeView(view)
		if err != nil {
			return nil, fmt.Errorf("describe view: %w", err)
		}
		return map[string]any{
			"type": "view",
			"view": described,
		}, nil
	}
}

// traceRequests reduces an encoded batch to its observable shape: ids and
// kinds, in emission order.
func traceRequests(batch []byte) ([]any, error) {
	reqs, err := effect.DecodeRequests(batch)
	if err != nil {
		return nil, fmt.Errorf("decode emitted requests: %w", err)
	}
	out := make([]any, len(reqs))
	for i, req := range reqs {
		out[i] = map[string]any{
			"id":   req.ID,
			"kind": req.Operation.Kind.String(),
		}
	}
	return out, nil
}

func buildResponse(step *ResolveStep) (effect.Response, error) {
	res := effect.Response{Done: true, Err: step.Error}
	if step.Done != nil {
		res.Done = *step.Done
	}

	switch step.Kind {
	case "http":
		res.Kind = effect.KindHTTP
		if step.Error == "" {
			res.HTTP = &effect.HTTPResponse{
				Status: uint16(step.Status),
				Body:   []byte(step.Body),
			}
		}
	case "timer":
		res.Kind = effect.KindTimer
		res.Timer = step.Error == ""
	case "keyvalue":
		res.Kind = effect.KindKeyValue
		if step.Error == "" {
			found := true
			if step.Found != nil {
				found = *step.Found
			}
			res.KV = &effect.KVResult{Found: found, Value: []byte(step.Value)}
		}
	case "pubsub":
		res.Kind = effect.KindPubSub
		if step.Error == "" {
			res.PubSub = &effect.PubSubMessage{Payload: []byte(step.Payload)}
		}
	case "platform":
		res.Kind = effect.KindPlatform
		if step.Error == "" {
			res.Platform = &effect.PlatformInfo{OS: step.OS, Arch: step.Arch, Version: step.Version}
		}
	default:
		return effect.Response{}, fmt.Errorf("unknown response kind %q", step.Kind)
	}
	return res, nil
}
