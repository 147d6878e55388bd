package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/roach88/husk/internal/core"
	"github.com/roach88/husk/internal/counter"
	"github.com/roach88/husk/internal/journal"
	"github.com/roach88/husk/internal/shell"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	KVPath   string

	// Tokens overrides the session token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens core.TokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <step>...",
		Short: "Drive the counter app through the reference shell",
		Long: `Run a sequence of steps against the counter app, dispatching its effect
requests through the reference shell and journaling every boundary call.

Steps:
  increment             bump the counter
  fetch=URL             fetch a remote value over HTTP
  save                  persist the counter to the key-value store
  load                  restore the counter from the key-value store
  watch=TOPIC           subscribe to a pub-sub topic
  publish=TOPIC:PAYLOAD publish to a topic (drives watch subscriptions)
  complete=TOPIC        terminate a topic's subscriptions
  whoami                ask the shell for platform info
  view                  print the current view

Examples:
  husk run --db ./husk.db increment increment view
  husk run --db ./husk.db watch=ticks publish=ticks:go publish=ticks:go complete=ticks
  husk run --db ./husk.db fetch=https://example.com/answer --verbose`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSteps(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.KVPath, "kv", "", "path to SQLite key-value store (default: <db>.kv)")

	return cmd
}

// recordingResolver adapts a journaling recorder to the shell's resolver
// surface, serializing resolves so journal order matches admission order.
type recordingResolver struct {
	ctx context.Context
	rec *journal.Recorder
}

func (r *recordingResolver) Resolve(id uint32, responseBytes []byte) ([]byte, error) {
	return r.rec.Resolve(r.ctx, id, responseBytes)
}

func runSteps(opts *RunOptions, steps []string, cmd *cobra.Command) error {
	logLevel := slog.LevelWarn
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))

	store, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Error("closing journal", "error", closeErr)
		}
	}()

	kvPath := opts.KVPath
	if kvPath == "" {
		kvPath = opts.Database + ".kv"
	}
	kv, err := shell.OpenKV(kvPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open key-value store", err)
	}
	defer kv.Close()

	tokens := opts.Tokens
	if tokens == nil {
		tokens = core.UUIDv7Generator{}
	}
	c := core.New(counter.App{},
		core.WithLogger(log),
		core.WithTokenGenerator(tokens))
	defer c.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rec := journal.NewRecorder(c, store)
	disp := shell.NewDispatcher(&recordingResolver{ctx: ctx, rec: rec}, kv, log)

	var dirty atomic.Bool
	disp.OnRender = func() { dirty.Store(true) }

	out := cmd.OutOrStdout()
	for _, raw := range steps {
		if err := runStep(ctx, rec, disp, raw); err != nil {
			return err
		}
		disp.Wait()
		if raw == "view" || dirty.Swap(false) {
			if err := printView(out, opts.Format, rec, c.Session()); err != nil {
				return err
			}
		}
	}

	return printView(out, opts.Format, rec, c.Session())
}

func runStep(ctx context.Context, rec *journal.Recorder, disp *shell.Dispatcher, raw string) error {
	name, arg, _ := strings.Cut(raw, "=")

	var event counter.Event
	switch name {
	case "increment":
		event = counter.Increment{}
	case "fetch":
		if arg == "" {
			return NewExitError(ExitCommandError, "fetch needs a url: fetch=URL")
		}
		event = counter.Fetch{URL: arg}
	case "save":
		event = counter.Save{}
	case "load":
		event = counter.Load{}
	case "watch":
		if arg == "" {
			return NewExitError(ExitCommandError, "watch needs a topic: watch=TOPIC")
		}
		event = counter.Watch{Topic: arg}
	case "whoami":
		event = counter.WhoAmI{}
	case "publish":
		topic, payload, ok := strings.Cut(arg, ":")
		if !ok || topic == "" {
			return NewExitError(ExitCommandError, "publish needs publish=TOPIC:PAYLOAD")
		}
		disp.Broker().Publish(topic, []byte(payload))
		return nil
	case "complete":
		if arg == "" {
			return NewExitError(ExitCommandError, "complete needs a topic: complete=TOPIC")
		}
		disp.Broker().Complete(arg)
		return nil
	case "view":
		return nil
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown step %q", raw))
	}

	batch, err := rec.ProcessEvent(ctx, counter.EncodeEvent(event))
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("step %q", raw), err)
	}
	if err := disp.Dispatch(batch); err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("dispatch for %q", raw), err)
	}
	return nil
}

func printView(w io.Writer, format string, rec *journal.Recorder, session string) error {
	viewBytes, err := rec.View()
	if err != nil {
		return WrapExitError(ExitFailure, "view", err)
	}
	view, err := counter.DecodeView(viewBytes)
	if err != nil {
		return WrapExitError(ExitFailure, "decode view", err)
	}

	if format == "json" {
		return writeJSON(w, CLIResponse{
			Status: "ok",
			Data: map[string]any{
				"session":  session,
				"count":    view.Count,
				"remote":   view.Remote,
				"ticks":    view.Ticks,
				"platform": view.Platform,
			},
		})
	}

	fmt.Fprintln(w, renderView(view, session))
	return nil
}
