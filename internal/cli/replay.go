package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/husk/internal/counter"
	"github.com/roach88/husk/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySessionResult holds the replay result for a single session.
type ReplaySessionResult struct {
	Session       string `json:"session"`
	Events        int    `json:"events"`
	Resolves      int    `json:"resolves"`
	Deterministic bool   `json:"deterministic"`

	Count    int64  `json:"count"`
	Ticks    int64  `json:"ticks"`
	Remote   string `json:"remote,omitempty"`
	Platform string `json:"platform,omitempty"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Sessions         []ReplaySessionResult `json:"sessions"`
	TotalSessions    int                   `json:"total_sessions"`
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay the journal and verify determinism",
		Long: `Replay journaled boundary calls into a fresh core and verify determinism.

Each session is replayed twice; matching view bytes across both replays
means update logic consulted nothing outside the journaled inputs.

Exit codes:
  0 - all sessions deterministic
  1 - determinism verification failed
  2 - command error (journal not found, etc.)

Examples:
  husk replay --db ./husk.db
  husk replay --db ./husk.db --session 0190rc3e-...
  husk replay --db ./husk.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay a specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

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
	defer store.Close()

	var sessions []string
	if opts.Session != "" {
		sessions = []string{opts.Session}
	} else {
		sessions, err = store.Sessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
	}

	if len(sessions) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(cmd, ReplayResult{
				Sessions:         []ReplaySessionResult{},
				AllDeterministic: true,
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in journal.")
		return nil
	}

	result := ReplayResult{
		Sessions:         make([]ReplaySessionResult, 0, len(sessions)),
		TotalSessions:    len(sessions),
		AllDeterministic: true,
	}

	for _, session := range sessions {
		sessionResult, err := replayAndVerifySession(ctx, store, session, log)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", session), err)
		}
		result.Sessions = append(result.Sessions, sessionResult)
		if !sessionResult.Deterministic {
			result.AllDeterministic = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result, opts.Verbose)
}

// replayAndVerifySession rebuilds one session and checks determinism.
func replayAndVerifySession(ctx context.Context, store *journal.Store, session string, log *slog.Logger) (ReplaySessionResult, error) {
	c, res, err := journal.Replay(ctx, store, counter.App{}, session, log)
	if err != nil {
		return ReplaySessionResult{}, err
	}
	c.Close()

	view, err := counter.DecodeView(res.View)
	if err != nil {
		return ReplaySessionResult{}, fmt.Errorf("decode replayed view: %w", err)
	}

	deterministic, err := journal.VerifyDeterministic(ctx, store, counter.App{}, session, log)
	if err != nil {
		return ReplaySessionResult{}, err
	}

	return ReplaySessionResult{
		Session:       session,
		Events:        res.Events,
		Resolves:      res.Resolves,
		Deterministic: deterministic,
		Count:         view.Count,
		Ticks:         view.Ticks,
		Remote:        view.Remote,
		Platform:      view.Platform,
	}, nil
}

func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := writeJSON(cmd.OutOrStdout(), response); err != nil {
		return err
	}
	if !result.AllDeterministic {
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d session(s)\n", result.TotalSessions)
	fmt.Fprintln(w)

	for _, s := range result.Sessions {
		status := "✓"
		if !s.Deterministic {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, s.Session)
		fmt.Fprintf(w, "  Calls: %d events, %d resolves\n", s.Events, s.Resolves)
		if verbose {
			fmt.Fprintf(w, "  Count: %d\n", s.Count)
			fmt.Fprintf(w, "  Ticks: %d\n", s.Ticks)
			if s.Remote != "" {
				fmt.Fprintf(w, "  Remote: %s\n", s.Remote)
			}
			if s.Platform != "" {
				fmt.Fprintf(w, "  Platform: %s\n", s.Platform)
			}
		}
		if !s.Deterministic {
			fmt.Fprintln(w, "  Warning: non-deterministic replay detected!")
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All sessions verified deterministic")
		return nil
	}
	fmt.Fprintln(w, "✗ Determinism verification failed")
	return NewExitError(ExitFailure, "determinism verification failed")
}
