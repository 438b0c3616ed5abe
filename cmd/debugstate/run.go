package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/debugstate/internal/app"
	"github.com/dshills/debugstate/internal/config"
	"github.com/dshills/debugstate/internal/integration/debug"
	"github.com/dshills/debugstate/internal/integration/debug/adapters"
)

// sessionFlags are shared by the commands that start a debug session.
type sessionFlags struct {
	breaks   []string
	watches  []string
	adapter  string
	maxStops int
}

func addSessionFlags(cmd *cobra.Command, flags *sessionFlags) {
	cmd.Flags().StringArrayVarP(&flags.breaks, "break", "b", nil, "Set a breakpoint at file:line (repeatable).")
	cmd.Flags().StringArrayVarP(&flags.watches, "watch", "w", nil, "Add a watch expression (repeatable).")
	cmd.Flags().StringVarP(&flags.adapter, "adapter", "a", "", "Adapter preset to start (go, python, lldb).")
	cmd.Flags().IntVar(&flags.maxStops, "max-stops", 0, "Disconnect after this many stops (0 means no limit).")
}

type runFlags struct {
	sessionFlags
	stopOnEntry bool
	cwd         string
}

func newRunCommand(global *globalFlags) *cobra.Command {
	flags := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run <program> [-- args...]",
		Short: "Launch a program under the debug adapter.",
		Long: `Launch a program under the configured debug adapter.

Stored breakpoints, plus any given with --break, are sent to the adapter
before the program starts. At every stop the location, call stack, local
variables and watch results are printed and the program is resumed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgram(cmd.Context(), cmd.OutOrStdout(), global, flags, args[0], args[1:])
		},
	}
	addSessionFlags(cmd, &flags.sessionFlags)
	cmd.Flags().BoolVar(&flags.stopOnEntry, "stop-on-entry", false, "Pause before the program runs any user code.")
	cmd.Flags().StringVar(&flags.cwd, "cwd", "", "Working directory of the program.")
	return cmd
}

func runProgram(ctx context.Context, out io.Writer, global *globalFlags, flags *runFlags, program string, args []string) error {
	return runSession(ctx, out, global, &flags.sessionFlags, program,
		func(ctx context.Context, application *app.Application, session *debug.Session) error {
			err := session.Launch(ctx, debug.LaunchOptions{
				Program:     program,
				Args:        args,
				Cwd:         flags.cwd,
				Mode:        application.LaunchMode(),
				StopOnEntry: flags.stopOnEntry,
			})
			if err != nil {
				return fmt.Errorf("launch %s: %w", program, err)
			}
			return nil
		})
}

// startFunc starts the debuggee on a new session.
type startFunc func(ctx context.Context, application *app.Application, session *debug.Session) error

// runSession starts a session with start and prints every stop until the
// debuggee ends, the stop limit is reached or ctx is interrupted.
func runSession(ctx context.Context, out io.Writer, global *globalFlags, flags *sessionFlags, program string, start startFunc) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := openApp(global)
	if err != nil {
		return err
	}
	defer application.Shutdown(context.Background())
	log := app.WithComponent(application.Logger(), "run")
	selectAdapter(application.Config(), flags.adapter, program)

	if err := addStartupState(ctx, application, flags); err != nil {
		return err
	}

	// Print console lines as the adapter reports them.
	var sub *debug.Subscription
	err = application.Do(ctx, func(c *debug.Coordinator) {
		sub = c.Subscribe(func(ch debug.Change) {
			if ch.Kind != debug.ChangeOutput {
				return
			}
			if entries := c.DebugOutput(); len(entries) > 0 {
				writeOutput(out, entries[len(entries)-1])
			}
		})
	})
	if err != nil {
		return err
	}
	defer application.Do(context.Background(), func(*debug.Coordinator) { sub.Unsubscribe() })

	paused := make(chan struct{}, 1)
	session, err := application.StartSession(ctx, debug.WithPauseHandler(func() {
		select {
		case paused <- struct{}{}:
		default:
		}
	}))
	if err != nil {
		return err
	}

	if err := start(ctx, application, session); err != nil {
		_ = application.EndSession(context.Background())
		return err
	}
	log.WithField("target", program).Debug("session started")

	stops := 0
	for {
		select {
		case <-paused:
			var snap pauseSnapshot
			if err := application.Do(ctx, func(c *debug.Coordinator) { snap = takePauseSnapshot(c) }); err != nil {
				return err
			}
			writePause(out, snap)

			stops++
			if flags.maxStops > 0 && stops >= flags.maxStops {
				fmt.Fprintf(out, "stop limit %d reached, disconnecting\n", flags.maxStops)
				return endRun(application, session)
			}
			if err := session.Continue(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Warn("continue")
			}

		case <-session.Terminated():
			return application.EndSession(context.Background())

		case <-ctx.Done():
			fmt.Fprintln(out, "interrupted, disconnecting")
			return endRun(application, session)
		}
	}
}

// selectAdapter applies --adapter, or picks a preset from the program's
// extension when the config names no explicit adapter.
func selectAdapter(cfg *config.Config, name, program string) {
	ac := &cfg.Adapter
	if name != "" {
		ac.ID = name
		ac.Command = nil
		ac.Address = ""
		return
	}
	if len(ac.Command) > 0 || ac.Address != "" {
		return
	}
	if p, ok := adapters.Detect(program); ok {
		ac.ID = p.Name
	}
}

// addStartupState applies the breakpoints and watches given on the
// command line before the session starts.
func addStartupState(ctx context.Context, application *app.Application, flags *sessionFlags) error {
	type loc struct {
		path string
		line int
	}
	locs := make([]loc, 0, len(flags.breaks))
	for _, b := range flags.breaks {
		path, line, err := parseLocation(b)
		if err != nil {
			return err
		}
		locs = append(locs, loc{path, line})
	}

	return application.Do(ctx, func(c *debug.Coordinator) {
		for _, l := range locs {
			c.AddBreakpoint(l.path, l.line, debug.BreakpointOptions{})
		}
		for _, w := range flags.watches {
			c.AddWatchExpression(w)
		}
	})
}

func endRun(application *app.Application, session *debug.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), application.Config().Debug.RequestTimeout.Duration)
	defer cancel()
	if err := session.Disconnect(ctx, true); err != nil {
		application.Logger().WithError(err).Debug("disconnect")
	}
	return application.EndSession(ctx)
}
