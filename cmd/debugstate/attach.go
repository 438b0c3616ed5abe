package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dshills/debugstate/internal/app"
	"github.com/dshills/debugstate/internal/integration/debug"
)

type attachFlags struct {
	sessionFlags
	mode   string
	remote bool
}

func newAttachCommand(global *globalFlags) *cobra.Command {
	flags := &attachFlags{}

	cmd := &cobra.Command{
		Use:   "attach <pid>",
		Short: "Attach the debug adapter to a running process.",
		Long: `Attach the debug adapter to a running process.

With --remote no pid is given; the adapter at adapter.address is asked to
attach to the process it is already serving (delve's headless mode).
Stops are printed and resumed the same way as with run.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := attachTarget(args, flags.remote)
			if err != nil {
				return err
			}
			return attachProcess(cmd.Context(), cmd, global, flags, pid)
		},
	}
	addSessionFlags(cmd, &flags.sessionFlags)
	cmd.Flags().StringVar(&flags.mode, "mode", "", "Attach mode sent to the adapter (default local, or remote with --remote).")
	cmd.Flags().BoolVar(&flags.remote, "remote", false, "Attach through an adapter already serving a process.")
	return cmd
}

func attachProcess(ctx context.Context, cmd *cobra.Command, global *globalFlags, flags *attachFlags, pid int) error {
	opts := debug.AttachOptions{ProcessID: pid}
	return runSession(ctx, cmd.OutOrStdout(), global, &flags.sessionFlags, "",
		func(ctx context.Context, application *app.Application, session *debug.Session) error {
			opts.Mode = attachMode(flags, application.LaunchMode())
			if err := session.Attach(ctx, opts); err != nil {
				return fmt.Errorf("attach: %w", err)
			}
			return nil
		})
}

// attachTarget parses the pid argument. Remote attach takes none.
func attachTarget(args []string, remote bool) (int, error) {
	if remote {
		if len(args) > 0 {
			return 0, errors.New("--remote does not take a pid")
		}
		return 0, nil
	}
	if len(args) == 0 {
		return 0, errors.New("a pid is required unless --remote is set")
	}
	pid, err := strconv.Atoi(args[0])
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", args[0])
	}
	return pid, nil
}

// attachMode picks the attach mode. Adapters without launch modes get none.
func attachMode(flags *attachFlags, launchMode string) string {
	switch {
	case flags.mode != "":
		return flags.mode
	case launchMode == "":
		return ""
	case flags.remote:
		return "remote"
	default:
		return "local"
	}
}
