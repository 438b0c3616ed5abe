// Command debugstate runs programs under a DAP debug adapter and manages
// the breakpoints and watch expressions it restores between sessions.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/debugstate/internal/app"
	"github.com/dshills/debugstate/internal/integration/debug/adapters"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	logLevel   string
}

func main() {
	os.Exit(run())
}

func run() int {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "debugstate",
		Short: "Debug session state coordinator for DAP debug adapters.",
		Long: `debugstate drives a Debug Adapter Protocol adapter (delve by default)
and keeps breakpoints and watch expressions across sessions.

Breakpoints and watches are stored in the configured state store and are
sent to the adapter each time a program is launched.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to the configuration file.")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error).")

	root.AddCommand(
		newRunCommand(flags),
		newAttachCommand(flags),
		newBreakpointsCommand(flags),
		newWatchCommand(flags),
		newAdaptersCommand(),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "debugstate %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

func newAdaptersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "adapters",
		Short: "List the built-in adapter presets.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range adapters.Names() {
				p, _ := adapters.Lookup(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%-8s %s  [%s]\n", p.Name, p.Description, strings.Join(p.Command, " "))
			}
		},
	}
}

// openApp creates the application for a subcommand.
func openApp(flags *globalFlags) (*app.Application, error) {
	application, err := app.New(app.Options{
		ConfigPath: flags.configPath,
		LogLevel:   flags.logLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return application, nil
}

// withApp opens the application, runs fn and shuts down, which also saves
// the state.
func withApp(ctx context.Context, flags *globalFlags, fn func(*app.Application) error) (err error) {
	application, err := openApp(flags)
	if err != nil {
		return err
	}
	defer func() {
		if serr := application.Shutdown(ctx); serr != nil && err == nil {
			err = fmt.Errorf("shutdown: %w", serr)
		}
	}()
	return fn(application)
}
