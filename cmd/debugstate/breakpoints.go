package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/debugstate/internal/app"
	"github.com/dshills/debugstate/internal/integration/debug"
)

func newBreakpointsCommand(global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "breakpoints",
		Aliases: []string{"bp"},
		Short:   "Manage stored breakpoints.",
	}
	cmd.AddCommand(
		newBreakpointsListCommand(global),
		newBreakpointsAddCommand(global),
		newBreakpointsRemoveCommand(global),
		newBreakpointsToggleCommand(global),
		newBreakpointsEnableCommand(global, true),
		newBreakpointsEnableCommand(global, false),
		newBreakpointsClearCommand(global),
	)
	return cmd
}

func newBreakpointsListCommand(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list [file]",
		Short: "List breakpoints, optionally only those in one file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				path = abs
			}
			return withApp(cmd.Context(), global, func(a *app.Application) error {
				var all map[string][]debug.Breakpoint
				err := a.Do(cmd.Context(), func(c *debug.Coordinator) {
					if path == "" {
						all = c.AllBreakpoints()
						return
					}
					if bps := c.BreakpointsForFile(path); len(bps) > 0 {
						all = map[string][]debug.Breakpoint{path: bps}
					}
				})
				if err != nil {
					return err
				}
				writeBreakpoints(cmd.OutOrStdout(), all)
				return nil
			})
		},
	}
}

func newBreakpointsAddCommand(global *globalFlags) *cobra.Command {
	var opts debug.BreakpointOptions
	cmd := &cobra.Command{
		Use:   "add <file:line>",
		Short: "Add a breakpoint.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, line, err := parseLocation(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), global, func(a *app.Application) error {
				var bp debug.Breakpoint
				err := a.Do(cmd.Context(), func(c *debug.Coordinator) {
					bp = c.AddBreakpoint(path, line, opts)
				})
				if err != nil {
					return err
				}
				writeBreakpoint(cmd.OutOrStdout(), bp)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&opts.Condition, "condition", "", "Only stop when the expression is true.")
	cmd.Flags().StringVar(&opts.HitCondition, "hit", "", "Only stop when the hit count condition is met.")
	cmd.Flags().StringVar(&opts.LogMessage, "log", "", "Log this message instead of stopping.")
	return cmd
}

func newBreakpointsRemoveCommand(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <file:line>",
		Aliases: []string{"rm"},
		Short:   "Remove a breakpoint.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, line, err := parseLocation(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), global, func(a *app.Application) error {
				var found bool
				err := a.Do(cmd.Context(), func(c *debug.Coordinator) {
					if _, found = c.BreakpointAt(path, line); found {
						c.RemoveBreakpoint(path, line)
					}
				})
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no breakpoint at %s:%d", path, line)
				}
				return nil
			})
		},
	}
}

func newBreakpointsToggleCommand(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <file:line>",
		Short: "Add a breakpoint, or remove it if one exists.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, line, err := parseLocation(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), global, func(a *app.Application) error {
				var (
					bp    debug.Breakpoint
					added bool
				)
				err := a.Do(cmd.Context(), func(c *debug.Coordinator) {
					bp, added = c.ToggleBreakpoint(path, line)
				})
				if err != nil {
					return err
				}
				if added {
					writeBreakpoint(cmd.OutOrStdout(), bp)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s:%d\n", path, line)
				}
				return nil
			})
		},
	}
}

func newBreakpointsEnableCommand(global *globalFlags, enabled bool) *cobra.Command {
	use, short := "enable <file:line>", "Enable a breakpoint."
	if !enabled {
		use, short = "disable <file:line>", "Disable a breakpoint without removing it."
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, line, err := parseLocation(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), global, func(a *app.Application) error {
				var (
					bp    debug.Breakpoint
					found bool
				)
				err := a.Do(cmd.Context(), func(c *debug.Coordinator) {
					c.UpdateBreakpoint(path, line, debug.BreakpointUpdate{Enabled: &enabled})
					bp, found = c.BreakpointAt(path, line)
				})
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no breakpoint at %s:%d", path, line)
				}
				writeBreakpoint(cmd.OutOrStdout(), bp)
				return nil
			})
		},
	}
}

func newBreakpointsClearCommand(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [file]",
		Short: "Remove all breakpoints, or all breakpoints in one file.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return err
				}
				path = abs
			}
			return withApp(cmd.Context(), global, func(a *app.Application) error {
				return a.Do(cmd.Context(), func(c *debug.Coordinator) {
					if path == "" {
						c.ClearAllBreakpoints()
					} else {
						c.ClearBreakpoints(path)
					}
				})
			})
		},
	}
}
