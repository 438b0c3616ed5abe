package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/debugstate/internal/app"
	"github.com/dshills/debugstate/internal/integration/debug"
)

func newWatchCommand(global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage stored watch expressions.",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List watch expressions.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), global, func(a *app.Application) error {
				var exprs []string
				if err := a.Do(cmd.Context(), func(c *debug.Coordinator) { exprs = c.WatchExpressions() }); err != nil {
					return err
				}
				if len(exprs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "no watch expressions")
				}
				for _, e := range exprs {
					fmt.Fprintln(cmd.OutOrStdout(), e)
				}
				return nil
			})
		},
	}

	add := &cobra.Command{
		Use:   "add <expression>",
		Short: "Add a watch expression.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), global, func(a *app.Application) error {
				var added bool
				if err := a.Do(cmd.Context(), func(c *debug.Coordinator) { added = c.AddWatchExpression(args[0]) }); err != nil {
					return err
				}
				if !added {
					fmt.Fprintf(cmd.OutOrStdout(), "%q is already watched\n", args[0])
				}
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:     "remove <expression>",
		Aliases: []string{"rm"},
		Short:   "Remove a watch expression.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), global, func(a *app.Application) error {
				return a.Do(cmd.Context(), func(c *debug.Coordinator) { c.RemoveWatchExpression(args[0]) })
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
