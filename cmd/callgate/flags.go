package main

import (
	"context"

	"github.com/aretw0/callgate/internal/cli"
	"github.com/spf13/cobra"
)

var flagsCmd = &cobra.Command{
	Use:   "flags",
	Short: "Inspect and edit the flags of the save",
}

var flagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every flag",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.ListFlags(ctx, app, cmd.OutOrStdout())
		})
	},
}

var flagsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.GetFlag(ctx, app, cmd.OutOrStdout(), args[0])
		})
	},
}

var flagsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Write one flag (true/false become booleans)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.SetFlag(ctx, app, args[0], args[1])
		})
	},
}

var flagsDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove one flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.DeleteFlag(ctx, app, args[0])
		})
	},
}

var flagsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear call completion and unlock flags so the calls ring again",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.ResetProgress(ctx, app)
		})
	},
}

func init() {
	flagsCmd.AddCommand(flagsListCmd, flagsGetCmd, flagsSetCmd, flagsDeleteCmd, flagsResetCmd)
	rootCmd.AddCommand(flagsCmd)
}
