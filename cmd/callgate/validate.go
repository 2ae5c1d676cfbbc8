package main

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/callgate/internal/cli"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the dialogue graphs for consistency",
	Long: `Compiles every dialogue graph, built-in and authored, and every graph a stage names.
Reports duplicate ids, dangling next links, cycles, invalid fields and unreachable nodes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			out := cmd.OutOrStdout()
			if watch {
				sigCtx := cli.NewSignalContext(ctx)
				defer sigCtx.Cancel()
				return cli.WatchValidate(sigCtx, app, out, 200*time.Millisecond)
			}
			if err := cli.Validate(ctx, app, out); err != nil {
				return err
			}
			fmt.Fprintln(out, "All graphs are valid! ✅")
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().BoolP("watch", "w", false, "Validate again whenever an authored graph changes")
}
