package main

import (
	"context"
	"encoding/json"

	"github.com/aretw0/callgate/internal/cli"
	"github.com/aretw0/callgate/pkg/runner"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which stage conditions hold",
	Long: `Evaluates every stage against the save and lists each condition group.
With --server the live status of a running 'callgate serve' is shown, including the call in progress.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		server, _ := cmd.Flags().GetString("server")
		out := cmd.OutOrStdout()

		if server != "" {
			st, err := cli.NewRemote(server).Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			runner.WriteStatus(out, st)
			return nil
		}

		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			return cli.PrintStatus(ctx, app, out, asJSON)
		})
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().Bool("json", false, "Print JSON")
	statusCmd.Flags().String("server", "", "Base URL of a running callgate serve")
}
