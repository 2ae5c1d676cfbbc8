package main

import (
	"context"
	"fmt"

	"github.com/aretw0/callgate/internal/cli"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [id]",
	Short: "Export a dialogue graph",
	Long: `Outputs a dialogue graph as a Mermaid diagram (graph TD), or as an authoring document
in YAML or JSON that can be edited and placed in the graphs directory. Without an id the
known graph ids are listed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return withApp(cmd, func(ctx context.Context, app *cli.App) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				ids, err := app.Engine.Loader().ListGraphs(ctx)
				if err != nil {
					return err
				}
				for _, id := range ids {
					fmt.Fprintln(out, id)
				}
				return nil
			}
			return cli.ExportGraph(ctx, app, out, args[0], format)
		})
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringP("format", "f", "mermaid", "Output format: mermaid, yaml or json")
}
