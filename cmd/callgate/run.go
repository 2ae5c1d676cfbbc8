package main

import (
	"os"

	"github.com/aretw0/callgate/internal/cli"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Play the call gate in the terminal",
	Long: `Runs the call gate in real time against the save. Calls are rendered in the terminal;
type help for the console commands (continue, hang up, open/close windows, browse, set flags).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()
		return cli.Run(sigCtx, cfg, os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
