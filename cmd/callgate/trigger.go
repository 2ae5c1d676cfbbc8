package main

import (
	"fmt"
	"strconv"

	"github.com/aretw0/callgate/internal/cli"
	"github.com/spf13/cobra"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <stage>",
	Short: "Ring a stage on a running server, regardless of its conditions",
	Long: `Asks a running 'callgate serve' to place the stage's call. The call still waits for
the desktop to go idle. A stage that is already ringing or in a call is rejected.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ordinal, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("stage must be a number: %w", err)
		}
		server, _ := cmd.Flags().GetString("server")
		if err := cli.NewRemote(server).Trigger(cmd.Context(), ordinal); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stage %d requested\n", ordinal)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(triggerCmd)
	triggerCmd.Flags().String("server", "http://localhost:8080", "Base URL of callgate serve")
}
