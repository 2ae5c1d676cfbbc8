package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/callgate"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of callgate",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "callgate version %s\n", strings.TrimSpace(callgate.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
