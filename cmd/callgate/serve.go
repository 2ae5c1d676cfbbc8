package main

import (
	"github.com/aretw0/callgate/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the call gate headless behind the debug HTTP API",
	Long: `Runs the call gate in real time without a call surface and exposes status, flags,
stage triggers, player signals, graphs and Prometheus metrics over HTTP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()
		return cli.Serve(sigCtx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().Bool("metrics", true, "Expose /metrics")
	cobra.CheckErr(settings.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr")))
	cobra.CheckErr(settings.BindPFlag("http.metrics", serveCmd.Flags().Lookup("metrics")))
}
