package main

import (
	"github.com/aretw0/callgate/internal/cli"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the Model Context Protocol (MCP) server",
	Long: `Runs the call gate in real time and exposes it as MCP tools, so an assistant can
read progress, set flags, ring stages and answer calls.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- sse: Uses Server-Sent Events over HTTP. Ideal for remote agents or debuggers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		sigCtx := cli.NewSignalContext(cmd.Context())
		defer sigCtx.Cancel()
		return cli.ServeMCP(sigCtx, cfg)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'sse'")
	mcpCmd.Flags().String("addr", ":8081", "Address to listen on (only for SSE)")
	cobra.CheckErr(settings.BindPFlag("mcp.transport", mcpCmd.Flags().Lookup("transport")))
	cobra.CheckErr(settings.BindPFlag("mcp.addr", mcpCmd.Flags().Lookup("addr")))
}
