package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aretw0/callgate/internal/cli"
	"github.com/aretw0/callgate/internal/config"
	"github.com/spf13/cobra"
)

// settings collects file, environment and flag configuration for every command.
var settings = config.New()

var rootCmd = &cobra.Command{
	Use:   "callgate",
	Short: "callgate decides when the bug calls ring and plays them",
	Long: `callgate watches the save for story progress, waits for a quiet desktop and then
plays the stage's branching phone call. The subcommands run it interactively, serve it
for tooling, and inspect or edit the save while writing.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default ./callgate.yaml when present)")
	flags.String("backend", "file", "Flag store backend: memory, file, redis or sqlite")
	flags.String("save", ".callgate/save.json", "Save file of the file backend")
	flags.String("slot", "default", "Save slot of the redis and sqlite backends")
	flags.String("graphs", "", "Directory of authored dialogue graphs")
	flags.String("graphs-format", "file", "Authored graph format: file (YAML/JSON) or loam (markdown)")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")

	for key, flag := range map[string]string{
		"backend":       "backend",
		"save.path":     "save",
		"slot":          "slot",
		"graphs.dir":    "graphs",
		"graphs.format": "graphs-format",
		"log.level":     "log-level",
	} {
		cobra.CheckErr(settings.BindPFlag(key, flags.Lookup(flag)))
	}
}

// loadConfig resolves the configuration once flags are parsed.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	return config.Load(settings, file)
}

// withApp builds an engine for a one-shot command and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	app, err := cli.Build(ctx, cfg, cli.NewLogger(cfg))
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}
