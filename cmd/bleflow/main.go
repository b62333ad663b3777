// bleflow sets up Bluetooth sensors through discovery-driven configuration
// flows.
//
// Gateways publish BLE advertisements over MQTT; bleflow keeps a cache of
// what is in range, starts a confirmation flow for every supported device
// and persists the resulting config entries in SQLite. Operators drive the
// flows through the REST/WebSocket API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// defaultConfigPath is used when neither --config nor BLEFLOW_CONFIG is set.
const defaultConfigPath = "configs/config.yaml"

// App holds the CLI application state.
type App struct {
	cfgFile string
	rootCmd *cobra.Command
}

// NewApp creates the CLI with all subcommands.
func NewApp() *App {
	app := &App{}
	app.rootCmd = app.buildRootCmd()
	app.rootCmd.PersistentFlags().StringVar(&app.cfgFile, "config", "",
		"config file (default: $BLEFLOW_CONFIG or "+defaultConfigPath+")")
	app.rootCmd.AddCommand(
		app.buildServeCmd(),
		app.buildConfigCmd(),
		app.buildEntriesCmd(),
		app.buildHashPasswordCmd(),
		app.buildVersionCmd(),
	)
	return app
}

func (a *App) buildRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bleflow",
		Short: "Discovery-driven setup of Bluetooth sensors",
		Long: `bleflow ingests BLE advertisements from MQTT gateways, offers every
supported device for setup through a configuration flow and stores the
resulting config entries.

Running bleflow without a subcommand is the same as "bleflow serve".`,
		SilenceUsage: true,
		RunE:         a.runServe,
	}
}

func (a *App) buildVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bleflow %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// configPath returns the configuration file path: the --config flag, then
// BLEFLOW_CONFIG, then the default.
func (a *App) configPath() string {
	if a.cfgFile != "" {
		return a.cfgFile
	}
	if path := os.Getenv("BLEFLOW_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// Execute runs the CLI application.
func (a *App) Execute() error {
	return a.rootCmd.Execute()
}

func main() {
	if err := NewApp().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
