package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"pricelake/lib/configutil"
	"pricelake/lib/configutil/sqlite"
	"pricelake/lib/telemetry"

	"github.com/spf13/cobra"
)

// Config carries the values an operator would rather not retype per run,
// notably the session-scoped api identifiers copied out of a browser.
type Config struct {
	ApiHost string             `json:"api_host"`
	ApiRoot string             `json:"api_root"`
	Catalog configsqlite.Struct `json:"catalog"`
	// politeness delay bounds in milliseconds, defaults match the webapp's
	// observed request cadence
	MinDelayMs int `json:"min_delay_ms"`
	MaxDelayMs int `json:"max_delay_ms"`
}

var verbose *bool
var configPath *string

var rootCmd = &cobra.Command{
	Use:   "pricelake",
	Short: "pricelake pulls down raw grocery price data for later analysis.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)

		tel, err := telemetry.SetupFromEnv(cmd.Context(), "pricelake")
		if err == nil {
			activeTelemetry = &tel
			telemetry.InstrumentPerfStats(cmd.Context())
		} else if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintln(os.Stderr, "telemetry setup failed:", err)
			os.Exit(1)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if activeTelemetry != nil {
			_ = activeTelemetry.Shutdown(context.Background())
		}
	},
}

var activeTelemetry *telemetry.Telemetry

func init() {
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging and raw http dumps.")
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "Path to the config file.")
}

// readConfig loads the json5 config, treating a missing file as an empty
// config since every value can also arrive via flags.
func readConfig() (Config, error) {
	cfg, err := configutil.ReadConfig[Config](*configPath)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	return cfg, err
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
