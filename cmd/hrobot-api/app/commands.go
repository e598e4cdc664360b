// Package app provides the entry point for the hospital robot API application.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/hospital-robot-server/internal/logging"
	"github.com/stacklok/hospital-robot-server/internal/versions"
)

var rootCmd = &cobra.Command{
	Use:               "hrobot-api",
	DisableAutoGenTag: true,
	Short:             "Hospital robot API server",
	Long: `Hospital robot API server accepts move requests for a delivery robot, forwards
them to rosbridge and pushes the robot status to connected dashboards.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		configureLogging(viper.GetBool("debug"))
	},
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			slog.Error("Error displaying help", "error", err)
		}
	},
}

// NewRootCmd creates a new root command for the robot API.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		slog.Error("Error binding debug flag", "error", err)
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(moveCmd)

	return rootCmd
}

// logLevel returns the level for the default logger. --debug overrides
// HROBOT_LOG_LEVEL and LOG_LEVEL.
func logLevel(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return logging.LevelFromEnv()
}

func configureLogging(debug bool) {
	slog.SetDefault(logging.New(logging.WithLevel(logLevel(debug))))
	if debug {
		slog.Debug("Debug logging enabled")
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, _ []string) error {
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return fmt.Errorf("error retrieving format flag: %w", err)
		}
		return printVersion(cmd, format)
	},
}

func printVersion(cmd *cobra.Command, format string) error {
	info := versions.GetVersionInfo()

	if format == formatJSON {
		output, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			return fmt.Errorf("error formatting version info as JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(output))
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "hrobot-api %s (commit %s, built %s, %s, %s)\n",
		info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
	return nil
}

func init() {
	versionCmd.Flags().String("format", "", "Output format (json)")
}
