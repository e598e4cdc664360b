package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/hospital-robot-server/internal/httpclient"
	"github.com/stacklok/hospital-robot-server/internal/versions"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the robot status reported by a running server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		server, err := cmd.Flags().GetString("server")
		if err != nil {
			return err
		}
		format, err := cmd.Flags().GetString("format")
		if err != nil {
			return err
		}

		client := newRobotClient(httpclient.NewDefaultClient(0), server)
		report, err := fetchStatusReport(cmd.Context(), client)
		if err != nil {
			return err
		}

		if warning := versionWarning(report.ServerVersion, versions.GetVersionInfo().Version); warning != "" {
			slog.Warn(warning)
		}

		if err := renderStatus(cmd.OutOrStdout(), report, format); err != nil {
			return fmt.Errorf("failed to print status: %w", err)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("server", defaultServerURL, "Base URL of the robot API server")
	statusCmd.Flags().String("format", formatTable, "Output format (table|json)")
}
