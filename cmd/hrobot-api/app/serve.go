package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stacklok/hospital-robot-server/internal/app"
	"github.com/stacklok/hospital-robot-server/internal/config"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the robot API server",
	Long: `Start the robot API server.

The configuration file (--config) is optional. Without one the server uses a
log-only actuator sink unless ROSBRIDGE_WS points at a rosbridge endpoint.
Settings can also be overridden with HROBOT_* environment variables.`,
	RunE: runServe,
}

const (
	defaultGracefulTimeout = 30 * time.Second
)

func init() {
	serveCmd.Flags().String("address", ":3001", "Address to listen on")
	serveCmd.Flags().String("config", "", "Path to configuration file (YAML format)")
	serveCmd.Flags().StringSlice("allowed-origins", nil,
		"Origins allowed to open the status WebSocket (default: any)")

	serveCmd.Flags().VisitAll(func(f *pflag.Flag) {
		if err := viper.BindPFlag(f.Name, f); err != nil {
			slog.Error("Failed to bind flag", "flag", f.Name, "error", err)
		}
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Viper resolves flag, then HROBOT_* env
	env := config.NewEnv()
	if err := env.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	var loadOpts []config.Option
	if path := env.GetString("config"); path != "" {
		loadOpts = append(loadOpts, config.WithConfigPath(path))
	}
	loadOpts = append(loadOpts, config.WithEnv(env))

	cfg, err := config.LoadConfig(loadOpts...)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Loaded configuration",
		"robot_id", cfg.Robot.ID,
		"sink", cfg.Sink.Type,
		"reversion_delay", cfg.Robot.ReversionDelay,
		"reversion_policy", cfg.Robot.ReversionPolicy,
	)

	robotApp, err := app.NewRobotApp(ctx,
		app.WithConfig(cfg),
		app.WithAddress(env.GetString("address")),
		app.WithAllowedOrigins(env.GetStringSlice("allowed-origins")...),
	)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- robotApp.Start()
	}()

	var startErr error
	select {
	case startErr = <-errCh:
	case <-ctx.Done():
	}

	stopErr := robotApp.Stop(defaultGracefulTimeout)
	if startErr == nil {
		// Start returns once Stop has drained the server
		startErr = <-errCh
	}

	return errors.Join(startErr, stopErr)
}
