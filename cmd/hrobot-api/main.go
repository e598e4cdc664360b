// Package main is the entry point for the hospital robot API server.
package main

import (
	"log/slog"
	"os"

	"github.com/stacklok/hospital-robot-server/cmd/hrobot-api/app"
	"github.com/stacklok/hospital-robot-server/internal/logging"
)

func main() {
	// Logs go to stderr so stdout stays clean for commands that output data
	slog.SetDefault(logging.New(logging.WithLevel(logging.LevelFromEnv())))

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
