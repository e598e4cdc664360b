package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/hospital-robot-server/internal/versions"
)

func TestPrintVersion(t *testing.T) {
	t.Parallel()

	t.Run("json", func(t *testing.T) {
		t.Parallel()
		cmd := &cobra.Command{}
		var out bytes.Buffer
		cmd.SetOut(&out)

		require.NoError(t, printVersion(cmd, formatJSON))

		var info versions.VersionInfo
		require.NoError(t, json.Unmarshal(out.Bytes(), &info))
		assert.Equal(t, versions.GetVersionInfo(), info)
	})

	t.Run("text", func(t *testing.T) {
		t.Parallel()
		cmd := &cobra.Command{}
		var out bytes.Buffer
		cmd.SetOut(&out)

		require.NoError(t, printVersion(cmd, ""))
		assert.Contains(t, out.String(), "hrobot-api "+versions.GetVersionInfo().Version)
	})
}

func TestServeFlags(t *testing.T) {
	t.Parallel()

	address := serveCmd.Flags().Lookup("address")
	require.NotNil(t, address)
	assert.Equal(t, ":3001", address.DefValue)

	require.NotNil(t, serveCmd.Flags().Lookup("config"))
	require.NotNil(t, serveCmd.Flags().Lookup("allowed-origins"))
}

func TestMoveCommand_RejectsFloorBelowOne(t *testing.T) {
	t.Parallel()

	cmd := &cobra.Command{RunE: moveCmd.RunE}
	cmd.Flags().AddFlagSet(moveCmd.Flags())
	require.NoError(t, cmd.Flags().Set("floor", "0"))

	err := cmd.RunE(cmd, nil)
	require.ErrorContains(t, err, "--floor must be >= 1")
}

func TestLogLevel(t *testing.T) {
	t.Setenv("HROBOT_LOG_LEVEL", "warn")

	assert.Equal(t, slog.LevelDebug, logLevel(true))
	assert.Equal(t, slog.LevelWarn, logLevel(false))
}

func TestConfigureLogging(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })
	t.Setenv("HROBOT_LOG_LEVEL", "info")

	configureLogging(true)
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))

	configureLogging(false)
	assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
	assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelInfo))
}
