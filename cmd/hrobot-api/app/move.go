package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/hospital-robot-server/internal/httpclient"
	"github.com/stacklok/hospital-robot-server/internal/robot"
)

var moveCmd = &cobra.Command{
	Use:   "move",
	Short: "Send the robot to a location",
	Example: `  hrobot-api move --floor 2 --x 1.5 --y -3 --yaw 90 --room pharmacy`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		server, _ := flags.GetString("server")
		floor, _ := flags.GetInt("floor")
		x, _ := flags.GetFloat64("x")
		y, _ := flags.GetFloat64("y")
		yaw, _ := flags.GetFloat64("yaw")
		room, _ := flags.GetString("room")

		if floor < 1 {
			return fmt.Errorf("--floor must be >= 1")
		}

		client := newRobotClient(httpclient.NewDefaultClient(0), server)
		resp, err := client.move(cmd.Context(), robot.MoveRequest{X: x, Y: y, Floor: floor, Yaw: yaw, Room: room})
		if err != nil {
			return err
		}

		if resp.SinkError != "" {
			slog.Warn("Move accepted but not delivered to the robot", "error", resp.SinkError)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Move accepted: floor %d room %q (%s, %s, yaw %s)\n",
			floor, room, formatFloat(x), formatFloat(y), formatFloat(yaw))
		return nil
	},
}

func init() {
	moveCmd.Flags().String("server", defaultServerURL, "Base URL of the robot API server")
	moveCmd.Flags().Int("floor", 1, "Target floor (>= 1)")
	moveCmd.Flags().Float64("x", 0, "Target x coordinate")
	moveCmd.Flags().Float64("y", 0, "Target y coordinate")
	moveCmd.Flags().Float64("yaw", 0, "Target heading in degrees")
	moveCmd.Flags().String("room", "", "Target room name")
}
