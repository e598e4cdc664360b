package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/stacklok/hospital-robot-server/internal/api/rest"
	"github.com/stacklok/hospital-robot-server/internal/httpclient"
	"github.com/stacklok/hospital-robot-server/internal/robot"
	"github.com/stacklok/hospital-robot-server/internal/versions"
)

const (
	defaultServerURL = "http://localhost:3001"

	formatJSON  = "json"
	formatTable = "table"
)

// robotClient talks to a running robot API server
type robotClient struct {
	http    httpclient.Client
	baseURL string
}

func newRobotClient(c httpclient.Client, baseURL string) *robotClient {
	return &robotClient{http: c, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *robotClient) status(ctx context.Context) (robot.StatusUpdate, error) {
	var update robot.StatusUpdate
	body, err := c.http.Get(ctx, c.baseURL+"/api/robot-status")
	if err != nil {
		return update, fmt.Errorf("failed to fetch robot status: %w", err)
	}
	if err := json.Unmarshal(body, &update); err != nil {
		return update, fmt.Errorf("failed to decode robot status: %w", err)
	}
	return update, nil
}

func (c *robotClient) robotID(ctx context.Context) (string, error) {
	body, err := c.http.Get(ctx, c.baseURL+"/api/robot-id")
	if err != nil {
		return "", fmt.Errorf("failed to fetch robot id: %w", err)
	}
	var resp rest.RobotIDResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode robot id: %w", err)
	}
	return resp.ID, nil
}

func (c *robotClient) version(ctx context.Context) (versions.VersionInfo, error) {
	var info versions.VersionInfo
	body, err := c.http.Get(ctx, c.baseURL+"/version")
	if err != nil {
		return info, fmt.Errorf("failed to fetch server version: %w", err)
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return info, fmt.Errorf("failed to decode server version: %w", err)
	}
	return info, nil
}

func (c *robotClient) move(ctx context.Context, req robot.MoveRequest) (rest.MoveResponse, error) {
	var resp rest.MoveResponse
	body, err := c.http.PostJSON(ctx, c.baseURL+"/api/robot-request", req)
	if err != nil {
		return resp, fmt.Errorf("move request failed: %w", err)
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return resp, fmt.Errorf("failed to decode move response: %w", err)
	}
	return resp, nil
}

// statusReport is what the status command prints
type statusReport struct {
	RobotID       string             `json:"robotId"`
	Status        robot.StatusUpdate `json:"robot"`
	ServerVersion string             `json:"serverVersion,omitempty"`
}

func fetchStatusReport(ctx context.Context, c *robotClient) (statusReport, error) {
	id, err := c.robotID(ctx)
	if err != nil {
		return statusReport{}, err
	}
	update, err := c.status(ctx)
	if err != nil {
		return statusReport{}, err
	}

	report := statusReport{RobotID: id, Status: update}
	// older servers may not expose /version
	if info, err := c.version(ctx); err == nil {
		report.ServerVersion = info.Version
	}
	return report, nil
}

func renderStatus(out io.Writer, report statusReport, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case formatTable, "":
	default:
		return fmt.Errorf("unsupported format %q (use %s or %s)", format, formatTable, formatJSON)
	}

	loc := report.Status.CurrentLocation
	table := tablewriter.NewWriter(out)
	table.Header("Robot", "Status", "Floor", "Room", "X", "Y", "Yaw")
	if err := table.Append([]string{
		report.RobotID,
		string(report.Status.Status),
		strconv.Itoa(loc.Floor),
		loc.Room,
		formatFloat(loc.X),
		formatFloat(loc.Y),
		formatFloat(loc.Yaw),
	}); err != nil {
		return fmt.Errorf("failed to render status: %w", err)
	}
	return table.Render()
}

// versionWarning returns a notice when the server runs a newer release than this CLI
func versionWarning(serverVersion, cliVersion string) string {
	if !versions.IsNewer(serverVersion, cliVersion) {
		return ""
	}
	return fmt.Sprintf("server version %s is newer than this CLI (%s); consider upgrading", serverVersion, cliVersion)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
