// Package config loads the hospital robot server configuration from YAML
// with environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/stacklok/hospital-robot-server/internal/robot"
	"github.com/stacklok/hospital-robot-server/internal/telemetry"
)

// EnvPrefix is the prefix of every environment variable read by the server
const EnvPrefix = "HROBOT"

// RosbridgeURLEnv is honoured when no rosbridge URL is configured
const RosbridgeURLEnv = "ROSBRIDGE_WS"

const (
	// SinkTypeRosbridge publishes move requests to a rosbridge server
	SinkTypeRosbridge = "rosbridge"

	// SinkTypeLog only logs move requests
	SinkTypeLog = "log"
)

const (
	// DefaultRobotID is returned by the robot id endpoint
	DefaultRobotID = "HR-001"

	// DefaultReversionDelay is how long a move request keeps the robot busy
	DefaultReversionDelay = "20s"

	// PolicySupersede and PolicyOverlap are the accepted reversion policies
	PolicySupersede = "supersede"
	PolicyOverlap   = "overlap"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

type loaderConfig struct {
	path string
	env  *viper.Viper
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// EvalSymlinks also cleans the path
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// WithEnv reads overrides from v instead of the process environment
func WithEnv(v *viper.Viper) Option {
	return func(cfg *loaderConfig) error {
		cfg.env = v
		return nil
	}
}

// NewEnv returns a viper instance reading HROBOT_* variables, e.g.
// robot.reversion-delay is read from HROBOT_ROBOT_REVERSION_DELAY
func NewEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// Config represents the root configuration structure
type Config struct {
	Robot     RobotConfig       `yaml:"robot"`
	Observers ObserversConfig   `yaml:"observers"`
	Sink      SinkConfig        `yaml:"sink"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// RobotConfig controls the status coordinator
type RobotConfig struct {
	// ID is the robot identifier. Defaults to "HR-001".
	ID string `yaml:"id,omitempty"`

	// ReversionDelay is a Go duration string. Defaults to "20s".
	ReversionDelay string `yaml:"reversionDelay,omitempty"`

	// ReversionPolicy is "supersede" (default) or "overlap"
	ReversionPolicy string `yaml:"reversionPolicy,omitempty"`

	// StrictValidation rejects move requests with missing or non-numeric
	// fields. When false they are read as zero. Defaults to true.
	StrictValidation *bool `yaml:"strictValidation,omitempty"`

	// InitialLocation is reported before the first move request
	InitialLocation *robot.Location `yaml:"initialLocation,omitempty"`
}

// ObserversConfig controls push delivery
type ObserversConfig struct {
	// QueueSize bounds undelivered updates per observer. Defaults to 16.
	QueueSize int `yaml:"queueSize,omitempty"`
}

// SinkConfig selects where move requests are delivered
type SinkConfig struct {
	// Type is "rosbridge" or "log". Defaults to rosbridge when a URL is known.
	Type      string           `yaml:"type,omitempty"`
	Rosbridge *RosbridgeConfig `yaml:"rosbridge,omitempty"`
}

// RosbridgeConfig describes the rosbridge WebSocket endpoint
type RosbridgeConfig struct {
	URL         string `yaml:"url,omitempty"`
	Topic       string `yaml:"topic,omitempty"`
	MessageType string `yaml:"messageType,omitempty"`
	QueueSize   int    `yaml:"queueSize,omitempty"`
}

// LoadConfig builds the configuration from an optional YAML file, then the
// environment, then defaults, and validates the result
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}
	if loaderCfg.env == nil {
		loaderCfg.env = NewEnv()
	}

	var config Config
	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	config.applyEnv(loaderCfg.env)
	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnv(v *viper.Viper) {
	override := func(key string, dst *string) {
		if value := v.GetString(key); value != "" {
			*dst = value
		}
	}

	override("robot.id", &c.Robot.ID)
	override("robot.reversion-delay", &c.Robot.ReversionDelay)
	override("robot.reversion-policy", &c.Robot.ReversionPolicy)
	override("sink.type", &c.Sink.Type)

	if v.IsSet("robot.strict-validation") {
		strict := v.GetBool("robot.strict-validation")
		c.Robot.StrictValidation = &strict
	}

	rosbridgeURL := v.GetString("sink.rosbridge.url")
	if rosbridgeURL == "" && (c.Sink.Rosbridge == nil || c.Sink.Rosbridge.URL == "") {
		rosbridgeURL = os.Getenv(RosbridgeURLEnv)
	}
	if rosbridgeURL != "" {
		if c.Sink.Rosbridge == nil {
			c.Sink.Rosbridge = &RosbridgeConfig{}
		}
		c.Sink.Rosbridge.URL = rosbridgeURL
	}
}

func (c *Config) applyDefaults() {
	if c.Robot.ID == "" {
		c.Robot.ID = DefaultRobotID
	}
	if c.Robot.ReversionDelay == "" {
		c.Robot.ReversionDelay = DefaultReversionDelay
	}
	if c.Robot.ReversionPolicy == "" {
		c.Robot.ReversionPolicy = PolicySupersede
	}
	if c.Sink.Type == "" {
		c.Sink.Type = SinkTypeLog
		if c.Sink.Rosbridge != nil && c.Sink.Rosbridge.URL != "" {
			c.Sink.Type = SinkTypeRosbridge
		}
	}
}

// GetReversionDelay returns the parsed reversion delay
func (r *RobotConfig) GetReversionDelay() time.Duration {
	d, err := time.ParseDuration(r.ReversionDelay)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultReversionDelay)
	}
	return d
}

// IsStrictValidation reports whether malformed move requests are rejected
func (r *RobotConfig) IsStrictValidation() bool {
	return r.StrictValidation == nil || *r.StrictValidation
}

// GetInitialLocation returns the configured start location or the default lobby
func (r *RobotConfig) GetInitialLocation() robot.Location {
	if r.InitialLocation == nil {
		return robot.InitialLocation()
	}
	loc := *r.InitialLocation
	if strings.TrimSpace(loc.Room) == "" {
		loc.Room = robot.DefaultRoom
	}
	return loc
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if err := validateRobotConfig(&c.Robot); err != nil {
		errs = append(errs, err)
	}

	if c.Observers.QueueSize < 0 {
		errs = append(errs, fmt.Errorf("observers.queueSize must not be negative"))
	}

	if err := validateSinkConfig(&c.Sink); err != nil {
		errs = append(errs, err)
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func validateRobotConfig(r *RobotConfig) error {
	d, err := time.ParseDuration(r.ReversionDelay)
	if err != nil {
		return fmt.Errorf("robot.reversionDelay: invalid duration '%s': %w", r.ReversionDelay, err)
	}
	if d <= 0 {
		return fmt.Errorf("robot.reversionDelay must be positive")
	}

	switch r.ReversionPolicy {
	case PolicySupersede, PolicyOverlap:
	default:
		return fmt.Errorf("robot.reversionPolicy must be '%s' or '%s', got '%s'",
			PolicySupersede, PolicyOverlap, r.ReversionPolicy)
	}

	if r.InitialLocation != nil && r.InitialLocation.Floor < 1 {
		return fmt.Errorf("robot.initialLocation.floor must be >= 1")
	}

	return nil
}

func validateSinkConfig(s *SinkConfig) error {
	switch s.Type {
	case SinkTypeLog:
		return nil
	case SinkTypeRosbridge:
	default:
		return fmt.Errorf("sink.type must be '%s' or '%s', got '%s'", SinkTypeRosbridge, SinkTypeLog, s.Type)
	}

	if s.Rosbridge == nil || s.Rosbridge.URL == "" {
		return fmt.Errorf("sink.rosbridge.url is required for the rosbridge sink (or set %s)", RosbridgeURLEnv)
	}

	u, err := url.Parse(s.Rosbridge.URL)
	if err != nil {
		return fmt.Errorf("sink.rosbridge.url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("sink.rosbridge.url must use ws or wss, got '%s'", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("sink.rosbridge.url must include a host")
	}

	if s.Rosbridge.QueueSize < 0 {
		return fmt.Errorf("sink.rosbridge.queueSize must not be negative")
	}

	return nil
}
