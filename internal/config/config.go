package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Jenkins  JenkinsConfig  `yaml:"jenkins"`
	Trigger  TriggerConfig  `yaml:"trigger"`
	API      APIConfig      `yaml:"api"`
}

// ServerConfig represents the gateway HTTP server configuration
type ServerConfig struct {
	Port           int      `yaml:"port"`
	Host           string   `yaml:"host"`
	AllowedOrigins []string `yaml:"allowed_origins"` // Empty slice means allow all origins
	MaxBodySize    int64    `yaml:"max_body_size"`   // Maximum request body size in bytes (default: 1MB)
}

// DatabaseConfig represents the trigger-record store configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// JenkinsConfig represents the Jenkins connection configuration
type JenkinsConfig struct {
	URL          string `yaml:"url"`
	Username     string `yaml:"username"` // Jenkins username (optional, defaults to token if not provided)
	Token        string `yaml:"token"`
	CrumbEnabled bool   `yaml:"crumb_enabled"` // Whether CSRF protection (crumb issuer) is enabled on the server
	Timeout      int    `yaml:"timeout"`       // Request timeout in seconds (default: 30)
}

// TriggerConfig represents the trigger-and-poll cadence configuration
type TriggerConfig struct {
	FirstCheckDelay time.Duration `yaml:"first_check_delay"` // Grace period before the first queue check (default: 5s)
	PollPeriod      time.Duration `yaml:"poll_period"`       // Cadence of subsequent queue checks (default: 1s)
	BuildTimeout    time.Duration `yaml:"build_timeout"`     // Default wait for a build to leave the queue (default: 60s)
}

// UnmarshalYAML parses the cadence fields from duration strings ("500ms",
// "2s"), which yaml does not decode into time.Duration on its own.
func (t *TriggerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		FirstCheckDelay string `yaml:"first_check_delay"`
		PollPeriod      string `yaml:"poll_period"`
		BuildTimeout    string `yaml:"build_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"trigger.first_check_delay", raw.FirstCheckDelay, &t.FirstCheckDelay},
		{"trigger.poll_period", raw.PollPeriod, &t.PollPeriod},
		{"trigger.build_timeout", raw.BuildTimeout, &t.BuildTimeout},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %q", f.name, f.raw)
		}
		*f.dst = d
	}
	return nil
}

// APIConfig represents the gateway API configuration
type APIConfig struct {
	Keys []string `yaml:"keys"`
}

// Load loads the configuration from the given file path
func Load(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // Trusted file path input
	if err != nil {
		return nil, err
	}

	config := &Config{}
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, err
	}

	applyEnvVars(config)
	setDefaults(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvVars applies environment variables to the configuration
func applyEnvVars(config *Config) {
	// Server configuration
	if port := os.Getenv("BUILDFLOW_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("BUILDFLOW_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Database configuration
	if path := os.Getenv("BUILDFLOW_DATABASE_PATH"); path != "" {
		config.Database.Path = path
	}

	// Jenkins configuration
	if url := os.Getenv("BUILDFLOW_JENKINS_URL"); url != "" {
		config.Jenkins.URL = url
	}
	if username := os.Getenv("BUILDFLOW_JENKINS_USERNAME"); username != "" {
		config.Jenkins.Username = username
	}
	if token := os.Getenv("BUILDFLOW_JENKINS_TOKEN"); token != "" {
		config.Jenkins.Token = token
	}
	if crumb := os.Getenv("BUILDFLOW_JENKINS_CRUMB_ENABLED"); crumb != "" {
		if b, err := strconv.ParseBool(crumb); err == nil {
			config.Jenkins.CrumbEnabled = b
		}
	}
	if timeout := os.Getenv("BUILDFLOW_JENKINS_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil && t > 0 {
			config.Jenkins.Timeout = t
		}
	}

	// Trigger configuration
	if delay := os.Getenv("BUILDFLOW_TRIGGER_FIRST_CHECK_DELAY"); delay != "" {
		if d, err := time.ParseDuration(delay); err == nil && d > 0 {
			config.Trigger.FirstCheckDelay = d
		}
	}
	if period := os.Getenv("BUILDFLOW_TRIGGER_POLL_PERIOD"); period != "" {
		if d, err := time.ParseDuration(period); err == nil && d > 0 {
			config.Trigger.PollPeriod = d
		}
	}
	if timeout := os.Getenv("BUILDFLOW_TRIGGER_BUILD_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			config.Trigger.BuildTimeout = d
		}
	}
}

// setDefaults sets default values for the configuration
func setDefaults(config *Config) {
	// Server defaults
	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.MaxBodySize == 0 {
		config.Server.MaxBodySize = 1 << 20 // 1MB default
	}

	// Database defaults
	if config.Database.Path == "" {
		config.Database.Path = "./buildflow.db"
	}

	// Jenkins defaults
	if config.Jenkins.Timeout == 0 {
		config.Jenkins.Timeout = 30 // 30 seconds default timeout
	}
	if config.Jenkins.Username == "" {
		// If username is not provided, use token as username (Jenkins API token authentication)
		config.Jenkins.Username = config.Jenkins.Token
	}

	// Trigger defaults
	if config.Trigger.FirstCheckDelay == 0 {
		config.Trigger.FirstCheckDelay = 5 * time.Second
	}
	if config.Trigger.PollPeriod == 0 {
		config.Trigger.PollPeriod = time.Second
	}
	if config.Trigger.BuildTimeout == 0 {
		config.Trigger.BuildTimeout = 60 * time.Second
	}
}

// GetLogLevel returns the log level from the environment
func GetLogLevel() string {
	levelStr := os.Getenv("BUILDFLOW_LOG_LEVEL")
	if levelStr == "" {
		return "info"
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if _, ok := validLevels[levelStr]; ok {
		return levelStr
	}

	return "info"
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	// Validate server port
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be between 1 and 65535)", cfg.Server.Port)
	}

	// Validate max body size
	if cfg.Server.MaxBodySize < 0 {
		return fmt.Errorf("invalid server.max_body_size: %d (must be non-negative)", cfg.Server.MaxBodySize)
	}
	if cfg.Server.MaxBodySize > 100<<20 { // 100MB max
		return fmt.Errorf("invalid server.max_body_size: %d (must be less than 100MB)", cfg.Server.MaxBodySize)
	}

	// Validate Jenkins configuration
	if cfg.Jenkins.URL == "" {
		return fmt.Errorf("jenkins.url is required")
	}
	if u, err := url.Parse(cfg.Jenkins.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid jenkins.url: %q", cfg.Jenkins.URL)
	}
	if cfg.Jenkins.Token == "" {
		return fmt.Errorf("jenkins.token is required")
	}

	// Validate trigger cadence
	if cfg.Trigger.FirstCheckDelay < 0 {
		return fmt.Errorf("invalid trigger.first_check_delay: %v (must be non-negative)", cfg.Trigger.FirstCheckDelay)
	}
	if cfg.Trigger.PollPeriod <= 0 {
		return fmt.Errorf("invalid trigger.poll_period: %v (must be positive)", cfg.Trigger.PollPeriod)
	}
	if cfg.Trigger.BuildTimeout <= 0 {
		return fmt.Errorf("invalid trigger.build_timeout: %v (must be positive)", cfg.Trigger.BuildTimeout)
	}
	// The build timeout should exceed the first-check delay; a shorter
	// timeout is accepted but gets a single queue check at the boundary.

	// Validate API keys
	if len(cfg.API.Keys) == 0 {
		return fmt.Errorf("at least one api.key is required")
	}
	for i, key := range cfg.API.Keys {
		if key == "" {
			return fmt.Errorf("api.keys[%d] cannot be empty", i)
		}
	}

	return nil
}
