// Package config loads service configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Elements ElementsConfig `yaml:"elements"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Provider ProviderConfig `yaml:"provider"`
	Alert    AlertConfig    `yaml:"alert"`
	Database DatabaseConfig `yaml:"database"`
	Mail     MailConfig     `yaml:"mail"`
	Stream   StreamConfig   `yaml:"stream"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type ElementsConfig struct {
	SourceURL string        `yaml:"source_url"`
	CacheDir  string        `yaml:"cache_dir"`
	MaxFiles  int           `yaml:"max_files"`
	MaxAge    time.Duration `yaml:"max_age"`
}

type TrackerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Workers  int           `yaml:"workers"`
}

type ProviderConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
}

type AlertConfig struct {
	Interval      time.Duration `yaml:"interval"`
	SatelliteIDs  []int         `yaml:"satellite_ids"`
	HorizonDays   int           `yaml:"horizon_days"`
	MinVisibility int           `yaml:"min_visibility"`
	MinLead       time.Duration `yaml:"min_lead"`
	MaxLead       time.Duration `yaml:"max_lead"`
	DedupWindow   time.Duration `yaml:"dedup_window"`
	Concurrency   int           `yaml:"concurrency"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type MailConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	From    string `yaml:"from"`
	AppURL  string `yaml:"app_url"`
}

type StreamConfig struct {
	MaxConcurrentPerIP int           `yaml:"max_concurrent_per_ip"`
	KeepaliveInterval  time.Duration `yaml:"keepalive_interval"`
}

type LoggingConfig struct {
	Level string `yaml:"level"` // "DEBUG", "INFO", "WARN", "ERROR"
}

func Load(configPath string) (*Config, error) {
	config := &Config{}

	// Set defaults
	config.setDefaults()

	// Load from file if provided
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	// Override with environment variables
	config.loadFromEnv()

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) setDefaults() {
	c.Server.Addr = ":8080"

	c.Elements.CacheDir = "/tmp/passwatch/elements"
	c.Elements.MaxFiles = 5
	c.Elements.MaxAge = 6 * time.Hour

	c.Tracker.Interval = 5 * time.Second
	c.Tracker.Workers = 0 // 0 means runtime.NumCPU at wiring time.

	c.Provider.BaseURL = "https://api.n2yo.com/rest/v1/satellite"
	c.Provider.Timeout = 20 * time.Second
	c.Provider.RequestsPerSecond = 1
	c.Provider.Burst = 3

	c.Alert.Interval = 15 * time.Minute
	// First tracked batch, launched May 2019.
	c.Alert.SatelliteIDs = []int{44235, 44236, 44237, 44238, 44239, 44240, 44241, 44242, 44243, 44244}
	c.Alert.HorizonDays = 1
	c.Alert.MinVisibility = 300
	c.Alert.MinLead = 45 * time.Minute
	c.Alert.MaxLead = 75 * time.Minute
	c.Alert.DedupWindow = 30 * time.Minute
	c.Alert.Concurrency = 4

	c.Mail.BaseURL = "https://api.resend.com"
	c.Mail.From = "Passwatch <alerts@passwatch.local>"
	c.Mail.AppURL = "http://localhost:8080"

	c.Stream.MaxConcurrentPerIP = 10
	c.Stream.KeepaliveInterval = 30 * time.Second

	c.Logging.Level = "INFO"
}

func (c *Config) loadFromEnv() {
	if addr := os.Getenv("PASSWATCH_HTTP_ADDR"); addr != "" {
		c.Server.Addr = addr
	}

	if url := os.Getenv("PASSWATCH_ELEMENTS_URL"); url != "" {
		c.Elements.SourceURL = url
	}

	if dir := os.Getenv("PASSWATCH_CACHE_DIR"); dir != "" {
		c.Elements.CacheDir = dir
	}

	if v := os.Getenv("PASSWATCH_TRACKER_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Tracker.Interval = d
		}
	}

	if v := os.Getenv("PASSWATCH_TRACKER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Tracker.Workers = n
		}
	}

	if key := os.Getenv("PASSWATCH_PROVIDER_API_KEY"); key != "" {
		c.Provider.APIKey = key
	}

	if url := os.Getenv("PASSWATCH_PROVIDER_BASE_URL"); url != "" {
		c.Provider.BaseURL = url
	}

	if dsn := os.Getenv("PASSWATCH_DATABASE_DSN"); dsn != "" {
		c.Database.DSN = dsn
	}

	if key := os.Getenv("PASSWATCH_MAIL_API_KEY"); key != "" {
		c.Mail.APIKey = key
	}

	if from := os.Getenv("PASSWATCH_MAIL_FROM"); from != "" {
		c.Mail.From = from
	}

	if url := os.Getenv("PASSWATCH_APP_URL"); url != "" {
		c.Mail.AppURL = url
	}

	if v := os.Getenv("PASSWATCH_ALERT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Alert.Interval = d
		}
	}

	if logLevel := os.Getenv("PASSWATCH_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr cannot be empty")
	}

	if c.Tracker.Interval < time.Second {
		return fmt.Errorf("tracker interval must be at least 1s")
	}

	if c.Elements.MaxFiles < 1 {
		return fmt.Errorf("elements max_files must be at least 1")
	}

	if c.Alert.HorizonDays < 1 || c.Alert.HorizonDays > 10 {
		return fmt.Errorf("alert horizon_days must be between 1 and 10")
	}

	if c.Alert.MinLead < 0 || c.Alert.MaxLead <= c.Alert.MinLead {
		return fmt.Errorf("alert lead band invalid: max_lead must exceed min_lead")
	}

	if len(c.Alert.SatelliteIDs) == 0 {
		return fmt.Errorf("alert satellite_ids cannot be empty")
	}

	switch c.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("log level must be 'DEBUG', 'INFO', 'WARN', or 'ERROR'")
	}

	return nil
}

// SlogLevel maps the configured level string to a slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch c.Logging.Level {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
