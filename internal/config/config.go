package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete bugrd configuration
type Config struct {
	Consent   ConsentConfig   `mapstructure:"consent"`
	Spool     SpoolConfig     `mapstructure:"spool"`
	Collector CollectorConfig `mapstructure:"collector"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ConsentConfig controls the user-consent gate
type ConsentConfig struct {
	// TimeoutSeconds is how long the user has to approve or deny sharing
	// before the request times out (default: 1800, matching a 30 minute
	// window)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// AutoApprove skips the interactive prompt and approves immediately.
	// Intended for headless and scripted use only. (default: false)
	AutoApprove bool `mapstructure:"auto_approve"`
}

// SpoolConfig controls where artifacts are staged while consent is pending
type SpoolConfig struct {
	// Dir is the staging directory. If empty, defaults to "spool" under
	// the user's data directory. Supports ~ for home directory expansion.
	Dir string `mapstructure:"dir"`
	// RetentionHours is how long entries kept for manual retrieval survive
	// before pruning (default: 72, 0 = keep forever)
	RetentionHours int `mapstructure:"retention_hours"`
}

// CollectorConfig controls the external collector command
type CollectorConfig struct {
	// Command is the collector binary to run. Empty selects the built-in
	// fake collector, which produces a placeholder report.
	Command string `mapstructure:"command"`
	// Args are passed to the command. The placeholders {report},
	// {screenshot}, and {mode} are expanded per capture.
	Args []string `mapstructure:"args"`
	// EstimatedReportMB is the expected report size, used to estimate
	// progress from file growth when the command reports none (default: 20,
	// 0 = disable file-growth progress)
	EstimatedReportMB int `mapstructure:"estimated_report_mb"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether file logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the log directory. If empty, logs go to stderr.
	Dir string `mapstructure:"dir"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// ConsentTimeout returns the consent window as a time.Duration
func (c *ConsentConfig) ConsentTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Retention returns the spool retention window as a time.Duration (0 means
// keep forever)
func (s *SpoolConfig) Retention() time.Duration {
	return time.Duration(s.RetentionHours) * time.Hour
}

// EstimatedReportBytes returns the estimated report size in bytes (0 means
// file-growth progress is disabled)
func (c *CollectorConfig) EstimatedReportBytes() int64 {
	return int64(c.EstimatedReportMB) * 1024 * 1024
}

// ResolveDir returns the resolved spool directory path.
// If Dir is empty, it returns the default path under baseDir.
// If Dir starts with ~, it expands to the user's home directory.
// If Dir is a relative path, it's resolved relative to baseDir.
func (s *SpoolConfig) ResolveDir(baseDir string) string {
	if s.Dir == "" {
		return filepath.Join(baseDir, "spool")
	}

	path := s.Dir

	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	// If relative path, resolve relative to baseDir
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Consent: ConsentConfig{
			TimeoutSeconds: 1800, // 30 minute consent window
			AutoApprove:    false,
		},
		Spool: SpoolConfig{
			Dir:            "", // Empty means use default: <data dir>/spool
			RetentionHours: 72,
		},
		Collector: CollectorConfig{
			Command:           "", // Empty means use the built-in fake collector
			Args:              []string{},
			EstimatedReportMB: 20,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Dir:        "", // Empty means stderr
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Consent defaults
	viper.SetDefault("consent.timeout_seconds", defaults.Consent.TimeoutSeconds)
	viper.SetDefault("consent.auto_approve", defaults.Consent.AutoApprove)

	// Spool defaults
	viper.SetDefault("spool.dir", defaults.Spool.Dir)
	viper.SetDefault("spool.retention_hours", defaults.Spool.RetentionHours)

	// Collector defaults
	viper.SetDefault("collector.command", defaults.Collector.Command)
	viper.SetDefault("collector.args", defaults.Collector.Args)
	viper.SetDefault("collector.estimated_report_mb", defaults.Collector.EstimatedReportMB)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bugrd")
	}
	// Fall back to ~/.config/bugrd
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bugrd"
	}
	return filepath.Join(home, ".config", "bugrd")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the path to the user's data directory, the default base
// for the spool and logs
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "bugrd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bugrd"
	}
	return filepath.Join(home, ".local", "share", "bugrd")
}
