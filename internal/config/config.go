package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Database   DatabaseConfig  `mapstructure:"database"`
	Logging    LoggingConfig   `mapstructure:"logging"`
	Scan       ScanConfig      `mapstructure:"scan"`
	Thresholds ThresholdConfig `mapstructure:"thresholds"`
	Cleanup    CleanupConfig   `mapstructure:"cleanup"`
	Retention  RetentionConfig `mapstructure:"retention"`
	Paths      []PathConfig    `mapstructure:"paths"`
}

// DatabaseConfig holds database-related settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging-related settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ScanConfig holds default scan settings.
type ScanConfig struct {
	Workers        int   `mapstructure:"workers"`
	MinSizeBytes   int64 `mapstructure:"min_size_bytes"`
	FollowSymlinks bool  `mapstructure:"follow_symlinks"`
	ProgressEvery  int   `mapstructure:"progress_every"`
}

// ThresholdConfig holds alert thresholds.
type ThresholdConfig struct {
	GrowthPct  float64 `mapstructure:"growth_pct"`
	AddedFiles int     `mapstructure:"added_files"`
	AddedBytes int64   `mapstructure:"added_bytes"`
}

// CleanupConfig holds cleanup settings.
type CleanupConfig struct {
	TrashDir string `mapstructure:"trash_dir"`
}

// RetentionConfig holds snapshot retention settings. MaxSnapshots of zero
// keeps the full history.
type RetentionConfig struct {
	MaxSnapshots int `mapstructure:"max_snapshots"`
}

// PathConfig holds configuration for a monitored project root.
type PathConfig struct {
	Path     string        `mapstructure:"path"`
	Interval time.Duration `mapstructure:"interval"`
}

// EffectiveInterval returns the interval for this path, falling back to the
// default.
func (p PathConfig) EffectiveInterval(defaultInterval time.Duration) time.Duration {
	if p.Interval > 0 {
		return p.Interval
	}
	return defaultInterval
}

// DefaultScanInterval is the daemon rescan cadence when a path does not
// specify its own.
const DefaultScanInterval = 24 * time.Hour

// defaultTrashDir is where trashed entries land unless overridden.
func defaultTrashDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "bloatmon-trash")
	}
	return filepath.Join(home, ".local", "share", "bloatmon", "trash")
}

// defaultDatabasePath is the snapshot database location unless overridden.
func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "bloatmon.db")
	}
	return filepath.Join(home, ".local", "share", "bloatmon", "bloatmon.db")
}

// Load reads configuration from the specified file path.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("database.path", defaultDatabasePath())
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("scan.workers", 4)
	v.SetDefault("scan.min_size_bytes", 100*1024*1024)
	v.SetDefault("scan.follow_symlinks", false)
	v.SetDefault("scan.progress_every", 512)
	v.SetDefault("thresholds.growth_pct", 20)
	v.SetDefault("thresholds.added_files", 1000)
	v.SetDefault("thresholds.added_bytes", 1<<30)
	v.SetDefault("cleanup.trash_dir", defaultTrashDir())
	v.SetDefault("retention.max_snapshots", 0)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("bloatmon")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/bloatmon")
		v.AddConfigPath("$HOME/.config/bloatmon")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK if using defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors. Bad values abort before
// any scan work begins.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be at least 1")
	}

	if c.Scan.MinSizeBytes < 0 {
		return fmt.Errorf("scan.min_size_bytes must be non-negative")
	}

	if c.Thresholds.GrowthPct < 0 {
		return fmt.Errorf("thresholds.growth_pct must be non-negative")
	}

	if c.Thresholds.AddedFiles < 0 {
		return fmt.Errorf("thresholds.added_files must be non-negative")
	}

	if c.Thresholds.AddedBytes < 0 {
		return fmt.Errorf("thresholds.added_bytes must be non-negative")
	}

	if c.Retention.MaxSnapshots < 0 {
		return fmt.Errorf("retention.max_snapshots must be non-negative")
	}

	if c.Cleanup.TrashDir == "" {
		return fmt.Errorf("cleanup.trash_dir is required")
	}

	for i, p := range c.Paths {
		if p.Path == "" {
			return fmt.Errorf("paths[%d].path is required", i)
		}
		if p.Interval < 0 {
			return fmt.Errorf("paths[%d].interval must be non-negative", i)
		}
	}

	return nil
}

// Default returns a default configuration suitable for testing or initial
// setup.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: defaultDatabasePath()},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Scan: ScanConfig{
			Workers:       4,
			MinSizeBytes:  100 * 1024 * 1024,
			ProgressEvery: 512,
		},
		Thresholds: ThresholdConfig{
			GrowthPct:  20,
			AddedFiles: 1000,
			AddedBytes: 1 << 30,
		},
		Cleanup:   CleanupConfig{TrashDir: defaultTrashDir()},
		Retention: RetentionConfig{MaxSnapshots: 0},
		Paths:     []PathConfig{},
	}
}
