package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bloatmon.yaml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scan.Workers != 4 {
		t.Errorf("scan.workers = %d, want default 4", cfg.Scan.Workers)
	}
	if cfg.Scan.MinSizeBytes != 100*1024*1024 {
		t.Errorf("scan.min_size_bytes = %d, want default 100 MiB", cfg.Scan.MinSizeBytes)
	}
	if cfg.Thresholds.GrowthPct != 20 {
		t.Errorf("thresholds.growth_pct = %v, want default 20", cfg.Thresholds.GrowthPct)
	}
	if cfg.Retention.MaxSnapshots != 0 {
		t.Errorf("retention.max_snapshots = %d, want default 0 (keep all)", cfg.Retention.MaxSnapshots)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bloatmon.yaml")
	yaml := `
database:
  path: /var/lib/bloatmon/bloatmon.db
scan:
  workers: 8
  min_size_bytes: 1048576
thresholds:
  growth_pct: 35
retention:
  max_snapshots: 10
paths:
  - path: /home/alice/projects
    interval: 1h
  - path: /srv/data
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Database.Path != "/var/lib/bloatmon/bloatmon.db" {
		t.Errorf("database.path = %s", cfg.Database.Path)
	}
	if cfg.Scan.Workers != 8 {
		t.Errorf("scan.workers = %d, want 8", cfg.Scan.Workers)
	}
	if cfg.Scan.MinSizeBytes != 1048576 {
		t.Errorf("scan.min_size_bytes = %d", cfg.Scan.MinSizeBytes)
	}
	if cfg.Thresholds.GrowthPct != 35 {
		t.Errorf("thresholds.growth_pct = %v", cfg.Thresholds.GrowthPct)
	}
	if cfg.Retention.MaxSnapshots != 10 {
		t.Errorf("retention.max_snapshots = %d", cfg.Retention.MaxSnapshots)
	}

	// Unset keys keep their defaults.
	if cfg.Logging.Level != "info" {
		t.Errorf("logging.level = %s, want default info", cfg.Logging.Level)
	}

	if len(cfg.Paths) != 2 {
		t.Fatalf("paths = %v", cfg.Paths)
	}
	if cfg.Paths[0].Interval != time.Hour {
		t.Errorf("paths[0].interval = %v, want 1h", cfg.Paths[0].Interval)
	}
	if got := cfg.Paths[1].EffectiveInterval(DefaultScanInterval); got != DefaultScanInterval {
		t.Errorf("paths[1] effective interval = %v, want default %v", got, DefaultScanInterval)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no database path", func(c *Config) { c.Database.Path = "" }},
		{"zero workers", func(c *Config) { c.Scan.Workers = 0 }},
		{"negative min size", func(c *Config) { c.Scan.MinSizeBytes = -1 }},
		{"negative growth pct", func(c *Config) { c.Thresholds.GrowthPct = -5 }},
		{"negative retention", func(c *Config) { c.Retention.MaxSnapshots = -1 }},
		{"no trash dir", func(c *Config) { c.Cleanup.TrashDir = "" }},
		{"empty monitored path", func(c *Config) { c.Paths = []PathConfig{{Path: ""}} }},
		{"negative interval", func(c *Config) { c.Paths = []PathConfig{{Path: "/p", Interval: -time.Hour}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
