// Package daemon runs periodic scans of configured project roots so drift
// can be tracked across runs without manual rescans.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jgalley/bloatmon/internal/config"
	"github.com/jgalley/bloatmon/internal/engine"
)

// Daemon manages the periodic scan loops.
type Daemon struct {
	cfg    *config.Config
	engine *engine.Engine
	logger *slog.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	inFlight map[string]context.CancelFunc // active scans by root
}

// New creates a new Daemon instance.
func New(cfg *config.Config, eng *engine.Engine, logger *slog.Logger) *Daemon {
	return &Daemon{
		cfg:      cfg,
		engine:   eng,
		logger:   logger,
		inFlight: make(map[string]context.CancelFunc),
	}
}

// Run starts the daemon and blocks until Stop is called or the context is
// cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		close(d.doneCh)
		d.mu.Unlock()
	}()

	if len(d.cfg.Paths) == 0 {
		d.logger.Warn("no paths configured for monitoring")
		<-ctx.Done()
		return ctx.Err()
	}

	var wg sync.WaitGroup
	pathCtx, pathCancel := context.WithCancel(ctx)
	defer pathCancel()

	for _, p := range d.cfg.Paths {
		wg.Add(1)
		go func(pathCfg config.PathConfig) {
			defer wg.Done()
			d.runPathLoop(pathCtx, pathCfg)
		}(p)
	}

	select {
	case <-ctx.Done():
		d.logger.Info("context cancelled, shutting down")
	case <-d.stopCh:
		d.logger.Info("stop requested, shutting down")
	}

	pathCancel()
	wg.Wait()

	return nil
}

// Stop signals the daemon to stop gracefully.
func (d *Daemon) Stop() {
	d.mu.Lock()
	if d.running && d.stopCh != nil {
		close(d.stopCh)
	}
	d.mu.Unlock()
}

// Wait blocks until the daemon has fully stopped.
func (d *Daemon) Wait() {
	d.mu.Lock()
	doneCh := d.doneCh
	d.mu.Unlock()

	if doneCh != nil {
		<-doneCh
	}
}

// runPathLoop runs the scan loop for a single project root.
func (d *Daemon) runPathLoop(ctx context.Context, pathCfg config.PathConfig) {
	interval := pathCfg.EffectiveInterval(config.DefaultScanInterval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("starting path scanner",
		"path", pathCfg.Path,
		"interval", interval,
	)

	// Run initial scan immediately
	d.runScan(ctx, pathCfg)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.runScan(ctx, pathCfg)
		}
	}
}

// runScan performs a single scan of the configured root. At most one scan
// per root is in flight; a slow scan overlapping its next tick is skipped.
func (d *Daemon) runScan(ctx context.Context, pathCfg config.PathConfig) {
	d.mu.Lock()
	if _, busy := d.inFlight[pathCfg.Path]; busy {
		d.mu.Unlock()
		d.logger.Warn("previous scan still running, skipping tick", "path", pathCfg.Path)
		return
	}
	scanCtx, cancel := context.WithCancel(ctx)
	d.inFlight[pathCfg.Path] = cancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		delete(d.inFlight, pathCfg.Path)
		d.mu.Unlock()
		cancel()
	}()

	d.logger.Info("starting scan", "path", pathCfg.Path)
	start := time.Now()

	report, err := d.engine.Scan(scanCtx, pathCfg.Path, engine.ScanOptions{
		MinSizeBytes:   d.cfg.Scan.MinSizeBytes,
		FollowSymlinks: d.cfg.Scan.FollowSymlinks,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			d.logger.Warn("scan cancelled", "path", pathCfg.Path)
			return
		}
		d.logger.Error("scan failed", "path", pathCfg.Path, "error", err)
		return
	}

	d.logger.Info("scan completed",
		"path", pathCfg.Path,
		"snapshot", report.Snapshot.SnapshotID,
		"total_size", report.Snapshot.TotalSizeBytes,
		"files", report.Snapshot.FileCount,
		"duplicate_groups", len(report.Groups),
		"flagged", len(report.Flagged),
		"errors", len(report.Issues),
		"duration", time.Since(start),
	)

	for _, a := range report.Alerts {
		d.logger.Warn("drift alert",
			"path", pathCfg.Path,
			"severity", a.Severity,
			"category", a.Category,
			"message", a.Message,
		)
	}
}
