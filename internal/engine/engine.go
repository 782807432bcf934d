// Package engine wires the walker, classifier, duplicate detector,
// snapshot store, and cleanup executor into the command surface consumed
// by the CLI and daemon. The engine holds no implicit global state; every
// dependency is owned explicitly and passed in at construction.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jgalley/bloatmon/internal/bloat"
	"github.com/jgalley/bloatmon/internal/cleanup"
	"github.com/jgalley/bloatmon/internal/config"
	"github.com/jgalley/bloatmon/internal/drift"
	"github.com/jgalley/bloatmon/internal/dupes"
	"github.com/jgalley/bloatmon/internal/store"
	"github.com/jgalley/bloatmon/internal/walker"
)

// PathIssue is a non-fatal per-path failure surfaced alongside results.
type PathIssue struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// ScanOptions controls a scan.
type ScanOptions struct {
	MinSizeBytes   int64
	FollowSymlinks bool
}

// ScanReport is the result of a full scan: classification, duplicates, the
// persisted snapshot, and the drift computed against the previous one.
type ScanReport struct {
	Project   *store.Project
	Snapshot  *store.Snapshot
	Delta     *drift.ChangeDelta // nil on the project's first snapshot
	Alerts    []drift.Alert
	Flagged   []bloat.FlaggedNode
	Summaries []bloat.DirectorySummary
	Groups    []dupes.Group
	Issues    []PathIssue
}

// Engine executes scans and cleanups.
type Engine struct {
	store      store.Store
	walker     *walker.Walker
	detector   *dupes.Detector
	executor   *cleanup.Executor
	progress   *Broadcaster
	logger     *slog.Logger
	thresholds drift.Thresholds
	retention  int
	progEvery  int
}

// New creates an Engine from configuration. The store may be nil when only
// storeless operations (ScanBloat, ScanDuplicates, CleanupPaths, DiskInfo)
// will be used.
func New(cfg *config.Config, st store.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:    st,
		walker:   walker.New(cfg.Scan.Workers),
		detector: dupes.New(cfg.Scan.Workers),
		executor: cleanup.New(cfg.Cleanup.TrashDir),
		progress: NewBroadcaster(),
		logger:   logger,
		thresholds: drift.Thresholds{
			GrowthPct:  cfg.Thresholds.GrowthPct,
			AddedFiles: cfg.Thresholds.AddedFiles,
			AddedBytes: cfg.Thresholds.AddedBytes,
		},
		retention: cfg.Retention.MaxSnapshots,
		progEvery: cfg.Scan.ProgressEvery,
	}
}

// Progress exposes the scan progress stream.
func (e *Engine) Progress() *Broadcaster {
	return e.progress
}

// collect drains one walk, returning every node. The walk's per-path
// errors are appended to issues.
func (e *Engine) collect(ctx context.Context, root string, opts walker.Options) ([]walker.FileNode, []PathIssue, error) {
	opts.ProgressEvery = e.progEvery
	opts.Progress = func(n int64, path string) {
		e.progress.Publish(ProgressEvent{EntriesProcessed: n, CurrentPath: path})
	}

	stream, err := e.walker.Walk(ctx, root, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	var nodes []walker.FileNode
	for n := range stream.Nodes {
		nodes = append(nodes, n)
	}

	var issues []PathIssue
	for _, pe := range stream.Errors() {
		issues = append(issues, PathIssue{Path: pe.Path, Reason: pe.Err.Error()})
	}
	return nodes, issues, nil
}

// ScanBloat walks root and returns flagged nodes ordered largest first,
// without persisting anything.
func (e *Engine) ScanBloat(ctx context.Context, root string, minBytes int64, followSymlinks bool) ([]bloat.FlaggedNode, []PathIssue, error) {
	if minBytes < 0 {
		return nil, nil, fmt.Errorf("%w: min size must be non-negative", ErrInvalidConfig)
	}

	// The classifier needs every file for exact rollups; the threshold is
	// applied at flagging time, not at the walk.
	nodes, issues, err := e.collect(ctx, root, walker.Options{FollowSymlinks: followSymlinks})
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, issues, err
	}

	c := bloat.NewClassifier(minBytes)
	for _, n := range nodes {
		c.Add(n)
	}
	res := c.Finalize(root)

	flagged := res.Flagged
	sort.Slice(flagged, func(i, j int) bool {
		if flagged[i].SizeBytes != flagged[j].SizeBytes {
			return flagged[i].SizeBytes > flagged[j].SizeBytes
		}
		return flagged[i].Path < flagged[j].Path
	})

	return flagged, issues, nil
}

// ScanDuplicates walks root and returns duplicate groups. minBytes filters
// candidates by size; pass 0 to include empty files, which form valid
// groups of their own.
func (e *Engine) ScanDuplicates(ctx context.Context, root string, minBytes int64, followSymlinks bool) ([]dupes.Group, []PathIssue, error) {
	if minBytes < 0 {
		return nil, nil, fmt.Errorf("%w: min size must be non-negative", ErrInvalidConfig)
	}

	nodes, issues, err := e.collect(ctx, root, walker.Options{
		MinSizeBytes:   minBytes,
		FollowSymlinks: followSymlinks,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, issues, err
	}

	groups, hashIssues, err := e.detector.Detect(ctx, fileCandidates(nodes))
	if err != nil {
		if errors.Is(err, dupes.ErrIndexCorrupt) {
			return nil, issues, fmt.Errorf("%w: %v", ErrConcurrency, err)
		}
		return nil, issues, err
	}
	for _, he := range hashIssues {
		issues = append(issues, PathIssue{Path: he.Path, Reason: he.Err.Error()})
	}

	return groups, issues, nil
}

// Scan runs the full pipeline: one walk feeding both the classifier and
// the duplicate detector, then a durable snapshot, a diff against the
// previous snapshot, and alert evaluation. On cancellation nothing is
// persisted; computed bloat and duplicate data is discarded without side
// effects.
func (e *Engine) Scan(ctx context.Context, root string, opts ScanOptions) (*ScanReport, error) {
	if e.store == nil {
		return nil, fmt.Errorf("%w: no snapshot store configured", ErrInvalidConfig)
	}
	if opts.MinSizeBytes < 0 {
		return nil, fmt.Errorf("%w: min size must be non-negative", ErrInvalidConfig)
	}

	nodes, issues, err := e.collect(ctx, root, walker.Options{FollowSymlinks: opts.FollowSymlinks})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := bloat.NewClassifier(opts.MinSizeBytes)
	entries := make(map[string]store.Entry)
	for _, n := range nodes {
		c.Add(n)
		if !n.IsDir {
			entries[n.Path] = store.Entry{SizeBytes: n.Size, ModUnixNano: n.ModTime.UnixNano()}
		}
	}
	res := c.Finalize(root)

	groups, hashIssues, err := e.detector.Detect(ctx, fileCandidates(nodes))
	if err != nil {
		if errors.Is(err, dupes.ErrIndexCorrupt) {
			return nil, fmt.Errorf("%w: %v", ErrConcurrency, err)
		}
		return nil, err
	}
	for _, he := range hashIssues {
		issues = append(issues, PathIssue{Path: he.Path, Reason: he.Err.Error()})
	}

	if err := ctx.Err(); err != nil {
		// Cancelled after computation: all-or-nothing, persist nothing.
		return nil, err
	}

	var flaggedBytes int64
	for _, f := range res.Flagged {
		flaggedBytes += f.SizeBytes
	}
	var wasted int64
	for _, g := range groups {
		wasted += g.WastedBytes()
	}

	project, err := e.store.EnsureProject(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	prev, err := e.store.Latest(ctx, project.ProjectID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	snap, err := e.store.Persist(ctx, project.ProjectID, store.NewSnapshot{
		TotalSizeBytes: res.TotalSize,
		FileCount:      res.FileCount,
		Entries:        entries,
		Dupes:          store.DupeSummary{GroupCount: len(groups), WastedBytes: wasted},
		Bloat:          store.BloatSummary{FlaggedCount: len(res.Flagged), FlaggedBytes: flaggedBytes},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	report := &ScanReport{
		Project:   project,
		Snapshot:  snap,
		Flagged:   res.Flagged,
		Summaries: res.Summaries,
		Groups:    groups,
		Issues:    issues,
	}

	if prev != nil {
		delta, err := drift.Diff(prev, snap)
		if err != nil {
			return nil, fmt.Errorf("diffing against previous snapshot: %w", err)
		}
		report.Delta = delta
		report.Alerts = drift.Evaluate(delta, e.thresholds)

		if len(report.Alerts) > 0 {
			records := make([]store.AlertRecord, 0, len(report.Alerts))
			for _, a := range report.Alerts {
				records = append(records, store.AlertRecord{
					Severity: string(a.Severity),
					Category: a.Category,
					Message:  a.Message,
				})
			}
			if err := e.store.SaveAlerts(ctx, snap.SnapshotID, records); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
		}
	}

	if e.retention > 0 {
		pruned, err := e.store.Prune(ctx, project.ProjectID, e.retention)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		if pruned > 0 {
			e.logger.Info("pruned snapshots", "project", project.ProjectID, "count", pruned)
		}
	}

	return report, nil
}

// CleanupPaths runs a cleanup batch over exactly the given paths.
func (e *Engine) CleanupPaths(ctx context.Context, req cleanup.Request) *cleanup.Report {
	return e.executor.Run(ctx, req)
}

// fileCandidates extracts non-directory nodes for duplicate detection.
// Symlink leaves are excluded: a link and its target are one file, not two.
func fileCandidates(nodes []walker.FileNode) []dupes.Candidate {
	var out []dupes.Candidate
	for _, n := range nodes {
		if n.IsDir || n.IsSymlink {
			continue
		}
		out = append(out, dupes.Candidate{Path: n.Path, Size: n.Size})
	}
	return out
}
