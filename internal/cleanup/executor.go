// Package cleanup deletes user-selected paths, either permanently or into
// a recoverable trash directory. Every path in a batch is independent: one
// failure never aborts the rest, and the executor touches nothing outside
// the provided path set.
package cleanup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Outcome is the per-path result of a cleanup run.
type Outcome string

const (
	OutcomeDeleted Outcome = "deleted"
	OutcomeSkipped Outcome = "skipped"
	OutcomeError   Outcome = "error"
)

// Request describes one cleanup batch.
type Request struct {
	Paths []string

	// DryRun computes the outcome each path would have without mutating
	// the filesystem.
	DryRun bool

	// Trash moves paths into the recoverable trash directory instead of
	// unlinking them.
	Trash bool
}

// PathResult is the outcome for a single path.
type PathResult struct {
	Path    string
	Outcome Outcome
	Reason  string
}

// Report aggregates a batch. Deleted/Skipped/Errors partition the request's
// paths; Results preserves request order with per-path detail.
type Report struct {
	Deleted []string
	Skipped []string
	Errors  []PathResult
	Results []PathResult
}

func (r *Report) record(res PathResult) {
	r.Results = append(r.Results, res)
	switch res.Outcome {
	case OutcomeDeleted:
		r.Deleted = append(r.Deleted, res.Path)
	case OutcomeSkipped:
		r.Skipped = append(r.Skipped, res.Path)
	case OutcomeError:
		r.Errors = append(r.Errors, res)
	}
}

// Executor performs cleanup batches.
type Executor struct {
	trashDir string
}

// New creates an Executor trashing into trashDir.
func New(trashDir string) *Executor {
	return &Executor{trashDir: trashDir}
}

// Run processes the batch. Deletion of one path is treated as atomic: a
// started move or unlink always finishes, but cancellation skips every
// path not yet begun.
func (e *Executor) Run(ctx context.Context, req Request) *Report {
	report := &Report{}

	for _, path := range req.Paths {
		if ctx.Err() != nil {
			report.record(PathResult{Path: path, Outcome: OutcomeSkipped, Reason: "cancelled"})
			continue
		}
		report.record(e.one(path, req))
	}

	return report
}

func (e *Executor) one(path string, req Request) PathResult {
	info, err := os.Lstat(path)
	if os.IsNotExist(err) {
		return PathResult{Path: path, Outcome: OutcomeSkipped, Reason: "does not exist"}
	}
	if err != nil {
		return PathResult{Path: path, Outcome: OutcomeError, Reason: err.Error()}
	}

	if req.DryRun {
		// Preview: an unwritable parent is the prospective failure.
		if err := unix.Access(filepath.Dir(path), unix.W_OK); err != nil {
			return PathResult{Path: path, Outcome: OutcomeError, Reason: fmt.Sprintf("parent not writable: %v", err)}
		}
		return PathResult{Path: path, Outcome: OutcomeDeleted, Reason: "dry run"}
	}

	if req.Trash {
		if err := e.moveToTrash(path, info.IsDir()); err != nil {
			return PathResult{Path: path, Outcome: OutcomeError, Reason: err.Error()}
		}
		return PathResult{Path: path, Outcome: OutcomeDeleted}
	}

	// Permanent removal of exactly the selected path. A directory
	// selection covers its contents and nothing else.
	if err := os.RemoveAll(path); err != nil {
		return PathResult{Path: path, Outcome: OutcomeError, Reason: err.Error()}
	}
	return PathResult{Path: path, Outcome: OutcomeDeleted}
}
