// Package store persists projects, snapshots, and alert history in an
// embedded SQLite database. Snapshots are immutable once written and form
// an append-only, time-ordered history per project.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested project or snapshot does not
// exist.
var ErrNotFound = errors.New("not found")

// Project identifies a scanned root. Identity is stable across rescans of
// the same root path.
type Project struct {
	ProjectID string
	RootPath  string
	CreatedAt time.Time
}

// Entry is the persisted per-path state inside a snapshot, used by the
// diff engine to classify added/removed/modified paths.
type Entry struct {
	SizeBytes   int64 `json:"size"`
	ModUnixNano int64 `json:"mtime"`
}

// DupeSummary aggregates duplicate detection results for a snapshot.
type DupeSummary struct {
	GroupCount  int   `json:"group_count"`
	WastedBytes int64 `json:"wasted_bytes"`
}

// BloatSummary aggregates bloat classification results for a snapshot.
type BloatSummary struct {
	FlaggedCount int   `json:"flagged_count"`
	FlaggedBytes int64 `json:"flagged_bytes"`
}

// Snapshot is an immutable record of one completed scan.
type Snapshot struct {
	SnapshotID     string
	ProjectID      string
	TakenAt        time.Time
	TotalSizeBytes int64
	FileCount      int64
	Entries        map[string]Entry
	Dupes          DupeSummary
	Bloat          BloatSummary
}

// NewSnapshot carries the scan result to be persisted; IDs and timestamps
// are assigned by the store.
type NewSnapshot struct {
	TotalSizeBytes int64
	FileCount      int64
	Entries        map[string]Entry
	Dupes          DupeSummary
	Bloat          BloatSummary
}

// AlertRecord is a persisted alert tied to the snapshot that produced it.
type AlertRecord struct {
	Severity  string
	Category  string
	Message   string
	CreatedAt time.Time
}

// Store is the persistence interface. Writes for the same project are
// serialized; writes for different projects proceed independently.
type Store interface {
	// Initialize prepares the schema.
	Initialize(ctx context.Context) error

	// Close releases database resources.
	Close() error

	// EnsureProject returns the project for rootPath, creating it on first
	// use.
	EnsureProject(ctx context.Context, rootPath string) (*Project, error)

	// GetProject looks a project up by root path.
	GetProject(ctx context.Context, rootPath string) (*Project, error)

	// Persist durably writes a new snapshot and appends it to the
	// project's history. Success means the snapshot survives process
	// termination.
	Persist(ctx context.Context, projectID string, snap NewSnapshot) (*Snapshot, error)

	// List returns the project's snapshots, oldest first. Entries are not
	// loaded; use Get for a full snapshot.
	List(ctx context.Context, projectID string) ([]*Snapshot, error)

	// Get returns the full snapshot, or ErrNotFound.
	Get(ctx context.Context, snapshotID string) (*Snapshot, error)

	// Latest returns the most recent full snapshot for the project, or
	// ErrNotFound when the project has no history yet.
	Latest(ctx context.Context, projectID string) (*Snapshot, error)

	// SaveAlerts appends alert history for a snapshot.
	SaveAlerts(ctx context.Context, snapshotID string, alerts []AlertRecord) error

	// ListAlerts returns the alert history for a project, oldest first.
	ListAlerts(ctx context.Context, projectID string) ([]AlertRecord, error)

	// Prune removes the oldest snapshots beyond keep. keep <= 0 is a
	// no-op: history is retained indefinitely unless configured otherwise.
	Prune(ctx context.Context, projectID string, keep int) (int, error)
}
