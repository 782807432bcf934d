// Package drift compares snapshots of a project and evaluates the result
// against alert thresholds. Both halves are pure functions over snapshots
// passed by reference; the package holds no state of its own.
package drift

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/jgalley/bloatmon/internal/store"
)

var (
	// ErrProjectMismatch is returned when the two snapshots belong to
	// different projects.
	ErrProjectMismatch = errors.New("snapshots belong to different projects")

	// ErrNotNewer is returned when the target snapshot is not strictly
	// newer than the base.
	ErrNotNewer = errors.New("target snapshot is not newer than base")

	// ErrBadPercentage guards against NaN/Inf leaking out of the
	// percentage computation. The zero-denominator rule should make this
	// unreachable.
	ErrBadPercentage = errors.New("size delta percentage is not finite")
)

// ChangeDelta is the categorized difference between two snapshots.
type ChangeDelta struct {
	FromSnapshotID string
	ToSnapshotID   string
	AddedPaths     []string
	RemovedPaths   []string
	ModifiedPaths  []string
	AddedBytes     int64
	SizeDeltaBytes int64
	SizeDeltaPct   float64
}

// Empty reports whether the delta carries no changes.
func (d *ChangeDelta) Empty() bool {
	return len(d.AddedPaths) == 0 && len(d.RemovedPaths) == 0 &&
		len(d.ModifiedPaths) == 0 && d.SizeDeltaBytes == 0
}

// Diff computes the change delta from one snapshot to another of the same
// project. Diffing a snapshot against itself yields an empty delta;
// otherwise the target must be strictly newer than the base.
func Diff(from, to *store.Snapshot) (*ChangeDelta, error) {
	if from.ProjectID != to.ProjectID {
		return nil, fmt.Errorf("diff %s -> %s: %w", from.SnapshotID, to.SnapshotID, ErrProjectMismatch)
	}
	if from.SnapshotID != to.SnapshotID && !to.TakenAt.After(from.TakenAt) {
		return nil, fmt.Errorf("diff %s -> %s: %w", from.SnapshotID, to.SnapshotID, ErrNotNewer)
	}

	delta := &ChangeDelta{
		FromSnapshotID: from.SnapshotID,
		ToSnapshotID:   to.SnapshotID,
	}

	for path, after := range to.Entries {
		before, ok := from.Entries[path]
		if !ok {
			delta.AddedPaths = append(delta.AddedPaths, path)
			delta.AddedBytes += after.SizeBytes
			continue
		}
		if before.SizeBytes != after.SizeBytes || before.ModUnixNano != after.ModUnixNano {
			delta.ModifiedPaths = append(delta.ModifiedPaths, path)
		}
	}
	for path := range from.Entries {
		if _, ok := to.Entries[path]; !ok {
			delta.RemovedPaths = append(delta.RemovedPaths, path)
		}
	}

	sort.Strings(delta.AddedPaths)
	sort.Strings(delta.RemovedPaths)
	sort.Strings(delta.ModifiedPaths)

	delta.SizeDeltaBytes = to.TotalSizeBytes - from.TotalSizeBytes

	pct, err := deltaPct(from.TotalSizeBytes, delta.SizeDeltaBytes)
	if err != nil {
		return nil, err
	}
	delta.SizeDeltaPct = pct

	return delta, nil
}

// deltaPct computes the percentage change against the base total. A zero
// base is defined as 100% growth when the delta is positive and 0%
// otherwise, so no division by zero ever happens.
func deltaPct(fromTotal, deltaBytes int64) (float64, error) {
	var pct float64
	switch {
	case fromTotal == 0 && deltaBytes != 0:
		pct = 100
	case fromTotal == 0:
		pct = 0
	default:
		pct = float64(deltaBytes) * 100 / float64(fromTotal)
	}
	if math.IsNaN(pct) || math.IsInf(pct, 0) {
		return 0, ErrBadPercentage
	}
	return pct, nil
}
