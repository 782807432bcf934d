// Package dupes groups files with identical content into duplicate groups.
//
// Hashing cost is bounded by staging: files are first grouped by exact
// size, then by a fingerprint of a bounded prefix, and only candidates
// still colliding get a full-content fingerprint. Files that differ early
// are never read to the end.
package dupes

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/errgroup"
)

// prefixBytes is how much of each file the partial fingerprint covers.
const prefixBytes = 64 * 1024

// Candidate is a file offered to the detector.
type Candidate struct {
	Path string
	Size int64
}

// Group is a set of two or more files with identical size and identical
// full-content fingerprint.
type Group struct {
	Fingerprint string
	SizeBytes   int64
	Paths       []string
}

// WastedBytes is the space reclaimable by keeping one member of the group.
func (g Group) WastedBytes() int64 {
	return g.SizeBytes * int64(len(g.Paths)-1)
}

// PathError records a file that could not be fingerprinted. The file is
// dropped from its candidate group; detection continues.
type PathError struct {
	Path string
	Err  error
}

func (e PathError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// ErrIndexCorrupt reports a torn fingerprint index. Silent data loss is
// worse than failure, so the caller must abort the scan.
var ErrIndexCorrupt = fmt.Errorf("fingerprint index corrupt")

// Detector runs staged duplicate detection with a bounded worker pool.
type Detector struct {
	workers int
}

// New creates a Detector with the given pool size.
func New(workers int) *Detector {
	if workers < 1 {
		workers = 1
	}
	return &Detector{workers: workers}
}

// Detect returns the duplicate groups over the candidate set, sorted by
// wasted bytes descending. Read failures on individual files are returned
// alongside the groups.
func (d *Detector) Detect(ctx context.Context, candidates []Candidate) ([]Group, []PathError, error) {
	// Stage 1: group by exact size. Singletons cannot be duplicates.
	bySize := make(map[int64][]string)
	for _, c := range candidates {
		bySize[c.Size] = append(bySize[c.Size], c.Path)
	}

	var pending []Candidate
	for size, paths := range bySize {
		if len(paths) < 2 {
			continue
		}
		for _, p := range paths {
			pending = append(pending, Candidate{Path: p, Size: size})
		}
	}
	if len(pending) == 0 {
		return nil, nil, nil
	}

	collector := &errCollector{}

	// Stage 2: partial fingerprint over the file prefix.
	prefixIdx := newShardedIndex()
	if err := d.hashStage(ctx, pending, collector, func(path string, size int64) error {
		sum, err := hashFile(path, prefixBytes)
		if err != nil {
			return err
		}
		prefixIdx.add(indexKey{size: size, hash: sum}, path)
		return nil
	}); err != nil {
		return nil, collector.errs, err
	}
	if !prefixIdx.verify() {
		return nil, collector.errs, ErrIndexCorrupt
	}

	// Stage 3: full-content fingerprint for buckets still holding more
	// than one candidate.
	var finalists []Candidate
	for key, paths := range prefixIdx.groups() {
		for _, p := range paths {
			finalists = append(finalists, Candidate{Path: p, Size: key.size})
		}
	}

	fullIdx := newShardedIndex()
	if err := d.hashStage(ctx, finalists, collector, func(path string, size int64) error {
		sum, err := hashFile(path, -1)
		if err != nil {
			return err
		}
		fullIdx.add(indexKey{size: size, hash: sum}, path)
		return nil
	}); err != nil {
		return nil, collector.errs, err
	}
	if !fullIdx.verify() {
		return nil, collector.errs, ErrIndexCorrupt
	}

	var groups []Group
	for key, paths := range fullIdx.groups() {
		sort.Strings(paths)
		groups = append(groups, Group{
			Fingerprint: fmt.Sprintf("xx64:%016x", key.hash),
			SizeBytes:   key.size,
			Paths:       paths,
		})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].WastedBytes() != groups[j].WastedBytes() {
			return groups[i].WastedBytes() > groups[j].WastedBytes()
		}
		return groups[i].Paths[0] < groups[j].Paths[0]
	})

	return groups, collector.errs, nil
}

// hashStage fans the candidates out over the worker pool. Per-file read
// errors go to the collector; only cancellation stops the stage.
func (d *Detector) hashStage(ctx context.Context, candidates []Candidate, collector *errCollector, fn func(path string, size int64) error) error {
	g := new(errgroup.Group)
	g.SetLimit(d.workers)

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		c := c
		g.Go(func() error {
			if err := fn(c.Path, c.Size); err != nil {
				collector.add(c.Path, err)
			}
			return nil
		})
	}
	g.Wait()
	return ctx.Err()
}

// hashFile computes the xxhash64 of at most limit bytes of the file, or of
// the whole file when limit is negative. Empty files hash cleanly, so
// byte-identical empty files form a valid group.
func hashFile(path string, limit int64) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	h := xxhash.New()
	var r io.Reader = f
	if limit >= 0 {
		r = io.LimitReader(f, limit)
	}
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

type errCollector struct {
	mu   sync.Mutex
	errs []PathError
}

func (c *errCollector) add(path string, err error) {
	c.mu.Lock()
	c.errs = append(c.errs, PathError{Path: path, Err: err})
	c.mu.Unlock()
}
