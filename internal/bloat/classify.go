// Package bloat computes bottom-up directory size rollups over walker
// output and flags entries that exceed a size threshold or match known
// artifact-directory patterns.
package bloat

import (
	"path/filepath"
	"sort"

	"github.com/jgalley/bloatmon/internal/walker"
)

// DirectorySummary is the finalized rollup for one directory. The total of
// a directory always equals the sum of its immediate children's totals,
// recursively to the root.
type DirectorySummary struct {
	Path           string
	TotalSizeBytes int64
	FileCount      int64
	DirCount       int64
	FlaggedBloat   bool
	Artifact       bool
}

// NodeKind distinguishes flagged entries for consumers.
type NodeKind string

const (
	KindFile     NodeKind = "file"
	KindDir      NodeKind = "dir"
	KindArtifact NodeKind = "artifact"
)

// FlaggedNode is an entry that exceeded the threshold or matched an
// artifact pattern.
type FlaggedNode struct {
	Path      string
	SizeBytes int64
	Kind      NodeKind
}

// Classifier accumulates walker nodes and finalizes rollups once the walk
// completes. It imposes no ordering on equally-sized nodes; sorting is left
// to the consumer.
type Classifier struct {
	minSizeBytes int64
	nodes        map[string]*treeNode
}

type treeNode struct {
	size      int64
	isDir     bool
	total     int64
	fileCount int64
	dirCount  int64
}

// NewClassifier creates a classifier flagging entries larger than
// minSizeBytes.
func NewClassifier(minSizeBytes int64) *Classifier {
	return &Classifier{
		minSizeBytes: minSizeBytes,
		nodes:        make(map[string]*treeNode),
	}
}

// Add folds one walker node into the tree.
func (c *Classifier) Add(n walker.FileNode) {
	c.nodes[n.Path] = &treeNode{size: n.Size, isDir: n.IsDir}
}

// Result is the output of Finalize.
type Result struct {
	Root      string
	TotalSize int64
	FileCount int64
	Summaries []DirectorySummary
	Flagged   []FlaggedNode
}

// Finalize runs the post-order fold. Children are aggregated strictly
// before their parents; the fold is iterative over a depth-sorted path
// list, so tree depth never grows the call stack.
func (c *Classifier) Finalize(root string) *Result {
	paths := make([]string, 0, len(c.nodes))
	for p := range c.nodes {
		paths = append(paths, p)
	}
	// Deepest paths first: every child is finalized before its parent.
	sort.Slice(paths, func(i, j int) bool {
		return len(paths[i]) > len(paths[j])
	})

	for _, p := range paths {
		node := c.nodes[p]
		if !node.isDir {
			node.total = node.size
			node.fileCount = 1
		}
		if p == root {
			continue
		}
		parent, ok := c.nodes[filepath.Dir(p)]
		if !ok {
			continue
		}
		parent.total += node.total
		parent.fileCount += node.fileCount
		if node.isDir {
			parent.dirCount += node.dirCount + 1
		}
	}

	res := &Result{Root: root}
	if rootNode, ok := c.nodes[root]; ok {
		res.TotalSize = rootNode.total
		res.FileCount = rootNode.fileCount
	}

	for _, p := range paths {
		node := c.nodes[p]
		if node.isDir {
			summary := DirectorySummary{
				Path:           p,
				TotalSizeBytes: node.total,
				FileCount:      node.fileCount,
				DirCount:       node.dirCount,
				FlaggedBloat:   node.total > c.minSizeBytes,
				Artifact:       IsArtifactDir(filepath.Base(p)),
			}
			res.Summaries = append(res.Summaries, summary)
			if summary.Artifact {
				res.Flagged = append(res.Flagged, FlaggedNode{Path: p, SizeBytes: node.total, Kind: KindArtifact})
			} else if summary.FlaggedBloat && p != root {
				res.Flagged = append(res.Flagged, FlaggedNode{Path: p, SizeBytes: node.total, Kind: KindDir})
			}
			continue
		}
		if node.size > c.minSizeBytes {
			res.Flagged = append(res.Flagged, FlaggedNode{Path: p, SizeBytes: node.size, Kind: KindFile})
		}
	}

	return res
}
