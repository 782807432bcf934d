// Package walker traverses filesystem trees, producing per-entry metadata
// for the bloat classifier and duplicate detector. Traversal is iterative
// (explicit worklist, no recursion) so depth is bounded only by memory, and
// top-level subtrees are walked concurrently by a bounded worker pool.
package walker

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// FileNode is the metadata for a single filesystem entry. Nodes are
// transient: they are folded into summaries and snapshots, never persisted
// individually.
type FileNode struct {
	Path      string
	Size      int64
	ModTime   time.Time
	IsDir     bool
	IsSymlink bool
}

// Options controls a single walk.
type Options struct {
	// MinSizeBytes suppresses emission of files smaller than this value.
	// Directories are always emitted. Callers that need exact rollups
	// (the bloat classifier) must pass 0.
	MinSizeBytes int64

	// FollowSymlinks descends into symlinked directories, tracking visited
	// (device, inode) pairs so cyclic links terminate.
	FollowSymlinks bool

	// Progress, if non-nil, is invoked roughly every ProgressEvery entries
	// with the running entry count and the path being processed.
	Progress      func(entriesProcessed int64, currentPath string)
	ProgressEvery int
}

const defaultProgressEvery = 512

// PathError records a non-fatal per-entry failure. The walk continues over
// siblings; callers report these alongside successful results.
type PathError struct {
	Path string
	Err  error
}

func (e PathError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Stream is the output of a walk. Nodes is closed when traversal finishes;
// Errors is valid only after that.
type Stream struct {
	Nodes <-chan FileNode

	mu   sync.Mutex
	errs []PathError
}

// Errors returns the per-path errors collected during the walk.
func (s *Stream) Errors() []PathError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PathError(nil), s.errs...)
}

func (s *Stream) addError(path string, err error) {
	s.mu.Lock()
	s.errs = append(s.errs, PathError{Path: path, Err: err})
	s.mu.Unlock()
}

// devino identifies a filesystem object across links.
type devino struct {
	dev uint64
	ino uint64
}

// ErrNotDirectory is returned when the walk root exists but is not a
// directory.
var ErrNotDirectory = fmt.Errorf("not a directory")

// Walker walks directory trees with a bounded worker pool.
type Walker struct {
	workers int
}

// New creates a Walker with the given pool size.
func New(workers int) *Walker {
	if workers < 1 {
		workers = 1
	}
	return &Walker{workers: workers}
}

// Walk validates root and starts traversal. Per-entry failures are recorded
// on the returned Stream; only an invalid root fails the walk itself.
// Directory nodes are emitted after all their children (post-order within
// each subtree), which the classifier relies on for its bottom-up fold.
func (w *Walker) Walk(ctx context.Context, root string, opts Options) (*Stream, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("accessing root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s: %w", root, ErrNotDirectory)
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = defaultProgressEvery
	}

	out := make(chan FileNode, 256)
	stream := &Stream{Nodes: out}
	st := &walkState{
		opts:    opts,
		out:     out,
		stream:  stream,
		visited: make(map[devino]struct{}),
	}
	st.markVisited(info)

	go func() {
		defer close(out)

		entries, err := os.ReadDir(root)
		if err != nil {
			stream.addError(root, err)
			st.emit(ctx, FileNode{Path: root, ModTime: info.ModTime(), IsDir: true})
			return
		}

		// Files and symlinks directly under the root are handled inline;
		// each subdirectory becomes a pool task.
		g := new(errgroup.Group)
		g.SetLimit(w.workers)

		for _, entry := range entries {
			if ctx.Err() != nil {
				break
			}
			path := filepath.Join(root, entry.Name())
			sub, ok := st.classify(ctx, path, entry)
			if !ok {
				continue
			}
			g.Go(func() error {
				st.walkSubtree(ctx, sub)
				return nil
			})
		}
		g.Wait()

		st.emit(ctx, FileNode{Path: root, ModTime: info.ModTime(), IsDir: true})
	}()

	return stream, nil
}

// walkState is the shared state of one walk.
type walkState struct {
	opts    Options
	out     chan<- FileNode
	stream  *Stream
	entries atomic.Int64

	mu      sync.Mutex
	visited map[devino]struct{}
}

// classify handles a single directory entry. It emits file and symlink-leaf
// nodes directly and returns the path (and true) when the entry is a
// directory to descend into.
func (s *walkState) classify(ctx context.Context, path string, entry fs.DirEntry) (string, bool) {
	s.tick(path)

	if entry.Type()&fs.ModeSymlink != 0 {
		return s.classifySymlink(ctx, path)
	}

	if entry.IsDir() {
		if info, err := entry.Info(); err == nil {
			if !s.markVisited(info) && s.opts.FollowSymlinks {
				// Already reached through a symlink elsewhere.
				return "", false
			}
		}
		return path, true
	}

	info, err := entry.Info()
	if err != nil {
		s.stream.addError(path, err)
		return "", false
	}
	if info.Size() >= s.opts.MinSizeBytes {
		s.emit(ctx, FileNode{Path: path, Size: info.Size(), ModTime: info.ModTime()})
	}
	return "", false
}

// classifySymlink applies the symlink policy: record the link itself as a
// leaf when not following, otherwise resolve it and either descend
// (directory target, not yet visited) or emit the target's metadata.
func (s *walkState) classifySymlink(ctx context.Context, path string) (string, bool) {
	if !s.opts.FollowSymlinks {
		info, err := os.Lstat(path)
		if err != nil {
			s.stream.addError(path, err)
			return "", false
		}
		if info.Size() >= s.opts.MinSizeBytes {
			s.emit(ctx, FileNode{Path: path, Size: info.Size(), ModTime: info.ModTime(), IsSymlink: true})
		}
		return "", false
	}

	info, err := os.Stat(path)
	if err != nil {
		// Broken link: record and move on.
		s.stream.addError(path, err)
		return "", false
	}
	if info.IsDir() {
		if !s.markVisited(info) {
			// Cyclic or already-covered target: lookup-and-skip, no error.
			return "", false
		}
		return path, true
	}
	if info.Size() >= s.opts.MinSizeBytes {
		s.emit(ctx, FileNode{Path: path, Size: info.Size(), ModTime: info.ModTime(), IsSymlink: true})
	}
	return "", false
}

// frame is one level of the iterative traversal stack.
type frame struct {
	path    string
	modTime time.Time
	pending []string // subdirectories not yet descended into
}

// walkSubtree walks one directory subtree iteratively. A directory's node
// is emitted only once its frame is exhausted, giving post-order emission.
func (s *walkState) walkSubtree(ctx context.Context, dir string) {
	stack := []frame{s.newFrame(ctx, dir)}
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return
		}
		top := &stack[len(stack)-1]
		if len(top.pending) == 0 {
			s.emit(ctx, FileNode{Path: top.path, ModTime: top.modTime, IsDir: true})
			stack = stack[:len(stack)-1]
			continue
		}
		next := top.pending[len(top.pending)-1]
		top.pending = top.pending[:len(top.pending)-1]
		stack = append(stack, s.newFrame(ctx, next))
	}
}

// newFrame reads a directory, emits its leaf children, and returns a frame
// holding the subdirectories still to visit.
func (s *walkState) newFrame(ctx context.Context, dir string) frame {
	f := frame{path: dir}
	if info, err := os.Lstat(dir); err == nil {
		f.modTime = info.ModTime()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.stream.addError(dir, err)
		return f
	}
	for _, entry := range entries {
		if ctx.Err() != nil {
			return f
		}
		path := filepath.Join(dir, entry.Name())
		if sub, ok := s.classify(ctx, path, entry); ok {
			f.pending = append(f.pending, sub)
		}
	}
	return f
}

// markVisited records the (device, inode) identity of a directory. It
// returns false when the identity was already present, meaning the
// directory has been covered through another path or link.
func (s *walkState) markVisited(info fs.FileInfo) bool {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return true
	}
	id := devino{dev: uint64(st.Dev), ino: uint64(st.Ino)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.visited[id]; seen {
		return false
	}
	s.visited[id] = struct{}{}
	return true
}

func (s *walkState) emit(ctx context.Context, n FileNode) {
	select {
	case s.out <- n:
	case <-ctx.Done():
	}
}

// tick advances the progress counter, invoking the callback at the
// configured cadence rather than per entry.
func (s *walkState) tick(path string) {
	n := s.entries.Add(1)
	if s.opts.Progress != nil && n%int64(s.opts.ProgressEvery) == 0 {
		s.opts.Progress(n, path)
	}
}
