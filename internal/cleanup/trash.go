package cleanup

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// trashItem is the sidecar metadata written next to every trashed entry so
// it can be restored by hand or by a future restore command.
type trashItem struct {
	Name      string    `json:"name"`
	TrashPath string    `json:"trash_path"`
	OrigPath  string    `json:"orig_path"`
	DeletedAt time.Time `json:"deleted_at"`
	IsDir     bool      `json:"is_dir"`
}

// moveToTrash relocates path into the trash directory and records a
// sidecar. Rename is attempted first; a cross-device move falls back to
// copy-then-remove.
func (e *Executor) moveToTrash(path string, isDir bool) error {
	if err := os.MkdirAll(e.trashDir, 0755); err != nil {
		return fmt.Errorf("creating trash directory: %w", err)
	}

	dest := e.trashDest(filepath.Base(path))

	if err := os.Rename(path, dest); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && linkErr.Err == syscall.EXDEV {
			if err := copyTree(path, dest); err != nil {
				return fmt.Errorf("copying across devices: %w", err)
			}
			if err := os.RemoveAll(path); err != nil {
				return fmt.Errorf("removing original after copy: %w", err)
			}
		} else {
			return fmt.Errorf("moving to trash: %w", err)
		}
	}

	item := trashItem{
		Name:      filepath.Base(path),
		TrashPath: dest,
		OrigPath:  path,
		DeletedAt: time.Now().UTC(),
		IsDir:     isDir,
	}
	meta, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding trash metadata: %w", err)
	}
	if err := os.WriteFile(dest+".trashinfo.json", meta, 0644); err != nil {
		return fmt.Errorf("writing trash metadata: %w", err)
	}

	return nil
}

// trashDest picks a unique destination name inside the trash directory.
func (e *Executor) trashDest(name string) string {
	stamp := time.Now().UTC().Format("20060102T150405")
	dest := filepath.Join(e.trashDir, stamp+"-"+name)
	for i := 1; ; i++ {
		if _, err := os.Lstat(dest); os.IsNotExist(err) {
			return dest
		}
		dest = filepath.Join(e.trashDir, fmt.Sprintf("%s-%d-%s", stamp, i, name))
	}
}

// copyTree copies a file or directory tree preserving modes. Symlinks are
// recreated, not followed.
func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		return os.Symlink(target, dst)
	case info.IsDir():
		if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
			return err
		}
		entries, err := os.ReadDir(src)
		if err != nil {
			return err
		}
		for _, entry := range entries {
			if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
				return err
			}
		}
		return nil
	default:
		return copyFile(src, dst, info.Mode().Perm())
	}
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
