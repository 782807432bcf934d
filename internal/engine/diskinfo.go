package engine

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// MountInfo summarizes capacity for one mounted filesystem.
type MountInfo struct {
	MountPoint string `json:"mount_point"`
	FSType     string `json:"fs_type"`
	TotalBytes uint64 `json:"total_bytes"`
	UsedBytes  uint64 `json:"used_bytes"`
	FreeBytes  uint64 `json:"free_bytes"`
}

// DiskInfo returns capacity summaries for every block-device mount.
// Pseudo filesystems (proc, sysfs, tmpfs mounts of virtual devices) are
// skipped.
func DiskInfo() ([]MountInfo, error) {
	f, err := os.Open("/proc/self/mounts")
	if err != nil {
		return nil, fmt.Errorf("reading mount table: %w", err)
	}
	defer f.Close()

	var mounts []MountInfo
	seen := make(map[string]bool)

	s := bufio.NewScanner(f)
	for s.Scan() {
		fields := strings.Fields(s.Text())
		if len(fields) < 3 {
			continue
		}
		device, mountPoint, fsType := fields[0], fields[1], fields[2]
		if !strings.HasPrefix(device, "/") || seen[mountPoint] {
			continue
		}

		var stat unix.Statfs_t
		if err := unix.Statfs(mountPoint, &stat); err != nil {
			// Stale or inaccessible mount: skip rather than fail the list.
			continue
		}

		bsize := uint64(stat.Bsize)
		total := stat.Blocks * bsize
		free := stat.Bavail * bsize
		mounts = append(mounts, MountInfo{
			MountPoint: mountPoint,
			FSType:     fsType,
			TotalBytes: total,
			UsedBytes:  total - stat.Bfree*bsize,
			FreeBytes:  free,
		})
		seen[mountPoint] = true
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("parsing mount table: %w", err)
	}

	return mounts, nil
}
