//go:build !windows

package validation

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// statFilesystem reports the filesystem holding path. Free is the space an
// unprivileged writer can use (Bavail), since downloads never run as root.
func statFilesystem(path string) (fsUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return fsUsage{}, fmt.Errorf("statfs: %w", err)
	}
	bsize := int64(st.Bsize)
	return fsUsage{
		total: int64(st.Blocks) * bsize,
		free:  int64(st.Bavail) * bsize,
	}, nil
}
