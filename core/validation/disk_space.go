package validation

import (
	"fmt"
	"os"
	"path/filepath"

	"imagestream/core"
)

// DefaultMinFreeBytes is the free space below which the downloads check warns.
const DefaultMinFreeBytes = 100 * core.BytesPerMB

// DiskSpaceInfo describes the filesystem holding a path.
type DiskSpaceInfo struct {
	Path        string
	Total       int64
	Free        int64
	Used        int64
	UsedPercent float64
}

// fsUsage is what the platform stat call reports, in bytes.
type fsUsage struct {
	total int64
	free  int64
}

// DiskSpaceError indicates less free space than required.
type DiskSpaceError struct {
	Path      string
	Required  int64
	Available int64
}

func (e *DiskSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space at %s: need %s, have %s free",
		e.Path, core.FormatBytes(e.Required), core.FormatBytes(e.Available))
}

// GetDiskSpace returns disk space information for the filesystem containing
// path. A path that does not exist yet is resolved through its parents.
func GetDiskSpace(path string) (*DiskSpaceInfo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("validation: resolve %s: %w", path, err)
	}
	for {
		if _, err := os.Stat(abs); err == nil {
			break
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return nil, fmt.Errorf("validation: no existing parent for %s", path)
		}
		abs = parent
	}

	usage, err := statFilesystem(abs)
	if err != nil {
		return nil, fmt.Errorf("validation: disk space for %s: %w", abs, err)
	}

	info := &DiskSpaceInfo{Path: abs, Total: usage.total, Free: usage.free, Used: usage.total - usage.free}
	if usage.total > 0 {
		info.UsedPercent = float64(info.Used) / float64(usage.total) * 100
	}
	return info, nil
}

// CheckDiskSpace returns a *DiskSpaceError when path has less than
// requiredBytes free.
func CheckDiskSpace(path string, requiredBytes int64) error {
	info, err := GetDiskSpace(path)
	if err != nil {
		return err
	}
	if info.Free < requiredBytes {
		return &DiskSpaceError{Path: info.Path, Required: requiredBytes, Available: info.Free}
	}
	return nil
}

// CheckWritable creates dir if needed and verifies a file can be written in it.
func CheckWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("validation: create %s: %w", dir, err)
	}
	f, err := os.CreateTemp(dir, ".imagestream-check-*")
	if err != nil {
		return fmt.Errorf("validation: %s is not writable: %w", dir, err)
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}
