//go:build windows

package validation

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// statFilesystem reports the volume holding path. Free honours per-user quotas.
func statFilesystem(path string) (fsUsage, error) {
	dir, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fsUsage{}, fmt.Errorf("encode path: %w", err)
	}
	var callerFree, total, totalFree uint64
	if err := windows.GetDiskFreeSpaceEx(dir, &callerFree, &total, &totalFree); err != nil {
		return fsUsage{}, fmt.Errorf("GetDiskFreeSpaceEx: %w", err)
	}
	return fsUsage{total: int64(total), free: int64(callerFree)}, nil
}
